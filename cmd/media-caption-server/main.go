package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"media-caption-server/internal/bootstrap"
	"media-caption-server/internal/domain/auth"
	"media-caption-server/internal/platform/config"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml or ./.config.yaml)")
	issueToken := flag.String("issue-token", "", "print an API bearer token for the given subject and exit")
	flag.Parse()

	if *issueToken != "" {
		if err := printToken(*configPath, *issueToken); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "media-caption-server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("[%s] [INFO] [Bootstrap] starting media-caption-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{ConfigPath: *configPath}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "media-caption-server failed: %v\n", err)
		os.Exit(1)
	}
}

func printToken(configPath, subject string) error {
	cfg, err := config.NewLoader().WithPath(configPath).Load()
	if err != nil {
		return err
	}
	if cfg.Server.Auth.Secret == "" {
		return fmt.Errorf("server.auth.secret is not configured")
	}

	token, err := auth.NewAuthToken(cfg.Server.Auth.Secret).WithTTL(cfg.Server.Auth.TTL).GenerateToken(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
