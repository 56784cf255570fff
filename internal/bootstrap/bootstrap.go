package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"media-caption-server/internal/domain/auth"
	"media-caption-server/internal/domain/caption"
	"media-caption-server/internal/domain/caption/eventlog"
	"media-caption-server/internal/domain/eventbus"
	"media-caption-server/internal/domain/filestore"
	"media-caption-server/internal/domain/image"
	"media-caption-server/internal/domain/media"
	platformconfig "media-caption-server/internal/platform/config"
	platformerrors "media-caption-server/internal/platform/errors"
	platformlogging "media-caption-server/internal/platform/logging"
	platformobservability "media-caption-server/internal/platform/observability"
	platformstorage "media-caption-server/internal/platform/storage"
	httptransport "media-caption-server/internal/transport/http"
	"media-caption-server/internal/transport/http/mediaapi"
)

const logTag = "Bootstrap"

// Options controls how Run locates its configuration.
type Options struct {
	// ConfigPath pins the YAML file; empty searches the working directory.
	ConfigPath string
	// Loader overrides the config loader, mainly for tests.
	Loader *platformconfig.Loader
	// Console receives coloured log output; nil means stdout.
	Console io.Writer
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	files                 *filestore.Store
	events                eventlog.Store
	bus                   *eventbus.Bus
	schemas               media.Schemas
	repo                  media.Repository
	mediaService          *media.Service
	captionHandler        *caption.Handler
	tokens                *auth.AuthToken
}

// Run loads configuration, initialises every dependency, serves HTTP and
// blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close()
		return err
	}
	defer state.close()

	logger := state.logger
	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}
	logger.InfoTag(logTag, "services started")

	return waitForShutdown(signalCtx, cancel, logger, group)
}

// close releases resources in reverse order of initialisation.
func (s *appState) close() {
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.events != nil {
		if err := s.events.Close(context.Background()); err != nil && s.logger != nil {
			s.logger.WarnTag(logTag, "caption event log did not close cleanly: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil && s.logger != nil {
			s.logger.WarnTag(logTag, "database did not close cleanly: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag(logTag, "observability did not shut down cleanly: %v", err)
		}
		cancel()
	}
	if s.logger != nil {
		s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag(logTag, "initialisation graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag(logTag, "  %s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag(logTag, "  %s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "files:init-store",
			Title:     "Initialise file store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   initFileStoreStep,
		},
		{
			ID:        "eventlog:init-store",
			Title:     "Initialise caption event log",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initEventLogStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "media:init-service",
			Title:     "Initialise media service",
			DependsOn: []string{"storage:init-database", "files:init-store", "eventbus:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initMediaStep,
		},
		{
			ID:        "caption:init-handler",
			Title:     "Register caption handler",
			DependsOn: []string{"media:init-service", "eventlog:init-store", "observability:setup-hooks"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initCaptionStep,
		},
		{
			ID:        "auth:init-tokens",
			Title:     "Initialise API tokens",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindConfig,
			Execute:   initAuthStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.opts.Loader
	if loader == nil {
		loader = platformconfig.NewLoader().WithPath(state.opts.ConfigPath)
	}
	config, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = config
	state.configPath = loader.Path()
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.opts.Console,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	logger.InfoTag(logTag, "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Database.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.db = db
	state.logger.InfoTag(logTag, "database ready (%s)", state.config.Database.DSN)
	return nil
}

func initFileStoreStep(_ context.Context, state *appState) error {
	files, err := filestore.New(state.config.Files.Root, state.config.Files.PublicBaseURL)
	if err != nil {
		return err
	}
	state.files = files
	state.logger.InfoTag(logTag, "file store ready (%s)", files.Root())
	return nil
}

func initEventLogStep(_ context.Context, state *appState) error {
	cfg := state.config.EventLog
	storeCfg := eventlog.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Driver)),
		TTL:    cfg.Redis.TTL,
	}
	if storeCfg.Driver == eventlog.DriverRedis {
		storeCfg.Redis = &eventlog.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}
	}

	store, err := eventlog.New(storeCfg, eventlog.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "eventlog:init-store", "failed to create caption event log", err)
	}
	state.events = store
	state.logger.InfoTag(logTag, "caption event log ready (driver=%s)", storeCfg.Driver)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	cfg := state.config.EventBus
	bus := eventbus.New(eventbus.Options{Async: cfg.Async, Workers: cfg.Workers}, state.logger)
	bus.Start()
	state.bus = bus

	if bus.Async() {
		state.logger.InfoTag(logTag, "event bus ready (async, %d workers)", cfg.Workers)
	} else {
		state.logger.InfoTag(logTag, "event bus ready (sync)")
	}
	return nil
}

func initMediaStep(_ context.Context, state *appState) error {
	state.schemas = buildSchemas(state.config.Media)
	state.repo = platformstorage.NewMediaRepository(state.db, state.schemas)

	imageCfg := state.config.Media.Image
	validator := image.NewSecurityValidator(image.Limits{
		MaxFileSize:    state.config.Files.MaxUploadSize,
		MaxPixels:      imageCfg.MaxPixels,
		MaxWidth:       imageCfg.MaxWidth,
		MaxHeight:      imageCfg.MaxHeight,
		AllowedFormats: imageCfg.AllowedFormats,
	}, state.logger)

	state.mediaService = media.NewService(state.schemas, state.repo, state.files, validator, state.bus, state.logger)
	state.logger.InfoTag(logTag, "media service ready (%d bundles)", len(state.schemas))
	return nil
}

func buildSchemas(cfg platformconfig.MediaConfig) media.Schemas {
	schemas := make(media.Schemas, len(cfg.Bundles))
	for name, bundle := range cfg.Bundles {
		schemas[name] = media.BundleSchema{
			Name:        name,
			SourceField: bundle.SourceField,
			Fields:      append([]string(nil), bundle.Fields...),
			Image:       bundle.Image,
		}
	}
	return schemas
}

func initCaptionStep(_ context.Context, state *appState) error {
	cfg := state.config.Caption
	if !cfg.Enabled {
		state.logger.WarnTag(logTag, "captioning disabled, media saves will not be captioned")
		return nil
	}
	if cfg.Token == "" {
		state.logger.WarnTag(logTag, "caption token is empty, the inference API will likely reject requests")
	}

	fetcher := caption.NewFetcher(caption.Config{
		Endpoint:     cfg.Endpoint,
		Token:        cfg.Token,
		WaitForModel: cfg.WaitForModel,
		Mode:         cfg.Mode,
		Timeout:      cfg.Timeout,
	}, state.files, state.logger)

	handler := caption.NewHandler(caption.HandlerOptions{
		Gate:        caption.NewGate(cfg.ImageBundle, state.logger),
		Captioner:   fetcher,
		Writer:      caption.NewFieldWriter(cfg.TargetField, state.repo, state.logger),
		Events:      state.events,
		SourceField: cfg.SourceField,
		Policy:      cfg.OnSaveError,
		Logger:      state.logger,
	})
	if err := handler.Register(state.bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "caption:init-handler", "failed to subscribe caption handler", err)
	}
	state.captionHandler = handler

	state.logger.InfoTag(logTag, "caption handler registered (bundle=%s mode=%s target=%s on_save_error=%s)",
		cfg.ImageBundle, cfg.Mode, cfg.TargetField, cfg.OnSaveError)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	cfg := state.config.Server.Auth
	if !cfg.Enabled {
		state.logger.WarnTag(logTag, "API authentication disabled")
		return nil
	}
	state.tokens = auth.NewAuthToken(cfg.Secret).WithTTL(cfg.TTL)
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	var authMiddleware gin.HandlerFunc
	if state.tokens != nil {
		authMiddleware = httptransport.BearerAuth(state.tokens, logger)
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Logger:         logger,
		Debug:          strings.EqualFold(config.Log.Level, "debug"),
		AuthMiddleware: authMiddleware,
		FilesRoot:      state.files.Root(),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap, "http:build-router", "failed to build router", err)
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", nil)
	})

	mediaService, err := mediaapi.NewService(state.mediaService, state.events, state.bus, config.Caption.TargetField, config.Files.MaxUploadSize, logger)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "media:new-service", "failed to create media API", err)
	}
	mediaService.Register(httpRouter.Secured)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on http://%s", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP server shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case <-ctx.Done():
		logger.InfoTag(logTag, "shutdown requested (%v), releasing resources", context.Cause(ctx))
	case err := <-done:
		// a server exited on its own
		cancel()
		if err != nil {
			logger.ErrorTag(logTag, "service stopped with error: %v", err)
			return err
		}
		return nil
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag(logTag, "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag(logTag, "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag(logTag, "shutdown timed out, forcing exit")
		return platformerrors.New(platformerrors.KindBootstrap, "bootstrap.shutdown", "shutdown timed out")
	}
	return nil
}
