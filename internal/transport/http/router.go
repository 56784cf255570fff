package httptransport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"media-caption-server/internal/platform/logging"
	"media-caption-server/internal/platform/observability"
)

// Options configures the HTTP router builder.
type Options struct {
	Logger         *logging.Logger
	Debug          bool
	AuthMiddleware gin.HandlerFunc
	// FilesRoot is served under /files so url-mode captioning can reach uploads.
	FilesRoot string
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
	// Secured is API behind AuthMiddleware, or API itself when auth is off.
	Secured *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS,
// observability middlewares and the health and metrics endpoints.
func Build(opts Options) (*Router, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("http router requires logger")
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(opts.Logger))
	engine.Use(observabilityMiddleware())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if opts.FilesRoot != "" {
		engine.Use(static.Serve("/files", static.LocalFile(opts.FilesRoot, false)))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		RespondSuccess(c, http.StatusOK, gin.H{"status": "ok"}, "")
	})
	engine.GET("/metrics", gin.WrapH(observability.Handler()))

	api := engine.Group("/api")
	secured := api
	if opts.AuthMiddleware != nil {
		secured = api.Group("")
		secured.Use(opts.AuthMiddleware)
	}

	return &Router{
		Engine:  engine,
		API:     api,
		Secured: secured,
	}, nil
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		if strings.HasPrefix(c.Request.URL.Path, "/metrics") || c.Request.URL.Path == "/healthz" {
			logger.DebugTag("HTTP", "%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, duration)
			return
		}
		logger.InfoTag("HTTP", "%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, duration)
	}
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", path)
		var spanErr error
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		observability.RecordMetric(
			reqCtx,
			"http.request.duration_ms",
			float64(duration.Milliseconds()),
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
				"status":    strconv.Itoa(status),
			},
		)
	}
}
