package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"drive-service/internal/auth"
	"drive-service/internal/config"
	"drive-service/internal/http/handler"
	"drive-service/internal/http/middleware"
	"drive-service/pkg/logger"
	"drive-service/pkg/metrics"
	"drive-service/pkg/profiling"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	jsonKeyStatus    = "status"
	statusOK         = "ok"
	statusDegraded   = "degraded"
	requestBodyLimit = "1M"
	healthTimeout    = 2 * time.Second

	routeUploadFile = "/api/folders/:id/files"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerDependencies struct {
	Config      *config.Config
	Blocks      handler.BlockOperations
	Accounts    handler.AccountOperations
	JWTService  *auth.JWTService
	AuditLogger handler.AuditLogger
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Database    Pinger
}

type Server struct {
	echo *echo.Echo
	deps *ServerDependencies
}

func NewServer(deps *ServerDependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	if deps.Config != nil {
		e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
		e.Server.WriteTimeout = deps.Config.Server.WriteTimeout
	}

	// Request ID first, so every later log line carries it.
	e.Use(middleware.RequestID(log))
	e.Use(requestLogger(log))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomiddleware.Recover())
	e.Use(deps.Metrics.Middleware())
	e.Use(echomiddleware.BodyLimitWithConfig(echomiddleware.BodyLimitConfig{
		Limit: requestBodyLimit,
		// Uploads are bounded by the handler against the configured
		// maximum file size.
		Skipper: func(c echo.Context) bool {
			return c.Path() == routeUploadFile
		},
	}))

	globalRateLimiter := middleware.NewGlobalRateLimiter()
	e.Use(globalRateLimiter.Middleware())

	strictRateLimiter := middleware.NewStrictRateLimiter()

	var maxUploadSize int64
	if deps.Config != nil {
		maxUploadSize = deps.Config.Blob.MaxUploadSize
	}

	authHandler := handler.NewAuthHandler(deps.Accounts, deps.AuditLogger)
	blockHandler := handler.NewBlockHandler(deps.Blocks, deps.AuditLogger, maxUploadSize)
	authMiddleware := auth.NewMiddleware(deps.JWTService)

	e.POST("/auth/register", authHandler.Register, strictRateLimiter.Middleware())
	e.POST("/auth/login", authHandler.Login, strictRateLimiter.Middleware())
	e.GET("/auth/username-available", authHandler.UsernameAvailable, strictRateLimiter.Middleware())
	e.GET("/health", healthCheck(deps.Database))
	deps.Metrics.RegisterRoute(e)

	if deps.Config != nil && deps.Config.Server.EnableProfiling {
		profiling.RegisterRoutes(e, authMiddleware.RequireJWT())
	}

	api := e.Group("/api")
	api.Use(authMiddleware.RequireJWT())
	// Per-user limiting needs the identity resolved by RequireJWT.
	api.Use(globalRateLimiter.Middleware())

	api.GET("/folders/root", blockHandler.GetRoot)
	api.GET("/folders/:id", blockHandler.ListFolder)
	api.POST("/folders/:id/folders", blockHandler.CreateFolder)
	api.POST("/folders/:id/files", blockHandler.UploadFile)
	api.DELETE("/folders/:id", blockHandler.DeleteFolder)

	api.GET("/blocks/:id", blockHandler.GetBlock)
	api.PATCH("/blocks/:id", blockHandler.Rename)
	api.PUT("/blocks/:id/parent", blockHandler.Move)
	api.PUT("/blocks/:id/favorite", blockHandler.SetFavorite)

	api.DELETE("/files/:id", blockHandler.DeleteFile)
	api.GET("/files/:id/download-url", blockHandler.DownloadURL)

	api.GET("/search", blockHandler.Search)
	api.GET("/favorites", blockHandler.ListFavorites)

	return &Server{
		echo: e,
		deps: deps,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() stdhttp.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			logger.FromContext(c.Request().Context(), log).Info("request",
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}

func healthCheck(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				return c.JSON(stdhttp.StatusServiceUnavailable, map[string]string{
					jsonKeyStatus: statusDegraded,
				})
			}
		}

		return c.JSON(stdhttp.StatusOK, map[string]string{
			jsonKeyStatus: statusOK,
		})
	}
}
