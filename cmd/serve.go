package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	httpadapter "github.com/SVAnbarasan/ZeroByX/adapters/http"
	"github.com/SVAnbarasan/ZeroByX/adapters/process"
	"github.com/SVAnbarasan/ZeroByX/adapters/search"
	"github.com/SVAnbarasan/ZeroByX/adapters/websocket"
	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	agent, personas, gen, err := newAgent(ctx, cfg)
	if err != nil {
		return err
	}

	var runner domain.Runner
	switch cfg.RelayMode {
	case config.RelayModeInProcess:
		runner = usecase.NewInProcessRunner(agent)
	default:
		if runner, err = process.NewRelay(cfg.AgentCommand); err != nil {
			return err
		}
	}
	chat := usecase.NewChatService(runner, cfg.RelayTimeout)

	searcher := search.NewSerpAPI(cfg.SerpAPIKey, search.WithTimeout(cfg.SearchTimeout))
	searchSvc := usecase.NewSearchService(searcher, gen, cfg.SearchModel, cfg.ModelTimeout)

	wsServer := websocket.NewServer(chat, personas, cfg.CORSOrigins)

	e := newEcho(cfg)
	var auth *httpadapter.Auth
	if cfg.AuthEnabled() {
		auth = httpadapter.NewAuth(cfg.JWTSecret, cfg.APIKey, cfg.APISecret, cfg.JWTExpiry)
	}
	handler := httpadapter.NewHandler(chat, searchSvc, personas, wsServer.Hub().ClientCount)
	handler.Register(e, auth, wsServer.Handler, cfg.MaxConcurrentAgents)

	logger := log.WithCtx(ctx)
	logger.Info("Starting server",
		zap.String("port", cfg.Port),
		zap.String("llm_provider", cfg.LlmProvider),
		zap.String("relay_mode", cfg.RelayMode),
		zap.Bool("auth", auth != nil),
		zap.Bool("prompt_cache", cfg.PromptCacheEnabled),
	)
	for _, p := range personas.List() {
		logger.Info("Persona route", zap.String("route", "/"+p.ID), zap.String("model", p.Model))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsServer.RunHub(gctx)
		return nil
	})
	g.Go(func() error {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpadapter.ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(httpadapter.RequestContext)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithCtx(c.Request().Context()).Info("HTTP request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitPerSecond))))

	e.Use(httpadapter.PreflightStatus)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
		},
		MaxAge: 86400,
	}))

	e.Use(middleware.BodyLimit("1M"))
	return e
}
