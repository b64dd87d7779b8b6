package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jade-labs/atomgraph/internal/provider"
	"github.com/jade-labs/atomgraph/internal/queue"
	mid "github.com/jade-labs/atomgraph/internal/server/middleware"
	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/engine"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/query"
	vectorpgx "github.com/jade-labs/atomgraph/pkg/vector/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the HTTP server for app with every route registered.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(mid.TraceMiddleware())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e)
	return e
}

// Init wires the engine to its stores and serves HTTP until ctx is done.
func Init(ctx context.Context, cfg util.Config) {
	st, err := provider.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal("[Server] Failed to connect to database", "err", err)
	}
	defer st.Close()

	embedder, err := provider.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("[Server] Failed to create embedding client", "err", err)
	}

	params := engine.NewEngineParams{
		Store:          st,
		Embedder:       embedder,
		Index:          vectorpgx.NewIndex(st.Pool),
		Parallel:       cfg.Fanout,
		SemanticWeight: cfg.SemanticWeight,
		TensorWeight:   cfg.TensorWeight,
	}
	if cfg.Debug {
		params.Tracer = query.LogTracer{}
	}

	if cfg.RabbitMQURL != "" {
		conn, err := queue.Init(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("[Server] Failed to connect to RabbitMQ", "err", err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("[Server] Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.ReindexQueue}); err != nil {
			logger.Fatal("[Server] Failed to declare queues", "err", err)
		}
		params.Notifier = queue.NewPublisher(ch)
	} else {
		logger.Warn("[Server] RabbitMQ not configured, writes will not be reindexed")
	}

	eng, err := engine.NewEngine(params)
	if err != nil {
		logger.Fatal("[Server] Failed to create engine", "err", err)
	}

	app := &mid.App{Engine: eng}
	if cfg.AuthURL != "" {
		k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.AuthURL + "/jwks"})
		if err != nil {
			logger.Fatal("[Server] Failed to load jwks keys", "err", err)
		}
		app.Key = k.Keyfunc
	}

	e := New(app)

	go func() {
		logger.Info("[Server] Starting server", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
}
