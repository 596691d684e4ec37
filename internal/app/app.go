package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kairos/internal/auth"
	"kairos/internal/config"
	"kairos/internal/handlers"
	"kairos/internal/logger"
	"kairos/internal/middleware"
	"kairos/internal/repository/firestore"
	"kairos/internal/repository/inmemory"
	"kairos/internal/repository/postgres"
	"kairos/internal/repository/sqlite"
	"kairos/internal/service"
	"kairos/internal/summary"
	"kairos/internal/worker"

	firebase "firebase.google.com/go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     service.Store
	service   *service.PlannerService
	worker    *worker.DueWorker
	firebase  *firebase.App
	shutdowns []func() // функции для graceful shutdown, выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	if a.needsFirebase() {
		if err := a.initFirebase(ctx); err != nil {
			return nil, err
		}
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	verifier, err := a.verifier(ctx)
	if err != nil {
		return nil, err
	}

	narrator := summary.New(summary.Config{
		APIKey:   a.config.Summary.APIKey,
		Model:    a.config.Summary.Model,
		Endpoint: a.config.Summary.Endpoint,
		Timeout:  a.config.Summary.Timeout,
	})
	a.service = service.NewPlannerService(a.store, narrator)

	a.initRouter(verifier)

	if a.config.Worker.Enabled {
		w, err := worker.NewDueWorker(a.service, a.config.Worker.Schedule, a.config.Worker.Timezone)
		if err != nil {
			return nil, fmt.Errorf("инициализация воркера: %w", err)
		}
		a.worker = w
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.String("auth", a.config.Auth.Mode),
		zap.Bool("worker", a.config.Worker.Enabled))
	return a, nil
}

func (a *App) needsFirebase() bool {
	return a.config.Repository.Type == "firestore" || a.config.Auth.Mode == "firebase"
}

func (a *App) initFirebase(ctx context.Context) error {
	opts := make([]option.ClientOption, 0, 1)
	if a.config.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(a.config.Firestore.CredentialsFile))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: a.config.Firestore.ProjectID}, opts...)
	if err != nil {
		return fmt.Errorf("инициализация firebase: %w", err)
	}
	a.firebase = fbApp
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.config.Repository.Type {
	case "postgres":
		store, err := postgres.New(ctx, a.config.Database.URL,
			postgres.WithPoolSize(a.config.Database.MinConnections, a.config.Database.MaxConnections),
			postgres.WithIdleTimeout(a.config.Database.IdleTimeout))
		if err != nil {
			return fmt.Errorf("подключение к postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return fmt.Errorf("миграции: %w", err)
		}
		a.store = store

	case "firestore":
		store, err := firestore.New(ctx, a.firebase, a.config.Firestore.AppID)
		if err != nil {
			return fmt.Errorf("подключение к firestore: %w", err)
		}
		a.store = store

	case "sqlite":
		store, err := sqlite.New(a.config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("открытие sqlite: %w", err)
		}
		a.store = store

	default:
		logger.Warn("Данные хранятся в памяти и пропадут после остановки")
		a.store = inmemory.NewStorage()
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Закрытие хранилища...")
		a.store.Close()
	})
	return nil
}

func (a *App) verifier(ctx context.Context) (auth.Verifier, error) {
	switch a.config.Auth.Mode {
	case "jwt":
		v, err := auth.NewJWTVerifier(a.config.Auth.JWTSecret, a.config.Auth.JWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("инициализация jwt: %w", err)
		}
		return v, nil
	case "firebase":
		return auth.NewFirebaseVerifier(ctx, a.firebase)
	default:
		logger.Warn("Аутентификация выключена, все запросы идут в один аккаунт",
			zap.String("account_id", a.config.Auth.DefaultAccount))
		return auth.Static(a.config.Auth.DefaultAccount), nil
	}
}

func (a *App) initRouter(verifier auth.Verifier) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(a.config.RateLimit.RPM))

	h := handlers.NewHandler(a.service)
	h.Routes(r,
		middleware.Authenticate(verifier),
		middleware.Timeout(a.config.Server.RequestTimeout))

	a.router = r
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(r, "kairos"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown не ждёт закрытия SSE-потоков сам
	a.server.RegisterOnShutdown(h.CloseStreams)
}

// Run блокируется до отмены ctx или падения сервера
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Сервер остановлен с ошибкой", err)
			return a.server.Close()
		}
		return nil
	})

	return g.Wait()
}

func (a *App) shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
