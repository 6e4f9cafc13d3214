package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wnsxk2/jt-log/internal/auth"
	"github.com/wnsxk2/jt-log/internal/config"
	"github.com/wnsxk2/jt-log/internal/event"
	handler "github.com/wnsxk2/jt-log/internal/handler/http"
	"github.com/wnsxk2/jt-log/internal/repository"
	"github.com/wnsxk2/jt-log/internal/repository/memory"
	"github.com/wnsxk2/jt-log/internal/repository/postgres"
	redisrepo "github.com/wnsxk2/jt-log/internal/repository/redis"
	"github.com/wnsxk2/jt-log/internal/service"
	"github.com/wnsxk2/jt-log/migrations"
	"github.com/wnsxk2/jt-log/pkg/database"
	"github.com/wnsxk2/jt-log/pkg/health"
	pkgkafka "github.com/wnsxk2/jt-log/pkg/kafka"
	"github.com/wnsxk2/jt-log/pkg/middleware"
	"github.com/wnsxk2/jt-log/pkg/tracing"
)

const (
	serviceName    = "auth"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	janitor        *service.SessionJanitor
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// stores is the persistence selected by STORE_BACKEND.
type stores struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	st, err := a.openStores(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Events are optional; without brokers they are dropped.
	var events service.EventPublisher = event.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		}, logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("no kafka brokers configured, events will not be published")
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.AccessTokenProfile(), cfg.RefreshTokenProfile())
	hasher := auth.NewPasswordHasher(auth.BcryptCost)
	authService := service.NewAuthService(st.identities, st.sessions, jwtManager, hasher, events, logger)
	profileService := service.NewProfileService(st.identities, logger)

	a.janitor = service.NewSessionJanitor(authService, cfg.SessionSweepInterval, logger)
	a.limiter = middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, 10*time.Minute, logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		AuthService:    authService,
		ProfileService: profileService,
		JWTManager:     jwtManager,
		Health:         healthHandler,
		RateLimiter:    a.limiter,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
		},
		PprofCIDRs:    cfg.PprofAllowedCIDRs,
		SecureCookies: cfg.IsProduction(),
		Logger:        logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStores connects the configured backend and registers its health checks.
func (a *App) openStores(ctx context.Context, hh *health.Handler) (*stores, error) {
	cfg := a.cfg

	if cfg.StoreBackend == config.StoreMemory {
		a.logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			identities: memory.NewIdentityRepository(),
			sessions:   memory.NewSessionRepository(),
		}, nil
	}

	// Identities always live in PostgreSQL outside the memory backend.
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	hh.RegisterCritical("postgres", pool.Ping)
	st := &stores{
		identities: postgres.NewIdentityRepository(pool),
		sessions:   postgres.NewSessionRepository(pool),
	}

	if cfg.StoreBackend == config.StoreRedis {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		a.logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

		hh.RegisterCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		st.sessions = redisrepo.NewSessionStore(client, redisrepo.DefaultPrefix)
	}

	return st, nil
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and background workers and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		a.janitor.Run(workersCtx)
	}()
	go func() {
		defer workers.Done()
		a.limiter.Run(workersCtx)
	}()

	// Workers use the stores, so they stop before Shutdown closes them.
	stop := func() {
		stopWorkers()
		workers.Wait()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		return errors.Join(err, a.Shutdown())
	}

	stop()
	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close outbound connections.
	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
