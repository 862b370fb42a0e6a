package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/HabitGo/internal/auth"
	"github.com/utafrali/HabitGo/internal/config"
	"github.com/utafrali/HabitGo/internal/event"
	handler "github.com/utafrali/HabitGo/internal/handler/http"
	"github.com/utafrali/HabitGo/internal/notify"
	"github.com/utafrali/HabitGo/internal/repository"
	"github.com/utafrali/HabitGo/internal/repository/postgres"
	"github.com/utafrali/HabitGo/internal/repository/redis"
	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/internal/storage"
	"github.com/utafrali/HabitGo/internal/storage/memory"
	"github.com/utafrali/HabitGo/internal/storage/minio"
	"github.com/utafrali/HabitGo/migrations"
	"github.com/utafrali/HabitGo/pkg/database"
	"github.com/utafrali/HabitGo/pkg/health"
	"github.com/utafrali/HabitGo/pkg/httpclient"
	pkgkafka "github.com/utafrali/HabitGo/pkg/kafka"
	"github.com/utafrali/HabitGo/pkg/middleware"
	"github.com/utafrali/HabitGo/pkg/tracing"
)

const (
	serviceVersion = "0.1.0"
	purgeInterval  = time.Hour
)

// App wires together all dependencies and runs the habit service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	tokenPurger    *postgres.TokenStore
	rateLimiter    *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	success := false
	defer func() {
		if !success {
			a.closeResources()
		}
	}()

	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		database.NewPoolStatsCollector(pool, "habit"),
	)

	healthHandler := health.NewHandler(3 * time.Second)
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Refresh token bookkeeping.
	var tokenStore repository.TokenStore
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		client, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		tokenStore = redis.NewTokenStore(client)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("token store: redis")
	default:
		store := postgres.NewTokenStore(pool)
		a.tokenPurger = store
		tokenStore = store
		logger.Info("token store: postgres")
	}

	// Account events.
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			WriteTimeout: 5 * time.Second,
		}, logger)
		a.producer = producer
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(a.producer, logger)

	// Avatar storage.
	var (
		avatars storage.Storage
		media   http.Handler
	)
	switch cfg.AvatarStorage {
	case config.AvatarStorageMemory:
		store := memory.New("/media")
		avatars = store
		media = handler.MediaHandler(store)
		logger.Warn("avatars are kept in memory and lost on restart")
	default:
		store, err := minio.New(ctx, minio.Config{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to object storage: %w", err)
		}
		avatars = store
		healthHandler.Register("minio", store.Ping)
		logger.Info("connected to object storage",
			slog.String("endpoint", cfg.MinioEndpoint),
			slog.String("bucket", cfg.MinioBucket),
		)
	}

	sender := newSender(cfg, registry, logger)
	logger.Info("notification sender selected", slog.String("sender", sender.Name()))

	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params())
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	// Build the dependency graph.
	users := postgres.NewUserRepository(pool)
	profiles := postgres.NewProfileRepository(pool)
	habits := postgres.NewHabitRepository(pool)
	trackings := postgres.NewTrackingRepository(pool)

	tokens := service.NewTokenService(
		auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		auth.NewResetTicketer(cfg.JWTSecret, cfg.ResetTicketTTL),
		tokenStore,
		users,
		logger,
	)
	services := handler.Services{
		Auth: service.NewAuthService(users, hasher, tokens, sender, eventProducer,
			service.NewMetrics(registry),
			service.ResetConfig{
				SiteURL:              cfg.SiteURL,
				AllowedRedirectHosts: cfg.ResetRedirectAllowedHosts,
				ConcealUnknownEmail:  cfg.ResetConcealUnknownEmail,
			},
			logger,
		),
		Tokens:   tokens,
		Users:    service.NewUserService(users, profiles, avatars, hasher, eventProducer, logger),
		Profiles: service.NewProfileService(profiles, avatars, cfg.AvatarMaxBytes, logger),
		Habits:   service.NewHabitService(habits, trackings, logger),
	}

	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, cfg.RateLimitTTL, logger)
	if err := a.rateLimiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("configure rate limiter: %w", err)
	}

	router := handler.NewRouter(services, handler.RouterConfig{
		Health:         healthHandler,
		Registry:       registry,
		RateLimiter:    a.rateLimiter,
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		AvatarMaxBytes: cfg.AvatarMaxBytes,
		Media:          media,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	success = true
	return a, nil
}

// openDatabase connects to PostgreSQL and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:                cfg.DatabaseURL,
		MaxConns:           cfg.DBMaxConns,
		MinConns:           cfg.DBMinConns,
		MaxConnLifetime:    cfg.DBMaxConnLifetime,
		MaxConnIdleTime:    cfg.DBMaxConnIdleTime,
		SlowQueryThreshold: cfg.SlowQueryThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	return pool, nil
}

func newSender(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) notify.Sender {
	switch cfg.NotifySender {
	case config.SenderSMTP:
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	case config.SenderHTTP:
		clientCfg := httpclient.DefaultConfig("mail-relay")
		clientCfg.Timeout = cfg.MailTimeout
		return notify.NewHTTPSender(httpclient.New(clientCfg, reg, logger), cfg.MailRelayURL, cfg.MailRelayToken, cfg.MailFrom)
	default:
		return notify.NewLogSender(logger)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	go a.rateLimiter.Run(ctx)
	if a.tokenPurger != nil {
		go a.purgeExpiredTokens(ctx)
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
		return err
	}

	return a.Shutdown()
}

// purgeExpiredTokens drops outstanding and blacklisted rows of expired
// refresh tokens at startup and then once per purgeInterval. Redis expires
// those keys by itself.
func (a *App) purgeExpiredTokens(ctx context.Context) {
	purge := func() {
		n, err := a.tokenPurger.PurgeExpired(ctx, time.Now().UTC())
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Error("failed to purge expired tokens", slog.String("error", err.Error()))
			}
			return
		}
		if n > 0 {
			a.logger.Info("purged expired tokens", slog.Int("count", n))
		}
	}

	purge()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	// Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

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
