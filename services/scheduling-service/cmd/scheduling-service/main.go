package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rifat-karim/meetslot/libs/config"
	"github.com/rifat-karim/meetslot/libs/db"
	"github.com/rifat-karim/meetslot/libs/httpx"
	"github.com/rifat-karim/meetslot/libs/kafkax"
	otelx "github.com/rifat-karim/meetslot/libs/otel"
	"github.com/rifat-karim/meetslot/libs/runtime"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/availcache"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/booking"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/busytime"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/engine"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/handlers"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/outbox"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	var cache *availcache.Cache
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer rdb.Close()
		cache = availcache.New(rdb, config.DurationSeconds("AVAILABILITY_CACHE_TTL_SECONDS", 15*time.Minute))
	} else {
		logger.Warn("availability cache disabled (no REDIS_ADDR configured)")
	}

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	var providers []busytime.Provider
	for _, spec := range strings.Split(config.String("CALENDAR_CONNECTORS", ""), ",") {
		name, baseURL, ok := strings.Cut(strings.TrimSpace(spec), "=")
		if !ok || name == "" || baseURL == "" {
			continue
		}
		providers = append(providers, busytime.NewHTTPProvider(name, baseURL, nil))
	}
	fetcher := busytime.NewFetcher(providers,
		config.DurationSeconds("CALENDAR_TIMEOUT_SECONDS", 3*time.Second), logger)

	var slotCache engine.SlotCache
	var dirtyMarker booking.DirtyMarker
	if cache != nil {
		slotCache = cache
		dirtyMarker = cache
	}
	eng := engine.New(repo, fetcher, slotCache, logger)
	bookingSvc := booking.NewService(repo, outboxRepo, dirtyMarker, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	slotsHandler := handlers.NewSlotsHandler(eng, logger)
	availHandler := handlers.NewAvailabilityHandler(repo, outboxRepo, cache, logger)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if cache != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/slots", slotsHandler.Query)
	mux.HandleFunc("/api/v1/public/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/bookings/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/availability/rules", availHandler.Rules)
	mux.HandleFunc("/api/v1/availability/overrides", availHandler.Overrides)
	mux.HandleFunc("/api/v1/availability/blocks", availHandler.Blocks)
	mux.HandleFunc("/api/v1/availability/recurring-blocks", availHandler.RecurringBlocks)
	mux.HandleFunc("/api/v1/availability/buffer", availHandler.Buffer)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.DurationSeconds("REQUEST_TIMEOUT_SECONDS", 30*time.Second)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middleware = append(middleware, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         10 * time.Minute,
		}))
	}
	if rdb != nil {
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, "scheduling")
		middleware = append(middleware, limiter.Middleware(logger, true))
	} else {
		// Single-instance fallback when no Redis is configured.
		limiter := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute)
		middleware = append(middleware, limiter.Middleware())
	}

	httpHandler := httpx.Chain(mux, middleware...)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
