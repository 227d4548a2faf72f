package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/astroguide-backend/internal/chat"
	"github.com/AnshRaj112/astroguide-backend/internal/config"
	"github.com/AnshRaj112/astroguide-backend/internal/database"
	"github.com/AnshRaj112/astroguide-backend/internal/divination"
	"github.com/AnshRaj112/astroguide-backend/internal/handlers"
	"github.com/AnshRaj112/astroguide-backend/internal/insights"
	"github.com/AnshRaj112/astroguide-backend/internal/kvstore"
	"github.com/AnshRaj112/astroguide-backend/internal/logging"
	"github.com/AnshRaj112/astroguide-backend/internal/metrics"
	"github.com/AnshRaj112/astroguide-backend/internal/middleware"
	"github.com/AnshRaj112/astroguide-backend/internal/quota"
	"github.com/AnshRaj112/astroguide-backend/internal/routes"
	"github.com/AnshRaj112/astroguide-backend/internal/services"
	"github.com/AnshRaj112/astroguide-backend/internal/tarot"
	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
	"github.com/AnshRaj112/astroguide-backend/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Info("no .env file found")
	}
	if cfg.IdentitySalt == "" {
		logger.Warn("IDENTITY_SALT not set; client identities can be guessed from IP addresses")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	met, err := metrics.New(reg)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	// Redis backs the default store, the recent-readings cache and the
	// shared rate limiter. Without it the service still runs.
	var cache redis.Cmdable
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		logger.Warn("redis unavailable", zap.Error(err))
	} else {
		cache = database.RedisClient
		defer database.DisconnectRedis()
		logger.Info("redis connected")
	}

	if cfg.PostgresURI != "" {
		if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
			logger.Warn("postgres unavailable", zap.Error(err))
		} else {
			defer database.DisconnectPostgres()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := database.InitPostgresTables(ctx, database.PostgresDB); err != nil {
				logger.Warn("failed to create postgres tables", zap.Error(err))
			}
			cancel()
			logger.Info("postgres connected")
		}
	}

	store, backend := selectStore(cfg, logger)
	logger.Info("usage store ready", zap.String("backend", backend))

	var history *services.ReadingHistory
	if cfg.MongoURI != "" {
		logger.Info("connecting to MongoDB", zap.String("uri", database.MaskURI(cfg.MongoURI)))
		if err := database.Connect(cfg.MongoURI); err != nil {
			logger.Warn("mongodb unavailable, reading history disabled", zap.Error(err))
		} else {
			defer database.Disconnect()
			history = services.NewReadingHistory(database.DB.Collection(services.ReadingsCollection), cache, logger)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := history.EnsureIndexes(ctx); err != nil {
				logger.Warn("failed to ensure reading indexes", zap.Error(err))
			}
			cancel()
		}
	}

	var archive *services.ImageArchive
	if cfg.CloudinaryEnabled() {
		archive, err = services.NewImageArchive(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			logger.Warn("cloudinary disabled", zap.Error(err))
			archive = nil
		}
	}

	var flagOpts []services.UserFlagsOption
	if cfg.EncryptionKey == "" {
		logger.Warn("ENCRYPTION_KEY not set; account emails are stored in plain text")
	} else if sealer, err := utils.NewSealer(cfg.EncryptionKey); err != nil {
		logger.Warn("ENCRYPTION_KEY is invalid; account emails are stored in plain text", zap.Error(err))
	} else {
		flagOpts = append(flagOpts, services.WithEmailSealer(sealer))
	}

	deck, err := tarot.Deck()
	if err != nil {
		logger.Fatal("failed to load tarot deck", zap.Error(err))
	}
	if err := divination.ValidateHoroscopes(); err != nil {
		logger.Fatal("failed to load horoscope catalog", zap.Error(err))
	}

	h := handlers.New(handlers.Deps{
		Logger: logger,
		TarotQuota: quota.NewManager(store, cfg.TarotDailyLimit,
			quota.WithLogger(logger), quota.WithObserver(met)),
		AppQuota: quota.NewManager(store, cfg.AppDailyLimit,
			quota.WithLogger(logger), quota.WithObserver(met)),
		Drawer: tarot.NewDrawer(deck),
		Deck:   deck,
		Insights: insights.NewClient(cfg.PalmEndpoint, cfg.FaceEndpoint, cfg.InferenceTimeout,
			insights.WithLogger(logger), insights.WithObserver(met)),
		Chat: chat.NewClient(cfg.ChatEndpoint, cfg.ChatAPIKey, cfg.ChatModel, cfg.InferenceTimeout,
			chat.WithLogger(logger), chat.WithObserver(met)),
		History:        history,
		Archive:        archive,
		Flags:          services.NewUserFlags(store, logger, flagOpts...),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger, met))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders, HostCheck, per-IP limiters.
	// Non-production: Redis-based rate limit only.
	var limiters []*middleware.IPLimiter
	if cfg.IsProduction() {
		limiters = []*middleware.IPLimiter{middleware.GlobalRateLimit(), middleware.ReadingRateLimit()}
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost, limiters...) {
			r.Use(mw)
		}
		logger.Info("production security enabled")
	} else {
		r.Use(middleware.RedisRateLimit(cache, logger))
	}
	r.Use(middleware.Identity(clientid.NewResolver(cfg.IdentitySalt)))

	routes.SetupRoutes(r, h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("astroguide backend running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, l := range limiters {
		g.Go(func() error { return l.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

// selectStore returns the configured usage store, falling back to memory
// when its backend is not connected.
func selectStore(cfg *config.Config, logger *zap.Logger) (kvstore.Store, string) {
	switch {
	case cfg.StoreBackend == config.StoreRedis && database.RedisClient != nil:
		return kvstore.NewRedisStore(database.RedisClient, 0), config.StoreRedis
	case cfg.StoreBackend == config.StorePostgres && database.PostgresDB != nil:
		return kvstore.NewPostgresStore(database.PostgresDB), config.StorePostgres
	}
	if cfg.StoreBackend != config.StoreMemory {
		logger.Warn("store backend unavailable, using memory", zap.String("backend", cfg.StoreBackend))
	}
	mem, err := kvstore.NewMemoryStore(0)
	if err != nil {
		logger.Fatal("failed to create memory store", zap.Error(err))
	}
	return mem, config.StoreMemory
}
