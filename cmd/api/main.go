package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/0SalvadOr0/Intus-sub001/internal/config"
	handlers "github.com/0SalvadOr0/Intus-sub001/internal/http/handler"
	"github.com/0SalvadOr0/Intus-sub001/internal/http/middleware"
	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	otelx "github.com/0SalvadOr0/Intus-sub001/internal/otel"
	"github.com/0SalvadOr0/Intus-sub001/internal/ratelimit"
	"github.com/0SalvadOr0/Intus-sub001/internal/service"
	"github.com/0SalvadOr0/Intus-sub001/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if cfg.APIKey == "" {
		log.Fatal("API_KEY must be configured")
	}

	shutdownTracing, err := otelx.Init(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}

	// Category directories are created once here, never per request.
	store, err := storage.NewLocal(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	var mirror storage.Mirror
	if cfg.Mirror.Endpoint != "" {
		mirror, err = storage.NewMinIOMirror(cfg.Mirror)
		if err != nil {
			log.Fatalf("failed to initialize backup mirror: %v", err)
		}
	}

	limiter, err := newLimiter(ctx, cfg.RateLimit)
	if err != nil {
		log.Fatalf("failed to initialize rate limiter: %v", err)
	}

	docSvc := service.NewDocumentService(store, mirror, cfg.Storage.MaxUploadBytes, cfg.Storage.PublicPrefix, map[model.Category]string{
		model.CategoryAttachment: cfg.Storage.AttachmentDir,
		model.CategoryArchive:    cfg.Storage.ArchiveDir,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Slightly above the validator limit so the framing layer only
		// trips on grossly oversized bodies; everything else gets the
		// validator's specific error.
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowedOrigins}))
	app.Use(otelfiber.Middleware())
	app.Use(metrics.Handler())

	handlers.RegisterRoutes(app, cfg.APIKey, limiter, docSvc, metrics)

	// Stored files are public: one static mount per category directory so
	// the temp directory is never exposed.
	app.Static(cfg.Storage.PublicPrefix+"/"+cfg.Storage.AttachmentDir, filepath.Join(cfg.Storage.Root, cfg.Storage.AttachmentDir))
	app.Static(cfg.Storage.PublicPrefix+"/"+cfg.Storage.ArchiveDir, filepath.Join(cfg.Storage.Root, cfg.Storage.ArchiveDir))

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

// newLimiter picks the limiter backend: Redis when configured (shared
// counters across instances), in-memory otherwise.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Limiter, error) {
	tiers := map[ratelimit.Tier]ratelimit.Config{
		ratelimit.TierUpload:  {Limit: cfg.UploadLimit, Window: cfg.UploadWindow},
		ratelimit.TierGeneral: {Limit: cfg.GeneralLimit, Window: cfg.GeneralWindow},
	}

	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(tiers, nil), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return ratelimit.NewRedis(ctx, client, "ratelimit:", tiers)
}
