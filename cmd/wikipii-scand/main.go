// @title        WikiPII Scan API
// @version      1.0
// @description  Resumable, fault-tolerant PII-scan orchestrator for a wiki corpus.
// @host         localhost:8080
// @BasePath     /
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/arc-self/wikipii-scan/internal/attachment"
	"github.com/arc-self/wikipii-scan/internal/audit"
	"github.com/arc-self/wikipii-scan/internal/checkpoint"
	"github.com/arc-self/wikipii-scan/internal/cipher"
	"github.com/arc-self/wikipii-scan/internal/detector"
	"github.com/arc-self/wikipii-scan/internal/eventstore"
	"github.com/arc-self/wikipii-scan/internal/extractor"
	"github.com/arc-self/wikipii-scan/internal/handler"
	"github.com/arc-self/wikipii-scan/internal/masking"
	"github.com/arc-self/wikipii-scan/internal/orchestrator"
	"github.com/arc-self/wikipii-scan/internal/platform/config"
	custommw "github.com/arc-self/wikipii-scan/internal/platform/middleware"
	"github.com/arc-self/wikipii-scan/internal/platform/natsclient"
	"github.com/arc-self/wikipii-scan/internal/platform/telemetry"
	"github.com/arc-self/wikipii-scan/internal/progress"
	db "github.com/arc-self/wikipii-scan/internal/repository/db"
	"github.com/arc-self/wikipii-scan/internal/source"
	"github.com/arc-self/wikipii-scan/internal/subscriber"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// ── OpenTelemetry ──────────────────────────────────────────────────────
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "wikipii-scand", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", otelEndpoint))
		}

		mp, err := telemetry.InitMeterProvider(context.Background(), "wikipii-scand", otelEndpoint)
		if err != nil {
			logger.Error("failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
		}
	}

	// ── Vault secrets ──────────────────────────────────────────────────────
	vaultAddr := os.Getenv("VAULT_ADDR")
	if vaultAddr == "" {
		vaultAddr = "http://localhost:8200"
	}
	vaultToken := os.Getenv("VAULT_TOKEN")
	if vaultToken == "" {
		vaultToken = "root"
	}
	secretPath := os.Getenv("VAULT_SECRET_PATH")
	if secretPath == "" {
		secretPath = "secret/data/arc/wikipii-scand"
	}

	var secrets map[string]interface{}
	if vaultManager, err := config.NewSecretManager(vaultAddr, vaultToken); err == nil {
		if s, err := vaultManager.GetKV2(secretPath); err == nil {
			secrets = s
		} else {
			logger.Warn("failed to load secrets from Vault, falling back to env vars", zap.Error(err))
		}
	} else {
		logger.Warn("Vault connection failed, falling back to env vars", zap.Error(err))
	}
	cfg := config.FromVault(secrets)

	// ── Database ───────────────────────────────────────────────────────────
	poolCfg, err := pgxpool.ParseConfig(cfg.PgURL)
	if err != nil {
		logger.Fatal("failed to parse PG_URL", zap.Error(err))
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database (OTel-instrumented)")

	querier := db.New(pool)

	// ── NATS JetStream (live event fan-out, §4.H) ───────────────────────────
	natsClient, err := natsclient.NewClient(cfg.NatsURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()
	if err := natsClient.ProvisionStreams(); err != nil {
		logger.Fatal("failed to provision NATS streams", zap.Error(err))
	}

	// ── Cipher (AEAD encryption-before-persist, §4.J) ───────────────────────
	var aeadCipher cipher.Cipher
	if len(cfg.EncryptionKey) == 32 {
		c, err := cipher.NewAEADCipher(cfg.EncryptionKey)
		if err != nil {
			logger.Fatal("failed to init cipher", zap.Error(err))
		}
		aeadCipher = c
	} else {
		logger.Warn("no 32-byte ENCRYPTION_KEY configured, sensitive values will not be encrypted at rest")
		aeadCipher = cipher.NoopCipher{}
	}

	// ── Redis (progress cache, §4.C monotonicity across restarts) ───────────
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse REDIS_URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis connection failed, progress cache disabled", zap.Error(err))
		redisClient = nil
	}

	// ── Domain services ──────────────────────────────────────────────────────
	auditRecorder := audit.New(querier, cfg.Audit, cfg.Retention, logger)
	eventStore := eventstore.New(querier, natsClient, aeadCipher, auditRecorder, logger)
	checkpointMgr := checkpoint.New(querier, logger)
	fanOut := subscriber.New(natsClient, logger)

	// ContentSource is an injected external collaborator (§1 Non-goals):
	// HTTPSource adapts any source exposing the generic JSON contract;
	// MemorySource is the in-process reference used when none is configured.
	var contentSource source.ContentSource
	if cfg.ContentBaseURL != "" {
		contentSource = source.NewHTTPSource(cfg.ContentBaseURL, nil)
	} else {
		logger.Warn("no CONTENT_BASE_URL configured, using in-memory reference content source")
		contentSource = source.NewMemorySource()
	}

	textExtractor := extractor.NewPlainTextExtractor()
	attachmentProc := attachment.New(contentSource, textExtractor, nil)
	piiDetector := detector.NewRegexDetector()
	masker := masking.New(cfg.Masking)

	orch := orchestrator.New(
		contentSource,
		attachmentProc,
		piiDetector,
		checkpointMgr,
		eventStore,
		masker,
		aeadCipher,
		cfg.ContentBaseURL,
		logger,
	)
	if redisClient != nil {
		orch = orch.WithProgressCache(progress.NewCache(redisClient))
	}

	// ── Background retention scheduler (graceful shutdown via context) ─────
	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	defer retentionCancel()

	scheduler := audit.NewRetentionScheduler(auditRecorder, logger)
	if err := scheduler.Start(retentionCtx); err != nil {
		logger.Fatal("failed to start audit retention scheduler", zap.Error(err))
	}

	// ── HTTP Server ────────────────────────────────────────────────────────
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("wikipii-scand"))
	e.Use(custommw.RequestScope())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			}
			if reqID, ok := custommw.GetRequestID(c.Request().Context()); ok {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if scanId, ok := custommw.GetScanId(c.Request().Context()); ok {
				fields = append(fields, zap.String("scan_id", scanId))
			}
			logger.Info("HTTP request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(custommw.NullToEmptyArray())

	h := handler.New(orch, checkpointMgr, eventStore, fanOut, auditRecorder, contentSource, logger)
	h.Register(e)

	go func() {
		logger.Info("wikipii-scand HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// ── Graceful Shutdown ──────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	retentionCancel()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Echo shutdown error", zap.Error(err))
	}
	logger.Info("wikipii-scand shut down cleanly")
}
