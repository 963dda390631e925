// cmd/intake-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"weekly-intake/internal/admin"
	"weekly-intake/internal/api"
	commonaws "weekly-intake/internal/common/aws"
	"weekly-intake/internal/common/camunda"
	"weekly-intake/internal/common/config"
	"weekly-intake/internal/common/database"
	apphttp "weekly-intake/internal/common/http"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/observability"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/ipinfo"
	"weekly-intake/internal/notify"
	"weekly-intake/internal/photos"
	"weekly-intake/internal/questions"
	"weekly-intake/internal/search"
	"weekly-intake/internal/store"
	"weekly-intake/internal/week"
	"weekly-intake/internal/window"

	cwq "weekly-intake/internal/workers/admin/create-weekly-questions"
	swa "weekly-intake/internal/workers/intake/submit-application"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if cfg.Backend.UsingEmbeddedDefaults {
		if cfg.App.Environment != "development" {
			zapLog.Warn("backend credentials not configured, using embedded development defaults",
				zap.String("backendUrl", cfg.Backend.URL))
		} else {
			zapLog.Info("using embedded development backend", zap.String("backendUrl", cfg.Backend.URL))
		}
	}

	obs := observability.New(cfg.App.Name, log)

	ctx := context.Background()

	// --- PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")
	if err := pg.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		zapLog.Warn("postgres pool metrics unavailable", zap.Error(err))
	}

	if err := store.EnsureSchema(ctx, pg.DB); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	checks := []api.Check{{Name: "postgres", Ping: pg.Ping}}

	// --- Redis, optional ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, stats cache disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
			checks = append(checks, api.Check{Name: "redis", Ping: rdb.Ping})
			if err := rdb.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
				zapLog.Warn("redis pool metrics unavailable", zap.Error(err))
			}
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Elasticsearch, optional ---
	var index *search.Index
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := esClient.Ping(ctx); err != nil {
				return err
			}
			return esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, search.Mapping)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, search disabled", zap.Error(err))
		} else {
			index = search.NewIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
			checks = append(checks, api.Check{Name: "elasticsearch", Ping: esClient.Ping})
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Domain ---
	calc := week.NewCalculator(cfg.Intake.Location())
	clock := week.SystemClock{}
	pgStore := store.NewPostgres(pg.DB)
	httpClient := apphttp.NewClient(config.GetDuration(cfg.HTTP.ClientTimeout))

	provider := questions.NewProvider(pgStore, calc, clock, log)
	win := window.New(provider, clock)

	rules := intake.Rules{
		MaxPhotoBytes: cfg.Intake.MaxPhotoBytes,
		PhotoTypes:    cfg.Intake.PhotoTypes,
		PhotoRequired: cfg.Intake.PhotoRequired,
	}

	pipeline := intake.NewPipeline(intake.Deps{
		Window: win,
		Store:  pgStore,
		Photos: photos.NewUploader(httpClient, photos.Config{
			BaseURL:      cfg.Backend.URL,
			APIKey:       cfg.Backend.APIKey,
			Bucket:       cfg.Storage.Bucket,
			CacheControl: cfg.Storage.CacheControl,
		}),
		IP:       ipinfo.NewResolver(httpClient, cfg.Intake.IPLookupURL, log),
		Calc:     calc,
		Clock:    clock,
		Logger:   log,
		Observer: obs,
	})

	adminDeps := admin.Deps{
		Store:  pgStore,
		Window: win,
		Calc:   calc,
		Clock:  clock,
		Logger: log,
		Config: admin.Config{
			StatsCacheTTL: config.GetDuration(cfg.Admin.StatsCacheTTL),
			RecentLimit:   cfg.Admin.RecentLimit,
		},
	}
	if rdb != nil {
		adminDeps.Redis = rdb.Client
	}
	if index != nil {
		adminDeps.Search = index
		pipeline.AddHook(index.Hook())
	}
	adminSvc := admin.NewService(adminDeps)
	pipeline.AddHook(adminSvc.InvalidateHook())

	if notifier := buildNotifier(ctx, cfg, log, zapLog); notifier != nil {
		for _, h := range notifier.Hooks() {
			pipeline.AddHook(h)
		}
	}

	// --- Zeebe workers, optional ---
	var zeebe *camunda.Client
	if config.IsWorkerEnabled(cfg, swa.TaskType) || config.IsWorkerEnabled(cfg, cwq.TaskType) {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			}, obs, log)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks = append(checks, api.Check{Name: "zeebe", Ping: zeebe.HealthCheck})

		if wcfg := config.GetWorkerConfig(cfg, swa.TaskType); wcfg.Enabled {
			handler := swa.NewHandler(
				&swa.Config{
					Timeout: config.GetDuration(wcfg.Timeout),
					Rules:   rules,
				},
				win, pipeline, log,
			)
			zeebe.Register(swa.TaskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler)
		}

		if wcfg := config.GetWorkerConfig(cfg, cwq.TaskType); wcfg.Enabled {
			handler := cwq.NewHandler(
				&cwq.Config{Timeout: config.GetDuration(wcfg.Timeout)},
				provider, log,
			)
			zeebe.Register(cwq.TaskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler)
		}
	}

	// --- HTTP ---
	handler := api.NewHandler(api.Config{
		Logger:    log,
		Window:    win,
		Questions: provider,
		Pipeline:  pipeline,
		Rules:     rules,
		Admin:     adminSvc,
		Checks:    checks,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	obs.Shutdown(shutdownCtx)
	zapLog.Info("Intake server stopped gracefully")
}

// buildNotifier returns nil when neither SES nor SNS is enabled.
func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *notify.Notifier {
	aws := cfg.Integrations.AWS

	var email notify.EmailSender
	if aws.SES.Enabled && cfg.Notifications.Email.Enabled {
		client, err := commonaws.NewSESClient(ctx, aws.Region)
		if err != nil {
			zapLog.Warn("SES client unavailable, confirmations disabled", zap.Error(err))
		} else {
			email = client
		}
	}

	var sns notify.Publisher
	if aws.SNS.Enabled && cfg.Notifications.Admin.Enabled {
		client, err := commonaws.NewSNSClient(ctx, aws.Region)
		if err != nil {
			zapLog.Warn("SNS client unavailable, admin alerts disabled", zap.Error(err))
		} else {
			sns = client
		}
	}

	if email == nil && sns == nil {
		return nil
	}
	return notify.New(notify.Config{
		FromEmail:    aws.SES.FromEmail,
		EmailSubject: cfg.Notifications.Email.Subject,
		TopicARN:     aws.SNS.TopicARN,
	}, email, sns, log)
}
