// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"admissions-workers/internal/common/auth"
	"admissions-workers/internal/common/aws"
	"admissions-workers/internal/common/camunda"
	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/database"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/common/observability"
	"admissions-workers/internal/documents"
	"admissions-workers/internal/lifecycle"
	"admissions-workers/internal/notify"
	"admissions-workers/internal/search"
	"admissions-workers/internal/session"
	"admissions-workers/internal/store/memory"
	"admissions-workers/internal/store/postgres"

	// Admissions
	dap "admissions-workers/internal/workers/admissions/decide-application"
	ist "admissions-workers/internal/workers/admissions/institution-stats"
	lap "admissions-workers/internal/workers/admissions/list-applications"
	ndc "admissions-workers/internal/workers/admissions/notify-decision"
	sea "admissions-workers/internal/workers/admissions/search-applications"
	sap "admissions-workers/internal/workers/admissions/submit-application"
	upd "admissions-workers/internal/workers/admissions/upload-document"

	// Careers
	rja "admissions-workers/internal/workers/careers/review-job-application"
	sja "admissions-workers/internal/workers/careers/submit-job-application"

	// Auth
	alo "admissions-workers/internal/workers/auth/auth-logout"
	rss "admissions-workers/internal/workers/auth/resolve-session"
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

// deps is everything the workers are built from.
type deps struct {
	manager    *lifecycle.Manager
	directory  *postgres.Directory
	idp        *auth.KeycloakClient
	sessions   *session.Cache
	index      *search.Index
	notifier   *notify.Notifier
	documents  *documents.Service
	obs        *observability.Observability
	readyCheck []func(context.Context) error
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

	zapLog.Info("starting worker manager",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Database.Driver),
	)

	obs, err := observability.New(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	ctx := context.Background()
	var d deps
	d.obs = obs

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	d.readyCheck = append(d.readyCheck, zeebe.HealthCheck)
	zapLog.Info("Zeebe client connected successfully")

	// --- Application storage ---
	lcOpts := lifecycle.Options{MaxApplicationsPerInstitution: cfg.Lifecycle.MaxApplicationsPerInstitution}
	lcOpts.Policy, err = lifecycle.NewEligibilityPolicy(cfg.Lifecycle.EligibilityMode, cfg.Lifecycle.MinOverallMark)
	if err != nil {
		zapLog.Fatal("eligibility policy", zap.Error(err))
	}

	var (
		apps lifecycle.ApplicationStore
		jobs lifecycle.JobApplicationStore
		docs documents.Records
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
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

		if cfg.Database.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pg.DB); err != nil {
				zapLog.Fatal("schema migration failed", zap.Error(err))
			}
			zapLog.Info("schema migrated")
		}
		store := postgres.New(pg.DB)
		apps, jobs = store, store
		d.directory = postgres.NewDirectory(pg.DB)
		docs = postgres.NewDocuments(pg.DB)
		d.readyCheck = append(d.readyCheck, pg.Ping)
		zapLog.Info("PostgreSQL connected successfully")
	default:
		store := memory.New()
		apps, jobs = store, store
		zapLog.Warn("using in-memory storage; applications are lost on restart")
	}

	// --- Elasticsearch (optional) ---
	if cfg.Database.Elasticsearch.Enabled() {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		d.index = search.New(es.Client, cfg.Search, log)
		if err := d.index.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("search index setup failed", zap.Error(err))
		}
		lcOpts.Indexer = d.index
		zapLog.Info("Elasticsearch connected successfully")
	}

	d.manager = lifecycle.NewManager(apps, jobs, lcOpts, log)

	// --- Redis and identity provider ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error { return redis.Ping(ctx) }, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	d.readyCheck = append(d.readyCheck, redis.Ping)
	zapLog.Info("Redis connected successfully")

	d.idp = auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
		config.GetDuration(cfg.Auth.Keycloak.Timeout),
	)
	var principals session.Directory = d.idp
	if d.directory != nil {
		principals = d.directory
	}
	d.sessions = session.New(redis.Client, d.idp, principals, cfg.Session, log)

	// --- AWS ---
	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled || awsCfg.S3.Enabled {
		var sdk awssdk.Config
		err = retryWithBackoff(func() error {
			var err error
			sdk, err = aws.LoadConfig(ctx, awsCfg.Region)
			return err
		}, 3, time.Second, zapLog, "AWS configuration")
		if err != nil {
			zapLog.Fatal("aws configuration failed", zap.Error(err))
		}

		var email notify.EmailSender
		if awsCfg.SES.Enabled {
			email = aws.NewSESClient(sdk, awsCfg.SES.FromEmail)
		}
		var sms notify.SMSSender
		if awsCfg.SNS.Enabled {
			sms = aws.NewSNSClient(sdk, awsCfg.SNS.DefaultSMSSenderID)
		}
		d.notifier = notify.NewNotifier(email, sms, log)

		if awsCfg.S3.Enabled && docs != nil {
			blobs := aws.NewS3Client(sdk, aws.S3Options{
				Bucket:        awsCfg.S3.Bucket,
				Endpoint:      awsCfg.S3.Endpoint,
				UsePathStyle:  awsCfg.S3.UsePathStyle,
				PresignExpiry: time.Duration(awsCfg.S3.PresignExpiry) * time.Second,
			})
			d.documents = documents.NewService(blobs, docs, log)
		}
	} else {
		d.notifier = notify.NewNotifier(nil, nil, log)
	}

	workers := register(zeebe, cfg, d, log, zapLog)
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           routes(d.readyCheck),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("health/metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("health/metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("error flushing telemetry", zap.Error(err))
	}
	zapLog.Info("worker manager stopped")
}

// register opens a job subscription for every enabled worker whose
// collaborators are configured.
func register(zeebe *camunda.Client, cfg *config.Config, d deps, log logger.Logger, zapLog *zap.Logger) []*camunda.CamundaWorker {
	var started []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		wc := config.GetWorkerConfig(cfg, taskType)
		started = append(started, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
		}, handler, d.obs, log))
	}
	enabled := func(taskType string) bool {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return false
		}
		return true
	}
	skip := func(taskType, reason string) {
		zapLog.Warn("worker not started", zap.String("taskType", taskType), zap.String("reason", reason))
	}
	wc := func(taskType string) config.WorkerConfig { return config.GetWorkerConfig(cfg, taskType) }

	// --- Admissions ---
	if enabled(sap.TaskType) {
		start(sap.TaskType, sap.NewHandler(sap.ConfigFrom(wc(sap.TaskType)), d.manager, d.sessions, log))
	}
	if enabled(dap.TaskType) {
		start(dap.TaskType, dap.NewHandler(dap.ConfigFrom(wc(dap.TaskType)), d.manager, d.sessions, log).WithRecorder(d.obs))
	}
	if enabled(lap.TaskType) {
		start(lap.TaskType, lap.NewHandler(lap.ConfigFrom(wc(lap.TaskType)), d.manager, d.sessions, log))
	}
	if enabled(ist.TaskType) {
		var dir ist.Directory
		if d.directory != nil {
			dir = d.directory
		}
		start(ist.TaskType, ist.NewHandler(ist.ConfigFrom(wc(ist.TaskType)), d.manager, dir, log))
	}
	if enabled(ndc.TaskType) {
		var dir ndc.Directory = d.idp
		if d.directory != nil {
			dir = d.directory
		}
		start(ndc.TaskType, ndc.NewHandler(ndc.ConfigFrom(wc(ndc.TaskType)), d.manager, dir, d.notifier, log))
	}
	if enabled(sea.TaskType) {
		if d.index == nil {
			skip(sea.TaskType, "elasticsearch is not configured")
		} else {
			start(sea.TaskType, sea.NewHandler(sea.ConfigFrom(wc(sea.TaskType)), d.index, d.sessions, log))
		}
	}
	if enabled(upd.TaskType) {
		if d.documents == nil {
			skip(upd.TaskType, "s3 and postgres are required for documents")
		} else {
			cfgUpd := upd.ConfigFrom(wc(upd.TaskType), cfg.Integrations.AWS.S3.MaxUploadSize)
			start(upd.TaskType, upd.NewHandler(cfgUpd, d.documents, d.sessions, log))
		}
	}

	// --- Careers ---
	if enabled(sja.TaskType) {
		start(sja.TaskType, sja.NewHandler(sja.ConfigFrom(wc(sja.TaskType)), d.manager, d.sessions, log))
	}
	if enabled(rja.TaskType) {
		start(rja.TaskType, rja.NewHandler(rja.ConfigFrom(wc(rja.TaskType)), d.manager, d.sessions, log))
	}

	// --- Auth ---
	if enabled(rss.TaskType) {
		start(rss.TaskType, rss.NewHandler(rss.ConfigFrom(wc(rss.TaskType)), d.sessions, log))
	}
	if enabled(alo.TaskType) {
		aloCfg := alo.ConfigFrom(wc(alo.TaskType))
		service := alo.NewService(alo.ServiceDependencies{Sessions: d.sessions, IdP: d.idp, Logger: log}, aloCfg)
		start(alo.TaskType, alo.NewHandler(alo.HandlerOptions{Config: aloCfg, Service: service, Logger: log}))
	}

	return started
}

func routes(readyChecks []func(context.Context) error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		for _, check := range readyChecks {
			if err := check(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeStatus(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
