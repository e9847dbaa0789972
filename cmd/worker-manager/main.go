// cmd/worker-manager/main.go
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

	"github.com/gin-gonic/gin"

	"sme-cyber-assessment/internal/api"
	"sme-cyber-assessment/internal/assessment"
	awsclient "sme-cyber-assessment/internal/common/aws"
	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/config"
	"sme-cyber-assessment/internal/common/database"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/observability"
	"sme-cyber-assessment/internal/session"

	is "sme-cyber-assessment/internal/workers/assessment/index-assessment"
	ls "sme-cyber-assessment/internal/workers/assessment/load-session"
	ra "sme-cyber-assessment/internal/workers/assessment/record-assessment"
	sa "sme-cyber-assessment/internal/workers/assessment/score-assessment"
	sr "sme-cyber-assessment/internal/workers/assessment/select-recommendations"
	rep "sme-cyber-assessment/internal/workers/communication/send-report"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "console").Error("config load failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	log := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err := run(cfg, log); err != nil {
		log.Error("worker manager failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}
}

// run wires every component and blocks until a shutdown signal or an HTTP
// server failure. Deferred cleanup runs on every return path.
func run(cfg *config.Config, log logger.Logger) error {
	log.Info("starting worker manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Rules ---
	rules, err := assessment.LoadFile(cfg.Rules.Path)
	if err != nil {
		return fmt.Errorf("rules load: %w", err)
	}
	log.Info("assessment rules loaded", map[string]interface{}{
		"version":   rules.Version,
		"policy":    rules.OverallPolicy,
		"questions": len(rules.Questions),
	})

	// --- Redis (sessions) ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := session.NewRedisStore(rdb.Client, session.Options{
		KeyPrefix:    cfg.Session.KeyPrefix,
		TTL:          cfg.SessionTTL(),
		RulesVersion: rules.Version,
	}, log)

	checks := map[string]api.Check{"redis": rdb.Ping}

	// --- PostgreSQL (reports) ---
	var pg *database.PostgresClient
	if config.IsWorkerEnabled(cfg, ra.TaskType) {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema setup: %w", err)
		}
		checks["postgres"] = pg.Ping
	}

	// --- Elasticsearch (benchmarks) ---
	var esClient *database.ElasticsearchClient
	if config.IsWorkerEnabled(cfg, is.TaskType) && cfg.Database.Elasticsearch.GetURL() != "" {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return err
		}
		if err := esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.BenchmarkIndex, database.BenchmarkMapping); err != nil {
			return fmt.Errorf("benchmark index setup: %w", err)
		}
		checks["elasticsearch"] = esClient.Ping
	}

	// --- Report delivery ---
	sender, alerts, err := buildNotifiers(ctx, cfg)
	if err != nil {
		return fmt.Errorf("notification setup: %w", err)
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		return err
	}
	defer zeebe.Close()
	checks["zeebe"] = zeebe.HealthCheck
	log.Info("zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()
	start := func(taskType string, handler camunda.JobHandler) {
		wc := config.GetWorkerConfig(cfg, taskType)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, camunda.WorkerOptions{
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
			Name:          cfg.App.Name,
		}, handler, log))
	}

	if config.IsWorkerEnabled(cfg, ls.TaskType) {
		start(ls.TaskType, ls.NewHandler(ls.NewConfig(config.GetWorkerConfig(cfg, ls.TaskType)), store, obs, log))
	}
	if config.IsWorkerEnabled(cfg, sa.TaskType) {
		start(sa.TaskType, sa.NewHandler(sa.NewConfig(config.GetWorkerConfig(cfg, sa.TaskType)), rules, obs, log))
	}
	if config.IsWorkerEnabled(cfg, sr.TaskType) {
		start(sr.TaskType, sr.NewHandler(sr.NewConfig(config.GetWorkerConfig(cfg, sr.TaskType)), rules, obs, log))
	}
	if pg != nil {
		start(ra.TaskType, ra.NewHandler(ra.NewConfig(config.GetWorkerConfig(cfg, ra.TaskType)), pg.DB, obs, log))
	}
	if config.IsWorkerEnabled(cfg, is.TaskType) {
		idxCfg := is.NewConfig(config.GetWorkerConfig(cfg, is.TaskType), cfg.Database.Elasticsearch.BenchmarkIndex)
		var handler *is.Handler
		if esClient != nil {
			handler = is.NewHandler(idxCfg, esClient.Client, obs, log)
		} else {
			handler = is.NewHandler(idxCfg, nil, obs, log)
		}
		start(is.TaskType, handler)
	}
	if config.IsWorkerEnabled(cfg, rep.TaskType) {
		repCfg := rep.NewConfig(config.GetWorkerConfig(cfg, rep.TaskType), cfg.Integrations.AWS.SNS.Enabled)
		start(rep.TaskType, rep.NewHandler(repCfg, sender, alerts, obs, log))
	}
	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- HTTP ---
	router, err := buildRouter(cfg, rules, store, zeebe, checks, obs, log)
	if err != nil {
		return fmt.Errorf("http setup: %w", err)
	}
	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{
			"address":    cfg.HTTP.Address,
			"apiEnabled": cfg.HTTP.APIEnabled,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received, stopping workers", nil)
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", map[string]interface{}{"error": err})
	}

	log.Info("worker manager stopped", nil)
	return nil
}

// buildNotifiers picks SES or SMTP for report email and SNS for alerts.
// Either may be nil when disabled.
func buildNotifiers(ctx context.Context, cfg *config.Config) (rep.Sender, rep.AlertPublisher, error) {
	awsCfg := cfg.Integrations.AWS
	var (
		sender rep.Sender
		alerts rep.AlertPublisher
	)

	if awsCfg.SES.Enabled || awsCfg.SNS.Enabled {
		sdkCfg, err := awsclient.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			return nil, nil, err
		}
		if awsCfg.SES.Enabled {
			sender = awsclient.NewSESClient(sdkCfg, awsCfg.SES.FromEmail)
		}
		if awsCfg.SNS.Enabled {
			alerts = awsclient.NewSNSClient(sdkCfg, awsCfg.SNS.AlertTopicARN)
		}
	}

	smtp := cfg.Integrations.SMTP
	if sender == nil && smtp.Enabled {
		s, err := rep.NewSMTPSender(rep.SMTPConfig{
			Host:        smtp.Host,
			Port:        smtp.Port,
			Username:    smtp.Username,
			Password:    smtp.Password,
			UseTLS:      smtp.UseTLS,
			DefaultFrom: smtp.DefaultFrom,
		})
		if err != nil {
			return nil, nil, err
		}
		sender = s
	}

	return sender, alerts, nil
}

// buildRouter serves the session API when enabled, otherwise only health,
// readiness and metrics.
func buildRouter(
	cfg *config.Config,
	rules *assessment.Rules,
	store session.Store,
	starter api.ProcessStarter,
	checks map[string]api.Check,
	obs *observability.Observability,
	log logger.Logger,
) (*gin.Engine, error) {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := api.NewServer(api.Options{
		Rules:          rules,
		Store:          store,
		Starter:        starter,
		ProcessID:      cfg.Camunda.ProcessID,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Checks:         checks,
		Observability:  obs,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	if cfg.HTTP.APIEnabled {
		return srv.Router(), nil
	}
	return srv.OpsRouter(), nil
}
