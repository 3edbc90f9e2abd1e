package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wlwv-tools/school-calendar/backend/internal/config"
	"github.com/wlwv-tools/school-calendar/backend/internal/elasticsearch"
	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
	"github.com/wlwv-tools/school-calendar/backend/internal/logger"
	"github.com/wlwv-tools/school-calendar/backend/internal/source"
)

func main() {
	log := logger.New("scheduler")
	cfg, err := config.LoadScheduler()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Retry Elasticsearch connection with backoff
	var esClient *elasticsearch.Client
	maxRetries := 10
	retryDelay := 2 * time.Second

	idx := elasticsearch.Indexes{
		Events:    cfg.EventsIndex,
		DayTypes:  cfg.DayTypesIndex,
		Materials: cfg.MaterialsIndex,
		Reports:   cfg.ReportsIndex,
	}

	for i := 0; i < maxRetries; i++ {
		esClient, err = elasticsearch.New(cfg.ElasticsearchAddr, idx, log)
		if err != nil {
			log.Warn("failed to create elasticsearch client, retrying",
				slog.Any("err", err),
				slog.Int("attempt", i+1),
				slog.Int("max_retries", maxRetries),
			)
		} else {
			// Verify connectivity with ping
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if pingErr := esClient.Ping(pingCtx); pingErr == nil {
				cancel()
				break
			} else {
				log.Warn("elasticsearch ping failed, retrying",
					slog.Any("err", pingErr),
					slog.Int("attempt", i+1),
					slog.Int("max_retries", maxRetries),
					slog.Duration("retry_in", retryDelay),
				)
			}
			cancel()
		}

		select {
		case <-time.After(retryDelay):
			// Continue to next attempt
		case <-ctx.Done():
			log.Info("shutdown signal received during startup")
			os.Exit(0)
		}
		retryDelay *= 2 // Exponential backoff
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	// Final check
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if esClient == nil || esClient.Ping(pingCtx) != nil {
		log.Error("failed to connect to elasticsearch after retries")
		os.Exit(1)
	}

	log.Info("connected to elasticsearch")

	ensureCtx, ensureCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := esClient.EnsureIndexes(ensureCtx); err != nil {
		log.Error("ensure indexes", slog.Any("err", err))
	}
	ensureCancel()

	strategies, err := source.Load(cfg.StrategiesPath)
	if err != nil {
		log.Error("load strategies", slog.Any("err", err))
		os.Exit(1)
	}

	job := &scrapeJob{
		log:        log,
		cfg:        cfg,
		es:         esClient,
		runner:     ingest.NewRunner(esClient, nil, log),
		fetcher:    source.NewClient(cfg.FetchTimeout, log),
		strategies: strategies,
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, func() { job.run(ctx) }); err != nil {
		log.Error("bad cron spec", slog.String("spec", cfg.CronSpec), slog.Any("err", err))
		os.Exit(1)
	}
	c.Start()

	log.Info("scheduler running",
		slog.String("cron", cfg.CronSpec),
		slog.Int("schools", len(cfg.Schools)),
		slog.Duration("report_max_age", cfg.ReportMaxAge),
	)

	// Run immediately on start so a fresh deploy is not empty until the
	// first cron tick.
	job.run(ctx)

	<-ctx.Done()
	log.Info("shutdown signal received")
	stopCtx := c.Stop()
	<-stopCtx.Done()
}

type scrapeJob struct {
	log        *slog.Logger
	cfg        *config.Scheduler
	es         *elasticsearch.Client
	runner     *ingest.Runner
	fetcher    *source.Client
	strategies []source.Strategy
}

func (j *scrapeJob) run(ctx context.Context) {
	month := time.Now().UTC().Format("2006-01")

	for _, school := range j.cfg.Schools {
		subCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)

		report := j.runner.RunStrategies(subCtx, j.fetcher, j.strategies, ingest.Input{
			School:     school,
			Department: j.cfg.Department,
			Month:      month,
		})

		j.log.Info("scrape run completed",
			slog.String("school", string(school)),
			slog.String("month", month),
			slog.Int("processed", report.Processed),
			slog.Int("inserted", report.Inserted),
			slog.Int("skipped", report.Skipped),
			slog.Int("errors", len(report.Errors)),
		)

		if err := j.es.IndexReport(subCtx, elasticsearch.ReportDocument{
			School: string(school),
			Month:  month,
			Report: report,
		}); err != nil {
			j.log.Warn("index report failed", slog.Any("err", err))
		}

		cancel()
	}

	j.prune(ctx)
}

func (j *scrapeJob) prune(ctx context.Context) {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := j.es.DeleteReportsOlderThan(subCtx, j.cfg.ReportMaxAge, j.cfg.ReportBatchSize)
	if err != nil {
		j.log.Warn("report retention failed (will retry on next run)", slog.Any("err", err))
		return
	}

	if deleted > 0 {
		j.log.Info("report retention completed", slog.Int64("deleted", deleted))
	} else {
		j.log.Debug("report retention completed, no old reports found")
	}
}
