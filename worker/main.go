package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/wlwv-tools/school-calendar/backend/internal/config"
	"github.com/wlwv-tools/school-calendar/backend/internal/dedupe"
	"github.com/wlwv-tools/school-calendar/backend/internal/elasticsearch"
	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
	"github.com/wlwv-tools/school-calendar/backend/internal/logger"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

// rawPayload is the envelope producers publish: one raw calendar
// response plus enough context to normalize it.
type rawPayload struct {
	School      string `json:"school"`
	Department  string `json:"department"`
	Month       string `json:"month,omitempty"` // YYYY-MM
	ContentType string `json:"content_type,omitempty"`
	Payload     string `json:"payload"`
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, elasticsearch.Indexes{
		Events:    cfg.EventsIndex,
		DayTypes:  cfg.DayTypesIndex,
		Materials: cfg.MaterialsIndex,
		Reports:   cfg.ReportsIndex,
	}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)
	runner := ingest.NewRunner(esClient, cache, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := esClient.EnsureIndexes(startupCtx); err != nil {
		log.Error("ensure indexes", slog.Any("err", err))
	}
	startupCancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("metrics listener starting", slog.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Error("metrics listener stopped", slog.Any("err", err))
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaDLQTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaDLQTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, runner, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Send to DLQ with error context, retry with backoff
			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("message sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
						// Continue to next attempt
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// pipelineRunner is the slice of ingest.Runner processMessage needs.
type pipelineRunner interface {
	Run(ctx context.Context, in ingest.Input) *ingest.Report
}

func processMessage(ctx context.Context, log *slog.Logger, runner pipelineRunner, msg kafka.Message) error {
	var env rawPayload
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	school := models.School(strings.TrimSpace(env.School))
	if !school.Valid() {
		return fmt.Errorf("unknown school %q", env.School)
	}
	if strings.TrimSpace(env.Payload) == "" {
		return errors.New("empty payload")
	}
	if env.Month != "" {
		if _, err := time.Parse("2006-01", env.Month); err != nil {
			return fmt.Errorf("bad month %q: %w", env.Month, err)
		}
	}

	report := runner.Run(ctx, ingest.Input{
		Payload:     []byte(env.Payload),
		ContentType: env.ContentType,
		School:      school,
		Department:  strings.TrimSpace(env.Department),
		Month:       env.Month,
	})

	log.Info("processed payload",
		slog.String("school", string(school)),
		slog.String("month", env.Month),
		slog.Int("processed", report.Processed),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)),
	)
	return nil
}
