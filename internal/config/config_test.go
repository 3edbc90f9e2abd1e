package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wlwv-tools/school-calendar/backend/internal/config"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("EVENTS_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "events", cfg.EventsIndex)
	require.Equal(t, "scrape_reports", cfg.ReportsIndex)
	require.Len(t, cfg.KafkaBrokers, 1)
	require.Equal(t, "kafka:9092", cfg.KafkaBrokers[0])
	require.Equal(t, "calendar_raw", cfg.KafkaTopic)
	require.Equal(t, "calendar-worker", cfg.KafkaConsumer)
	require.Equal(t, "calendar_raw_dlq", cfg.KafkaDLQTopic)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("EVENTS_INDEX", "custom_events")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_METRICS_ADDR", ":9999")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom_events", cfg.EventsIndex)
	require.Len(t, cfg.KafkaBrokers, 2)
	require.Equal(t, "broker-a:29092", cfg.KafkaBrokers[0])
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, ":9999", cfg.MetricsAddr)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("SCRAPE_STRATEGIES_PATH", "/etc/calendar/strategies.yaml")
	t.Setenv("SCRAPE_FETCH_TIMEOUT", "30s")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("MATERIALS_INDEX", "api-materials")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, "/etc/calendar/strategies.yaml", cfg.StrategiesPath)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-materials", cfg.MaterialsIndex)
	require.Equal(t, "Life", cfg.DefaultDepartment)
}

func TestLoadScheduler(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://sched-es:9200")
	t.Setenv("SCHEDULER_CRON", "30 5 * * *")
	t.Setenv("SCHEDULER_SCHOOLS", "wlhs")
	t.Setenv("REPORT_MAX_AGE", "36h")
	t.Setenv("REPORT_BATCH_SIZE", "123")

	cfg, err := config.LoadScheduler()
	require.NoError(t, err)

	require.Equal(t, "30 5 * * *", cfg.CronSpec)
	require.Equal(t, []models.School{models.SchoolWLHS}, cfg.Schools)
	require.Equal(t, 36*time.Hour, cfg.ReportMaxAge)
	require.Equal(t, 123, cfg.ReportBatchSize)
	require.Equal(t, "http://sched-es:9200", cfg.ElasticsearchAddr)
}

func TestLoadSchedulerRejectsUnknownSchool(t *testing.T) {
	t.Setenv("SCHEDULER_SCHOOLS", "wlhs,riverdale")

	_, err := config.LoadScheduler()
	require.Error(t, err)
	require.Contains(t, err.Error(), "riverdale")
}
