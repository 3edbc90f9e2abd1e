package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	EventsIndex       string
	DayTypesIndex     string
	MaterialsIndex    string
	ReportsIndex      string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr          string
	StrategiesPath    string
	FetchTimeout      time.Duration
	DefaultDepartment string
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	KafkaDLQTopic  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	MetricsAddr    string
}

// Scheduler configures the cron-driven scrape and report cleanup loops.
type Scheduler struct {
	Common
	CronSpec        string
	Schools         []models.School
	Department      string
	StrategiesPath  string
	FetchTimeout    time.Duration
	ReportMaxAge    time.Duration
	ReportBatchSize int
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:            loadCommon(),
		BindAddr:          getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		StrategiesPath:    getEnv("SCRAPE_STRATEGIES_PATH", ""),
		FetchTimeout:      getDuration("SCRAPE_FETCH_TIMEOUT", "15s"),
		DefaultDepartment: getEnv("SCRAPE_DEFAULT_DEPARTMENT", "Life"),
	}

	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("SCRAPE_FETCH_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "calendar_raw"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "calendar-worker"),
		KafkaDLQTopic:  getEnv("KAFKA_DLQ_TOPIC", "calendar_raw_dlq"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		MetricsAddr:    getEnv("WORKER_METRICS_ADDR", "0.0.0.0:9091"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.DedupeTTL <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_TTL must be positive")
	}

	return c, nil
}

// LoadScheduler builds a Scheduler config from environment variables.
func LoadScheduler() (*Scheduler, error) {
	c := &Scheduler{
		Common:          loadCommon(),
		CronSpec:        getEnv("SCHEDULER_CRON", "0 6 * * *"),
		Department:      getEnv("SCRAPE_DEFAULT_DEPARTMENT", "Life"),
		StrategiesPath:  getEnv("SCRAPE_STRATEGIES_PATH", ""),
		FetchTimeout:    getDuration("SCRAPE_FETCH_TIMEOUT", "15s"),
		ReportMaxAge:    getDuration("REPORT_MAX_AGE", "720h"),
		ReportBatchSize: getInt("REPORT_BATCH_SIZE", 500),
	}

	for _, raw := range splitAndTrim(getEnv("SCHEDULER_SCHOOLS", "wlhs,wvhs")) {
		school := models.School(raw)
		if !school.Valid() {
			return nil, fmt.Errorf("SCHEDULER_SCHOOLS: unknown school %q", raw)
		}
		c.Schools = append(c.Schools, school)
	}
	if len(c.Schools) == 0 {
		return nil, fmt.Errorf("SCHEDULER_SCHOOLS must contain at least one school")
	}

	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("SCRAPE_FETCH_TIMEOUT must be positive")
	}
	if c.ReportMaxAge <= 0 {
		return nil, fmt.Errorf("REPORT_MAX_AGE must be positive")
	}
	if c.ReportBatchSize <= 0 {
		return nil, fmt.Errorf("REPORT_BATCH_SIZE must be positive")
	}

	return c, nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		EventsIndex:       getEnv("EVENTS_INDEX", "events"),
		DayTypesIndex:     getEnv("DAY_TYPES_INDEX", "day_types"),
		MaterialsIndex:    getEnv("MATERIALS_INDEX", "materials"),
		ReportsIndex:      getEnv("REPORTS_INDEX", "scrape_reports"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
