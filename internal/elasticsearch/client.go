package elasticsearch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/wlwv-tools/school-calendar/backend/internal/models"
)

// Indexes names the four indices the backend uses.
type Indexes struct {
	Events    string
	DayTypes  string
	Materials string
	Reports   string
}

// Client wraps go-elasticsearch with helpers tailored to the calendar
// store: events are append-only with deterministic IDs, day types are
// keyed by date, materials by generated ID, and pipeline reports are
// kept for inspection until retention prunes them.
type Client struct {
	es  *elasticsearch.Client
	idx Indexes
	log *slog.Logger
}

// New instantiates the store client.
func New(addr string, idx Indexes, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, idx: idx, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health pings the cluster to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Keyword mappings keep date strings sortable; ISO dates sort
// chronologically as plain strings.
var indexMappings = map[string]string{
	"events": `{
		"mappings": {
			"properties": {
				"school":      {"type": "keyword"},
				"date":        {"type": "keyword"},
				"time":        {"type": "keyword"},
				"title":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
				"department":  {"type": "keyword"},
				"description": {"type": "text"},
				"created_at":  {"type": "date"}
			}
		}
	}`,
	"day_types": `{
		"mappings": {
			"properties": {
				"date": {"type": "keyword"},
				"type": {"type": "keyword"}
			}
		}
	}`,
	"materials": `{
		"mappings": {
			"properties": {
				"school":      {"type": "keyword"},
				"date":        {"type": "keyword"},
				"grade_level": {"type": "integer"},
				"title":       {"type": "text"},
				"link":        {"type": "keyword"},
				"created_at":  {"type": "date"}
			}
		}
	}`,
	"reports": `{
		"mappings": {
			"properties": {
				"school":    {"type": "keyword"},
				"month":     {"type": "keyword"},
				"timestamp": {"type": "date"}
			}
		}
	}`,
}

// EnsureIndexes creates any missing indices with their mappings. Safe to
// call on every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for kind, index := range map[string]string{
		"events":    c.idx.Events,
		"day_types": c.idx.DayTypes,
		"materials": c.idx.Materials,
		"reports":   c.idx.Reports,
	} {
		existsRes, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", index, err)
		}
		existsRes.Body.Close()
		if existsRes.StatusCode == http.StatusOK {
			continue
		}

		createRes, err := c.es.Indices.Create(
			index,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(strings.NewReader(indexMappings[kind])),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		body, _ := io.ReadAll(createRes.Body)
		createRes.Body.Close()
		if createRes.IsError() {
			return fmt.Errorf("create index %s failed: %s", index, strings.TrimSpace(string(body)))
		}
		c.log.Info("created index", slog.String("index", index))
	}
	return nil
}

// EventDocID hashes the dedup key into a deterministic document ID.
// Inputs are used byte-exact; no case or whitespace normalization.
func EventDocID(school models.School, date, title string) string {
	s := sha1.Sum([]byte(string(school) + "|" + date + "|" + title))
	return hex.EncodeToString(s[:])
}

// ExistsEvent reports whether an event with this exact (school, date,
// title) key is already stored.
func (c *Client) ExistsEvent(ctx context.Context, school models.School, date, title string) (bool, error) {
	req := esapi.ExistsRequest{
		Index:      c.idx.Events,
		DocumentID: EventDocID(school, date, title),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return false, fmt.Errorf("exists event: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists event: unexpected status %s", res.Status())
	}
}

// InsertEvent writes one canonical event and returns its document ID.
func (c *Client) InsertEvent(ctx context.Context, ev models.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = EventDocID(ev.School, ev.Date, ev.Title)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if err := c.index(ctx, c.idx.Events, ev.ID, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// SearchEvents returns all events for a school ordered by date then time.
func (c *Client) SearchEvents(ctx context.Context, school models.School) ([]models.Event, error) {
	body := map[string]any{
		"size": 10000,
		"query": map[string]any{
			"term": map[string]any{"school": string(school)},
		},
		"sort": []map[string]any{
			{"date": map[string]any{"order": "asc"}},
			{"time": map[string]any{"order": "asc", "missing": "_first"}},
		},
	}

	var out []models.Event
	err := c.search(ctx, c.idx.Events, body, func(raw json.RawMessage) error {
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

// ListDayTypes returns every day-type row ordered by date.
func (c *Client) ListDayTypes(ctx context.Context) ([]models.DayType, error) {
	body := map[string]any{
		"size":  10000,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []map[string]any{{"date": map[string]any{"order": "asc"}}},
	}

	var out []models.DayType
	err := c.search(ctx, c.idx.DayTypes, body, func(raw json.RawMessage) error {
		var dt models.DayType
		if err := json.Unmarshal(raw, &dt); err != nil {
			return err
		}
		out = append(out, dt)
		return nil
	})
	return out, err
}

// PutDayType upserts the label for one date; the date is the document ID.
func (c *Client) PutDayType(ctx context.Context, dt models.DayType) error {
	return c.index(ctx, c.idx.DayTypes, dt.Date, dt)
}

// DeleteDayType clears the label for a date. Missing rows are fine.
func (c *Client) DeleteDayType(ctx context.Context, date string) error {
	return c.delete(ctx, c.idx.DayTypes, date)
}

// ListMaterials returns a school's materials ordered by date then grade.
func (c *Client) ListMaterials(ctx context.Context, school models.School) ([]models.Material, error) {
	body := map[string]any{
		"size": 10000,
		"query": map[string]any{
			"term": map[string]any{"school": string(school)},
		},
		"sort": []map[string]any{
			{"date": map[string]any{"order": "asc"}},
			{"grade_level": map[string]any{"order": "asc"}},
		},
	}

	var out []models.Material
	err := c.search(ctx, c.idx.Materials, body, func(raw json.RawMessage) error {
		var m models.Material
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// InsertMaterial writes one material and returns its generated ID.
func (c *Client) InsertMaterial(ctx context.Context, m models.Material) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if err := c.index(ctx, c.idx.Materials, m.ID, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// DeleteMaterial removes one material by ID.
func (c *Client) DeleteMaterial(ctx context.Context, id string) error {
	return c.delete(ctx, c.idx.Materials, id)
}

// ReportDocument wraps a pipeline report for the reports index.
type ReportDocument struct {
	School    string    `json:"school"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
	Report    any       `json:"report"`
}

// IndexReport stores one pipeline report for later inspection.
func (c *Client) IndexReport(ctx context.Context, doc ReportDocument) error {
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}
	return c.index(ctx, c.idx.Reports, uuid.NewString(), doc)
}

// DeleteReportsOlderThan prunes stored reports using batched
// delete-by-query, looping until a batch comes back short.
func (c *Client) DeleteReportsOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.idx.Reports},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

func (c *Client) index(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func (c *Client) delete(ctx context.Context, index, id string) error {
	req := esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

func (c *Client) search(ctx context.Context, index string, body map[string]any, each func(json.RawMessage) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}

	for _, hit := range parsed.Hits.Hits {
		if err := each(hit.Source); err != nil {
			return fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
	}

	return nil
}
