package ingest

import (
	"encoding/json"
	"log/slog"
)

// Wrapper keys checked in fixed priority order so ambiguous payloads
// behave deterministically. Case-sensitive on purpose.
var wrapperKeys = []string{"Events", "items", "data", "events", "Items", "results"}

// extractJSON pulls raw records out of a JSON payload. The payload may
// be a bare array, an object wrapping the array under a known key, a
// Blackboard "d" envelope, or any of those serialized again as a JSON
// string. A payload that decodes to none of these yields zero records,
// not an error.
func extractJSON(payload []byte, log *slog.Logger) []RawRecord {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		log.Debug("json payload undecodable", slog.Any("err", err))
		return nil
	}
	return recordsFromValue(value, log, 0)
}

func recordsFromValue(value any, log *slog.Logger, depth int) []RawRecord {
	// Bounded: d-envelope -> string -> array is the deepest real case.
	if depth > 3 {
		return nil
	}

	switch v := value.(type) {
	case string:
		// Blackboard sometimes double-encodes the body.
		var inner any
		if err := json.Unmarshal([]byte(v), &inner); err != nil {
			log.Debug("string payload is not nested json", slog.Any("err", err))
			return nil
		}
		return recordsFromValue(inner, log, depth+1)

	case []any:
		return recordsFromList(v)

	case map[string]any:
		if d, ok := v["d"]; ok {
			if recs := recordsFromValue(d, log, depth+1); recs != nil {
				return recs
			}
		}
		for _, key := range wrapperKeys {
			if list, ok := v[key].([]any); ok {
				return recordsFromList(list)
			}
		}
	}

	return nil
}

func recordsFromList(list []any) []RawRecord {
	records := make([]RawRecord, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			records = append(records, RawRecord(m))
		}
	}
	return records
}
