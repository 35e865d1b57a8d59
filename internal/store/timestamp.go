package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// CoerceTimestamp translates the remote collaborator's timestamp
// representations into the canonical RFC3339 string form. Recognized shapes:
//
//   - RFC3339 (or RFC3339Nano) strings, passed through normalized
//   - a server-generated timestamp wrapper: a map carrying seconds and
//     nanoseconds (with or without leading underscores)
//   - numeric epoch seconds
//
// Unrecognized shapes are preserved as their JSON text rather than rejected:
// one malformed record must never block the rest of a collection load.
func CoerceTimestamp(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC().Format(time.RFC3339)
		}
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return time.Unix(int64(t), 0).UTC().Format(time.RFC3339)
	case map[string]any:
		if ts, ok := timestampFromWrapper(t); ok {
			return ts
		}
	}
	// Pass the original shape through as text.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

func timestampFromWrapper(m map[string]any) (string, bool) {
	secs, ok := numberField(m, "seconds", "_seconds")
	if !ok {
		return "", false
	}
	nanos, _ := numberField(m, "nanoseconds", "_nanoseconds")
	return time.Unix(int64(secs), int64(nanos)).UTC().Format(time.RFC3339), true
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case float64:
				return n, true
			case int64:
				return float64(n), true
			case int:
				return float64(n), true
			case json.Number:
				if f, err := n.Float64(); err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

// NowRFC3339 returns the current wall-clock time in the canonical form.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
