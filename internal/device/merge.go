package device

import (
	jsonmerge "github.com/apapsch/go-jsonmerge/v2"
)

// Merge deep-merges category payloads into one record. Later records win on
// conflicting scalars and nested objects are merged key by key. Inputs are
// left untouched.
func Merge(records ...Record) Record {
	merged := map[string]any{}

	for _, rec := range records {
		if len(rec) == 0 {
			continue
		}
		merger := &jsonmerge.Merger{CopyNonexistent: true}
		out, ok := merger.Merge(merged, cloneValue(map[string]any(rec))).(map[string]any)
		if ok {
			merged = out
		}
	}

	return Record(merged)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Record:
		return cloneValue(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
