package device

import "strings"

var sentinels = map[string]struct{}{
	"":          {},
	"undefined": {},
	"null":      {},
	"Unknown":   {},
	"unknown":   {},
	"N/A":       {},
	"n/a":       {},
}

// FormatValue returns defaultText for placeholder values (nil, empty,
// "unknown", anything mentioning "n/a") and value unchanged otherwise.
func FormatValue(value any, defaultText string) any {
	switch v := value.(type) {
	case nil:
		return defaultText
	case string:
		if _, ok := sentinels[v]; ok {
			return defaultText
		}
		if strings.Contains(strings.ToLower(v), "n/a") {
			return defaultText
		}
	}
	return value
}
