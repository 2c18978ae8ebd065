// Package device reduces loosely shaped device records from the telemetry
// service into canonical facts: identity, display name, coordinates and
// freshness. Every accessor tolerates missing or mistyped fields.
package device

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Record is a raw device payload as decoded from JSON, possibly merged from
// several telemetry categories.
type Record map[string]any

// Lookup walks a dotted path ("user.data.id") through nested objects.
func (r Record) Lookup(path string) (any, bool) {
	var current any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

// Number returns the field at path as a float64 when it is numeric or a
// numeric string.
func (r Record) Number(path string) (float64, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return 0, false
	}
	return toNumber(v)
}

// Truthy reports whether the field at path is set to something other than
// a zero value (nil, "", 0, false, NaN).
func (r Record) Truthy(path string) bool {
	v, ok := r.Lookup(path)
	return ok && truthy(v)
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case Record:
		return obj, true
	case map[string]any:
		return obj, true
	default:
		return nil, false
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case bool, nil:
		return 0, false
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}

	if isNumeric(v) {
		f, ok := toNumber(v)
		return ok && f != 0
	}
	return true
}

// firstTruthy returns the first set field among paths, in order.
func (r Record) firstTruthy(paths ...string) (any, bool) {
	for _, path := range paths {
		if v, ok := r.Lookup(path); ok && truthy(v) {
			return v, true
		}
	}
	return nil, false
}

func toText(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return cast.ToString(int64(f))
	}
	return cast.ToString(v)
}
