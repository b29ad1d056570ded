package wire

import (
	"strings"
)

// NormalizeSnowflakes walks a loosely decoded payload and converts every
// identifier field to uint64: fields named "id" or ending in "_id", and
// each element of fields ending in "_ids". Other numeric fields are left
// untouched. The walk recurses through nested maps and slices; primitives
// and nil are the base case. The input is mutated in place where possible
// and also returned for convenience.
func NormalizeSnowflakes(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		for k, val := range vv {
			switch {
			case isIDKey(k):
				vv[k] = toSnowflake(val)
			case strings.HasSuffix(k, "_ids"):
				vv[k] = normalizeIDList(val)
			default:
				vv[k] = NormalizeSnowflakes(val)
			}
		}
		return vv
	case []any:
		for i, item := range vv {
			vv[i] = NormalizeSnowflakes(item)
		}
		return vv
	default:
		return v
	}
}

func isIDKey(k string) bool {
	return k == "id" || strings.HasSuffix(k, "_id")
}

func normalizeIDList(v any) any {
	list, ok := v.([]any)
	if !ok {
		return NormalizeSnowflakes(v)
	}
	for i, item := range list {
		list[i] = toSnowflake(item)
	}
	return list
}

// toSnowflake converts a decoded numeric value to uint64. Non-numeric
// values (null, strings, nested structures) pass through unchanged.
func toSnowflake(v any) any {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	case int:
		return uint64(n)
	case uint:
		return uint64(n)
	case int32:
		return uint64(n)
	case uint32:
		return uint64(n)
	case int16:
		return uint64(n)
	case uint16:
		return uint64(n)
	case int8:
		return uint64(n)
	case uint8:
		return uint64(n)
	case float64:
		return uint64(n)
	case float32:
		return uint64(n)
	default:
		return NormalizeSnowflakes(v)
	}
}
