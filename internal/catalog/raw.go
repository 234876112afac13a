package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one catalog record as decoded from the wire, in whichever
// historical shape the backend sent it.
type RawRecord map[string]any

// RawPage is a catalog page envelope: {success, data: {items, total, page, limit, totalPages}}.
type RawPage map[string]any

// layered looks a key up in each record in turn, so a variant can inherit
// what its design carries.
type layered []RawRecord

func (l layered) value(key string) (any, bool) {
	for _, r := range l {
		if r == nil {
			continue
		}
		if v, ok := r[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (l layered) str(keys ...string) string {
	for _, key := range keys {
		v, ok := l.value(key)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

func (l layered) decimal(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		v, ok := l.value(key)
		if !ok {
			continue
		}
		if d, ok := asDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func (l layered) int(keys ...string) (int, bool) {
	d, ok := l.decimal(keys...)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

func (l layered) object(key string) (RawRecord, bool) {
	v, ok := l.value(key)
	if !ok {
		return nil, false
	}
	return asObject(v)
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func asObject(v any) (RawRecord, bool) {
	switch t := v.(type) {
	case RawRecord:
		return t, true
	case map[string]any:
		return RawRecord(t), true
	default:
		return nil, false
	}
}

func asObjects(v any) []RawRecord {
	switch t := v.(type) {
	case []RawRecord:
		return t
	case []any:
		out := make([]RawRecord, 0, len(t))
		for _, item := range t {
			if obj, ok := asObject(item); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		return nil
	}
}

func recordID(r layered) string {
	return r.str("_id", "id")
}
