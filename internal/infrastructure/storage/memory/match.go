package memory

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quantstore/internal/application/port"
)

func isOperator(v any) bool {
	_, ok := operators(v)
	return ok
}

func operators(v any) (map[string]any, bool) {
	var m map[string]any
	switch x := v.(type) {
	case bson.M:
		m = x
	case map[string]any:
		m = x
	default:
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matches(d bson.M, filter bson.M) bool {
	for field, cond := range filter {
		v, present := d[field]
		ops, ok := operators(cond)
		if !ok {
			if !present {
				return false
			}
			if c, ok := compare(v, cond); !ok || c != 0 {
				return false
			}
			continue
		}
		if !present {
			return false
		}
		for op, bound := range ops {
			c, ok := compare(v, bound)
			if !ok {
				return false
			}
			switch op {
			case port.OpGt:
				ok = c > 0
			case port.OpGte:
				ok = c >= 0
			case port.OpLt:
				ok = c < 0
			case port.OpLte:
				ok = c <= 0
			default:
				ok = false
			}
			if !ok {
				return false
			}
		}
	}
	return true
}

// less orders documents by sort keys; missing fields sort first ascending.
func less(a, b bson.M, keys bson.D) bool {
	for _, e := range keys {
		dir := 1
		if n, ok := asInt64(e.Value); ok && n < 0 {
			dir = -1
		}
		va, oka := a[e.Key]
		vb, okb := b[e.Key]
		var c int
		switch {
		case !oka && !okb:
			c = 0
		case !oka:
			c = -1
		case !okb:
			c = 1
		default:
			c, _ = compare(va, vb)
		}
		if c != 0 {
			return c*dir < 0
		}
	}
	return false
}

// compare returns the ordering of a and b, and false when the types are not comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	case primitive.Decimal128:
		dx, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, false
		}
		y, ok := b.(primitive.Decimal128)
		if !ok {
			return 0, false
		}
		dy, err := decimal.NewFromString(y.String())
		if err != nil {
			return 0, false
		}
		return dx.Cmp(dy), true
	}

	if xi, ok := asInt64(a); ok {
		if yi, ok := asInt64(b); ok {
			switch {
			case xi < yi:
				return -1, true
			case xi > yi:
				return 1, true
			}
			return 0, true
		}
	}
	xf, okx := asFloat64(a)
	yf, oky := asFloat64(b)
	if !okx || !oky {
		return 0, false
	}
	switch {
	case xf < yf:
		return -1, true
	case xf > yf:
		return 1, true
	}
	return 0, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
