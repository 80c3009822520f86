package storage

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quantstore/internal/application/port"
)

// bookkeeping 由存储适配器维护的字段
var bookkeeping = []string{port.FieldCreateTime, port.FieldUpdateTime}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

// decimalField reads a decimal stored as Decimal128, string or number. Missing is zero.
func decimalField(doc bson.M, key string) (decimal.Decimal, error) {
	switch v := doc[key].(type) {
	case nil:
		return decimal.Zero, nil
	case primitive.Decimal128:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", key, err)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("field %s: unexpected type %T", key, v)
	}
}

func int64Field(doc bson.M, key string) int64 {
	switch v := doc[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func intField(doc bson.M, key string) int {
	return int(int64Field(doc, key))
}

func stringField(doc bson.M, key string) string {
	s, _ := doc[key].(string)
	return s
}

func idField(doc bson.M) string {
	switch v := doc[port.FieldID].(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// subDocument accepts the shapes an embedded document may decode into.
func subDocument(v any) (bson.M, bool) {
	switch x := v.(type) {
	case bson.M:
		return x, true
	case map[string]any:
		return bson.M(x), true
	case bson.D:
		m := make(bson.M, len(x))
		for _, e := range x {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func between(field string, start, end int64) bson.M {
	return bson.M{field: bson.M{port.OpGte: start, port.OpLte: end}}
}
