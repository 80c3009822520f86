package sqldoc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quantstore/internal/application/port"
)

var (
	fieldName   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	unsafeIdent = regexp.MustCompile(`[^a-z0-9_]`)
)

var comparators = map[string]string{
	port.OpGt:  ">",
	port.OpGte: ">=",
	port.OpLt:  "<",
	port.OpLte: "<=",
}

// tableName maps database.collection onto one identifier, e.g. "binance__kline_btc_usdt".
func tableName(database, collection string) string {
	name := strings.ToLower(database + "__" + collection)
	return `"` + unsafeIdent.ReplaceAllString(name, "_") + `"`
}

func (d Dialect) column(field string) (string, error) {
	if field == port.FieldID {
		return "id", nil
	}
	if !fieldName.MatchString(field) {
		return "", fmt.Errorf("sqldoc: unsupported field name %q", field)
	}
	return d.Field(field), nil
}

// where translates an equality / range filter. Keys are emitted in sorted order.
func (d Dialect) where(filter bson.M) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds []string
		args  []any
	)
	for _, k := range keys {
		col, err := d.column(k)
		if err != nil {
			return "", nil, err
		}
		ops, isRange := operators(filter[k])
		if !isRange {
			c, a, err := d.compare(k, col, "=", filter[k])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, c)
			args = append(args, a)
			continue
		}
		names := make([]string, 0, len(ops))
		for op := range ops {
			names = append(names, op)
		}
		sort.Strings(names)
		for _, op := range names {
			sqlOp, ok := comparators[op]
			if !ok {
				return "", nil, fmt.Errorf("sqldoc: unsupported operator %s", op)
			}
			c, a, err := d.compare(k, col, sqlOp, ops[op])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, c)
			args = append(args, a)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (d Dialect) compare(field, col, op string, v any) (string, any, error) {
	if field == port.FieldID {
		return col + " " + op + " ?", idString(v), nil
	}
	arg, err := d.Value(v)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", field, err)
	}
	return col + " " + op + " " + d.Param, arg, nil
}

// orderBy sorts missing fields lowest, the way MongoDB does.
func (d Dialect) orderBy(sortKeys bson.D) (string, error) {
	if len(sortKeys) == 0 {
		return " ORDER BY id ASC", nil
	}
	parts := make([]string, 0, len(sortKeys))
	for _, e := range sortKeys {
		col, err := d.column(e.Key)
		if err != nil {
			return "", err
		}
		if direction(e.Value) < 0 {
			parts = append(parts, col+" DESC NULLS LAST")
		} else {
			parts = append(parts, col+" ASC NULLS FIRST")
		}
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func direction(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 1
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

func idString(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}
