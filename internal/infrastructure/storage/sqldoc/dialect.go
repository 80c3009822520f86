package sqldoc

import (
	"encoding/json"
	"fmt"
)

// Dialect captures what differs between the SQL engines.
type Dialect struct {
	Name string

	// CreateTable returns the DDL for a partition table.
	CreateTable func(table string) string
	// Field returns the SQL expression reading a top-level document field.
	Field func(name string) string
	// Param wraps a filter or document placeholder.
	Param string
	// Value converts a filter value to the driver argument compared against Field.
	Value func(v any) (any, error)
	// DocColumn selects the document as text.
	DocColumn string
	// LockRows is appended to the select issued inside Update.
	LockRows string
}

var SQLite = Dialect{
	Name: "sqlite",
	CreateTable: func(table string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  doc TEXT NOT NULL
)`, table)
	},
	Field: func(name string) string {
		return fmt.Sprintf("json_extract(doc, '$.%s')", name)
	},
	Param:     "?",
	Value:     scalar,
	DocColumn: "doc",
}

var Postgres = Dialect{
	Name: "postgres",
	CreateTable: func(table string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT COLLATE "C" PRIMARY KEY,
  doc JSONB NOT NULL
)`, table)
	},
	Field: func(name string) string {
		return fmt.Sprintf("(doc->'%s')", name)
	},
	// jsonb compares numbers numerically and strings bytewise, so values are bound as json text
	Param: "?::text::jsonb",
	Value: func(v any) (any, error) {
		s, err := scalar(v)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	},
	DocColumn: "doc::text",
	LockRows:  " FOR UPDATE",
}

func scalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("sqldoc: unsupported filter value %T", v)
	}
}
