package port

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Bookkeeping fields maintained by every DocumentStore adapter.
const (
	FieldID         = "_id"
	FieldCreateTime = "create_time" // ms, stamped on insert (and on upsert-insert)
	FieldUpdateTime = "update_time" // ms, stamped on insert and every update
)

// Range operators understood by every adapter. Any other filter value is an exact match.
const (
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
)

// FindOptions 查询选项
type FindOptions struct {
	// Sort is applied in order, value 1 ascending / -1 descending.
	Sort bson.D
	// Exclude lists fields removed from the returned documents.
	Exclude []string
}

// Partition is one physical storage region (a collection / table).
type Partition interface {
	Name() string

	// Insert stores doc and returns the generated identifier.
	Insert(ctx context.Context, doc bson.M) (string, error)

	// FindOne returns the first document matching filter after sorting.
	// found is false when nothing matches; that is not an error.
	FindOne(ctx context.Context, filter bson.M, opts FindOptions) (doc bson.M, found bool, err error)

	// FindMany returns every matching document in sort order, possibly none.
	FindMany(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)

	// Update sets and unsets fields on every matching document. With upsert and no
	// match, a document built from the filter's equality fields plus set is inserted.
	// The returned count is matched + upserted documents.
	Update(ctx context.Context, filter bson.M, set bson.M, unset []string, upsert bool) (int64, error)
}

// DocumentStore resolves partitions by database and collection name.
type DocumentStore interface {
	Partition(ctx context.Context, database, collection string) (Partition, error)
	Close(ctx context.Context) error
}
