package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"quantstore/internal/application/port"
)

// Store is an in-memory DocumentStore. Documents are normalized through BSON so
// readers see the same value types a MongoDB round trip would produce.
type Store struct {
	mu    sync.Mutex
	parts map[string]*Partition
	now   func() time.Time
	seq   atomic.Uint64
}

// New creates a new in-memory store
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a store whose bookkeeping timestamps come from now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		parts: make(map[string]*Partition),
		now:   now,
	}
}

func (s *Store) Partition(ctx context.Context, database, collection string) (port.Partition, error) {
	key := database + "." + collection
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[key]
	if !ok {
		p = &Partition{name: key, store: s}
		s.parts[key] = p
	}
	return p, nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

// nextID returns an ObjectID ordered by creation inside this store.
func (s *Store) nextID() primitive.ObjectID {
	var id primitive.ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(s.now().Unix()))
	binary.BigEndian.PutUint64(id[4:12], s.seq.Add(1))
	return id
}

// Partition holds the documents of one collection in insertion order.
type Partition struct {
	name  string
	store *Store

	mu   sync.RWMutex
	docs []bson.M
}

func (p *Partition) Name() string { return p.name }

// Len returns the number of stored documents.
func (p *Partition) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.docs)
}

func (p *Partition) Insert(ctx context.Context, doc bson.M) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d, err := normalize(doc)
	if err != nil {
		return "", err
	}
	now := p.store.now().UnixMilli()
	if _, ok := d[port.FieldID]; !ok {
		d[port.FieldID] = p.store.nextID()
	}
	if _, ok := d[port.FieldCreateTime]; !ok {
		d[port.FieldCreateTime] = now
	}
	if _, ok := d[port.FieldUpdateTime]; !ok {
		d[port.FieldUpdateTime] = now
	}

	p.mu.Lock()
	p.docs = append(p.docs, d)
	p.mu.Unlock()
	return idString(d[port.FieldID]), nil
}

func (p *Partition) FindOne(ctx context.Context, filter bson.M, opts port.FindOptions) (bson.M, bool, error) {
	docs, err := p.FindMany(ctx, filter, opts)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (p *Partition) FindMany(ctx context.Context, filter bson.M, opts port.FindOptions) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	result := make([]bson.M, 0)
	for _, d := range p.docs {
		if matches(d, filter) {
			result = append(result, clone(d))
		}
	}
	p.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(result, func(i, j int) bool {
			return less(result[i], result[j], opts.Sort)
		})
	}
	for _, d := range result {
		for _, f := range opts.Exclude {
			delete(d, f)
		}
	}
	return result, nil
}

func (p *Partition) Update(ctx context.Context, filter bson.M, set bson.M, unset []string, upsert bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fields, err := normalize(set)
	if err != nil {
		return 0, err
	}
	now := p.store.now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()

	var count int64
	for _, d := range p.docs {
		if !matches(d, filter) {
			continue
		}
		apply(d, fields, unset)
		d[port.FieldUpdateTime] = now
		count++
	}
	if count > 0 || !upsert {
		return count, nil
	}

	d := bson.M{}
	for k, v := range filter {
		if !isOperator(v) {
			d[k] = v
		}
	}
	d, err = normalize(d)
	if err != nil {
		return 0, err
	}
	apply(d, fields, unset)
	d[port.FieldID] = p.store.nextID()
	d[port.FieldCreateTime] = now
	d[port.FieldUpdateTime] = now
	p.docs = append(p.docs, d)
	return 1, nil
}

func apply(d, set bson.M, unset []string) {
	for k, v := range set {
		d[k] = v
	}
	for _, k := range unset {
		delete(d, k)
	}
}

func normalize(doc bson.M) (bson.M, error) {
	out := bson.M{}
	if len(doc) == 0 {
		return out, nil
	}
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := bson.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}

func clone(d bson.M) bson.M {
	out, err := normalize(d)
	if err != nil {
		// d was produced by normalize, so it always round-trips
		panic(err)
	}
	return out
}

func idString(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}

var _ port.DocumentStore = (*Store)(nil)
var _ port.Partition = (*Partition)(nil)
