package sqldoc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	"quantstore/internal/application/port"
)

// Store is a DocumentStore over a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time

	mu    sync.Mutex
	parts map[string]*Partition
}

// New wraps an open connection. Tables are created lazily by Partition.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return NewWithClock(db, dialect, time.Now)
}

func NewWithClock(db *sqlx.DB, dialect Dialect, now func() time.Time) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		now:     now,
		parts:   make(map[string]*Partition),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Partition(ctx context.Context, database, collection string) (port.Partition, error) {
	key := database + "." + collection
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[key]; ok {
		return p, nil
	}

	table := tableName(database, collection)
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable(table)); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	log.Debug().Str("dialect", s.dialect.Name).Str("table", table).Msg("partition ready")

	p := &Partition{name: key, table: table, store: s}
	s.parts[key] = p
	return p, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

type row struct {
	ID  string `db:"id"`
	Doc string `db:"doc"`
}

// Partition is one table.
type Partition struct {
	name  string
	table string
	store *Store
}

func (p *Partition) Name() string { return p.name }

func (p *Partition) Insert(ctx context.Context, doc bson.M) (string, error) {
	now := p.store.now().UnixMilli()
	d := make(bson.M, len(doc)+2)
	for k, v := range doc {
		d[k] = v
	}
	id := idString(d[port.FieldID])
	if _, ok := d[port.FieldID]; !ok {
		v7, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		id = v7.String()
	}
	delete(d, port.FieldID)
	if _, ok := d[port.FieldCreateTime]; !ok {
		d[port.FieldCreateTime] = now
	}
	if _, ok := d[port.FieldUpdateTime]; !ok {
		d[port.FieldUpdateTime] = now
	}

	body, err := encode(d)
	if err != nil {
		return "", err
	}
	if err := p.insertRow(ctx, p.store.db, id, body); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Partition) FindOne(ctx context.Context, filter bson.M, opts port.FindOptions) (bson.M, bool, error) {
	docs, err := p.find(ctx, filter, opts, 1)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (p *Partition) FindMany(ctx context.Context, filter bson.M, opts port.FindOptions) ([]bson.M, error) {
	return p.find(ctx, filter, opts, 0)
}

func (p *Partition) find(ctx context.Context, filter bson.M, opts port.FindOptions, limit int) ([]bson.M, error) {
	d := p.store.dialect
	where, args, err := d.where(filter)
	if err != nil {
		return nil, err
	}
	order, err := d.orderBy(opts.Sort)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT id, %s AS doc FROM %s%s%s", d.DocColumn, p.table, where, order)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []row
	if err := p.store.db.SelectContext(ctx, &rows, p.store.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(rows))
	for _, r := range rows {
		doc, err := decode(r)
		if err != nil {
			return nil, err
		}
		for _, f := range opts.Exclude {
			delete(doc, f)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Update rewrites every matching row inside one transaction.
func (p *Partition) Update(ctx context.Context, filter bson.M, set bson.M, unset []string, upsert bool) (int64, error) {
	d := p.store.dialect
	where, args, err := d.where(filter)
	if err != nil {
		return 0, err
	}
	now := p.store.now().UnixMilli()

	tx, err := p.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var rows []row
	q := fmt.Sprintf("SELECT id, %s AS doc FROM %s%s ORDER BY id%s", d.DocColumn, p.table, where, d.LockRows)
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(q), args...); err != nil {
		return 0, err
	}

	update := tx.Rebind(fmt.Sprintf("UPDATE %s SET doc = %s WHERE id = ?", p.table, d.Param))
	for _, r := range rows {
		doc, err := decode(r)
		if err != nil {
			return 0, err
		}
		delete(doc, port.FieldID)
		apply(doc, set, unset)
		doc[port.FieldUpdateTime] = now
		body, err := encode(doc)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, update, body, r.ID); err != nil {
			return 0, err
		}
	}

	count := int64(len(rows))
	if count == 0 && upsert {
		doc := bson.M{}
		for k, v := range filter {
			if _, isRange := operators(v); !isRange && k != port.FieldID {
				doc[k] = v
			}
		}
		apply(doc, set, unset)
		doc[port.FieldCreateTime] = now
		doc[port.FieldUpdateTime] = now
		body, err := encode(doc)
		if err != nil {
			return 0, err
		}
		v7, err := uuid.NewV7()
		if err != nil {
			return 0, err
		}
		if err := p.insertRow(ctx, tx, v7.String(), body); err != nil {
			return 0, err
		}
		count = 1
	}
	return count, tx.Commit()
}

func (p *Partition) insertRow(ctx context.Context, ext sqlx.ExtContext, id, body string) error {
	q := fmt.Sprintf("INSERT INTO %s(id, doc) VALUES(?, %s)", p.table, p.store.dialect.Param)
	_, err := ext.ExecContext(ctx, ext.Rebind(q), id, body)
	return err
}

func apply(doc, set bson.M, unset []string) {
	for k, v := range set {
		doc[k] = v
	}
	for _, k := range unset {
		delete(doc, k)
	}
}

func encode(doc bson.M) (string, error) {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func decode(r row) (bson.M, error) {
	doc := bson.M{}
	if err := bson.UnmarshalExtJSON([]byte(r.Doc), false, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.ID, err)
	}
	doc[port.FieldID] = r.ID
	return doc, nil
}

var (
	_ port.DocumentStore = (*Store)(nil)
	_ port.Partition     = (*Partition)(nil)
)
