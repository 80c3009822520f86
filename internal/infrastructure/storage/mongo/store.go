package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"quantstore/internal/application/port"
)

const defaultConnectTimeout = 10 * time.Second

type Options struct {
	URI            string
	ConnectTimeout time.Duration
	// AppName shows up in the server logs (optional)
	AppName string
}

// Store is a DocumentStore backed by MongoDB: one database per logical database
// name and one collection per partition.
type Store struct {
	client *mongo.Client
	now    func() time.Time

	mu    sync.Mutex
	parts map[string]*Partition
}

// New connects and pings the server.
func New(ctx context.Context, opt Options) (*Store, error) {
	if opt.URI == "" {
		return nil, errors.New("mongo: empty uri")
	}
	timeout := opt.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	co := options.Client().ApplyURI(opt.URI).SetConnectTimeout(timeout)
	if opt.AppName != "" {
		co.SetAppName(opt.AppName)
	}
	client, err := mongo.Connect(ctx, co)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info().Str("uri", redact(opt.URI)).Msg("mongo connected")
	return &Store{
		client: client,
		now:    time.Now,
		parts:  make(map[string]*Partition),
	}, nil
}

// Client exposes the underlying driver client (tests drop their databases with it).
func (s *Store) Client() *mongo.Client { return s.client }

func (s *Store) Partition(ctx context.Context, database, collection string) (port.Partition, error) {
	if database == "" || collection == "" {
		return nil, fmt.Errorf("mongo: empty partition name %q.%q", database, collection)
	}
	key := database + "." + collection

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[key]; ok {
		return p, nil
	}
	p := &Partition{
		name: key,
		coll: s.client.Database(database).Collection(collection),
		now:  s.now,
	}
	s.parts[key] = p
	return p, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Partition is a single collection.
type Partition struct {
	name string
	coll *mongo.Collection
	now  func() time.Time
}

func (p *Partition) Name() string { return p.name }

func (p *Partition) Insert(ctx context.Context, doc bson.M) (string, error) {
	now := p.now().UnixMilli()
	d := make(bson.M, len(doc)+3)
	for k, v := range doc {
		d[k] = v
	}
	if _, ok := d[port.FieldID]; !ok {
		d[port.FieldID] = primitive.NewObjectID()
	}
	if _, ok := d[port.FieldCreateTime]; !ok {
		d[port.FieldCreateTime] = now
	}
	if _, ok := d[port.FieldUpdateTime]; !ok {
		d[port.FieldUpdateTime] = now
	}

	res, err := p.coll.InsertOne(ctx, d)
	if err != nil {
		return "", err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (p *Partition) FindOne(ctx context.Context, filter bson.M, opts port.FindOptions) (bson.M, bool, error) {
	fo := options.FindOne()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if proj := projection(opts.Exclude); proj != nil {
		fo.SetProjection(proj)
	}

	var doc bson.M
	err := p.coll.FindOne(ctx, nonNil(filter), fo).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (p *Partition) FindMany(ctx context.Context, filter bson.M, opts port.FindOptions) ([]bson.M, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if proj := projection(opts.Exclude); proj != nil {
		fo.SetProjection(proj)
	}

	cur, err := p.coll.Find(ctx, nonNil(filter), fo)
	if err != nil {
		return nil, err
	}
	docs := make([]bson.M, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Update issues a single UpdateMany. create_time is only written when the upsert inserts.
func (p *Partition) Update(ctx context.Context, filter bson.M, set bson.M, unset []string, upsert bool) (int64, error) {
	now := p.now().UnixMilli()

	fields := make(bson.M, len(set)+1)
	for k, v := range set {
		fields[k] = v
	}
	fields[port.FieldUpdateTime] = now

	update := bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{port.FieldCreateTime: now},
	}
	if len(unset) > 0 {
		u := make(bson.M, len(unset))
		for _, k := range unset {
			u[k] = ""
		}
		update["$unset"] = u
	}

	res, err := p.coll.UpdateMany(ctx, nonNil(filter), update, options.Update().SetUpsert(upsert))
	if err != nil {
		return 0, err
	}
	return res.MatchedCount + res.UpsertedCount, nil
}

func projection(exclude []string) bson.M {
	if len(exclude) == 0 {
		return nil
	}
	proj := make(bson.M, len(exclude))
	for _, f := range exclude {
		proj[f] = 0
	}
	return proj
}

func nonNil(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}

var (
	_ port.DocumentStore = (*Store)(nil)
	_ port.Partition     = (*Partition)(nil)
)
