package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

const (
	assetDatabase           = "asset"
	assetCollection         = "asset"
	assetSnapshotCollection = "snapshot"

	assetPlatform  = "platform"
	assetAccount   = "account"
	assetTimestamp = "timestamp"

	balanceFree   = "free"
	balanceLocked = "locked"
	balanceTotal  = "total"

	// DefaultSnapshotWindow is the lookback used when a snapshot range has no start.
	DefaultSnapshotWindow = 24 * time.Hour
)

var reservedAssetFields = map[string]struct{}{
	assetPlatform:        {},
	assetAccount:         {},
	assetTimestamp:       {},
	port.FieldID:         {},
	port.FieldCreateTime: {},
	port.FieldUpdateTime: {},
}

// AssetStore keeps the current balances of each account:
//
//	{"platform": "binance", "account": "test@gmail.com", "timestamp": 1234567890,
//	 "BTC": {"free": "1.1", "locked": "2.2", "total": "3.3"}, ...}
type AssetStore struct {
	partition port.Partition
}

func NewAssetStore(ctx context.Context, store port.DocumentStore) (*AssetStore, error) {
	p, err := store.Partition(ctx, assetDatabase, assetCollection)
	if err != nil {
		return nil, err
	}
	return &AssetStore{partition: p}, nil
}

// RecordCurrent inserts a new current-balance document.
func (s *AssetStore) RecordCurrent(ctx context.Context, platform, account string, balances model.Balances, ts int64) (string, error) {
	doc, err := assetDocument(platform, account, balances, ts)
	if err != nil {
		return "", err
	}
	return s.partition.Insert(ctx, doc)
}

// MergeCurrent upserts the document keyed by (platform, account, ts): balances are set and
// the removed currencies are unset. A currency present in both is kept. Calling it again
// with the same arguments leaves the document unchanged.
func (s *AssetStore) MergeCurrent(ctx context.Context, platform, account string, balances model.Balances, ts int64, removed []string) (int64, error) {
	set, err := balanceFields(balances)
	if err != nil {
		return 0, err
	}
	unset := make([]string, 0, len(removed))
	for _, c := range removed {
		if err := validateCurrency(c); err != nil {
			return 0, err
		}
		if _, ok := set[c]; ok {
			continue
		}
		unset = append(unset, c)
	}
	filter := bson.M{assetPlatform: platform, assetAccount: account, assetTimestamp: ts}
	return s.partition.Update(ctx, filter, set, unset, true)
}

// GetLatestCurrent returns the document with the greatest timestamp for the account.
func (s *AssetStore) GetLatestCurrent(ctx context.Context, platform, account string) (model.Asset, bool, error) {
	return latestAsset(ctx, s.partition, platform, account)
}

// AssetSnapshotStore is the append-only history of balances, same shape as AssetStore.
type AssetSnapshotStore struct {
	partition port.Partition
	now       func() time.Time
}

func NewAssetSnapshotStore(ctx context.Context, store port.DocumentStore) (*AssetSnapshotStore, error) {
	return NewAssetSnapshotStoreWithClock(ctx, store, time.Now)
}

// NewAssetSnapshotStoreWithClock uses now to default the end of snapshot ranges.
func NewAssetSnapshotStoreWithClock(ctx context.Context, store port.DocumentStore, now func() time.Time) (*AssetSnapshotStore, error) {
	p, err := store.Partition(ctx, assetDatabase, assetSnapshotCollection)
	if err != nil {
		return nil, err
	}
	return &AssetSnapshotStore{partition: p, now: now}, nil
}

// RecordSnapshot always inserts, never merges.
func (s *AssetSnapshotStore) RecordSnapshot(ctx context.Context, platform, account string, balances model.Balances, ts int64) (string, error) {
	doc, err := assetDocument(platform, account, balances, ts)
	if err != nil {
		return "", err
	}
	return s.partition.Insert(ctx, doc)
}

// GetSnapshotRange returns snapshots with start <= timestamp <= end, oldest first.
// end <= 0 means now; start <= 0 means one day before end.
func (s *AssetSnapshotStore) GetSnapshotRange(ctx context.Context, platform, account string, start, end int64) ([]model.Asset, error) {
	if end <= 0 {
		end = s.now().UnixMilli()
	}
	if start <= 0 {
		start = end - DefaultSnapshotWindow.Milliseconds()
	}
	filter := between(assetTimestamp, start, end)
	filter[assetPlatform] = platform
	filter[assetAccount] = account

	docs, err := s.partition.FindMany(ctx, filter, port.FindOptions{
		Sort:    bson.D{{Key: assetTimestamp, Value: 1}, {Key: port.FieldID, Value: 1}},
		Exclude: []string{assetPlatform, assetAccount, port.FieldID, port.FieldCreateTime, port.FieldUpdateTime},
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Asset, 0, len(docs))
	for _, d := range docs {
		a, err := decodeAsset(d)
		if err != nil {
			return nil, err
		}
		// identifying fields are projected out; they are the query's own key
		a.Platform, a.Account = platform, account
		out = append(out, a)
	}
	return out, nil
}

// GetLatestSnapshot returns the snapshot with the greatest timestamp.
func (s *AssetSnapshotStore) GetLatestSnapshot(ctx context.Context, platform, account string) (model.Asset, bool, error) {
	return latestAsset(ctx, s.partition, platform, account)
}

func latestAsset(ctx context.Context, p port.Partition, platform, account string) (model.Asset, bool, error) {
	doc, found, err := p.FindOne(ctx,
		bson.M{assetPlatform: platform, assetAccount: account},
		port.FindOptions{
			Sort:    bson.D{{Key: assetTimestamp, Value: -1}, {Key: port.FieldID, Value: -1}},
			Exclude: bookkeeping,
		})
	if err != nil || !found {
		return model.Asset{}, false, err
	}
	a, err := decodeAsset(doc)
	if err != nil {
		return model.Asset{}, false, err
	}
	return a, true, nil
}

func validateCurrency(c string) error {
	if c == "" || strings.Contains(c, ".") || strings.HasPrefix(c, "$") {
		return fmt.Errorf("%w: %q", model.ErrInvalidCurrency, c)
	}
	if _, ok := reservedAssetFields[c]; ok {
		return fmt.Errorf("%w: %q", model.ErrInvalidCurrency, c)
	}
	return nil
}

func balanceFields(balances model.Balances) (bson.M, error) {
	out := make(bson.M, len(balances))
	for c, b := range balances {
		if err := validateCurrency(c); err != nil {
			return nil, err
		}
		out[c] = bson.M{
			balanceFree:   b.Free.String(),
			balanceLocked: b.Locked.String(),
			balanceTotal:  b.Total.String(),
		}
	}
	return out, nil
}

func assetDocument(platform, account string, balances model.Balances, ts int64) (bson.M, error) {
	doc, err := balanceFields(balances)
	if err != nil {
		return nil, err
	}
	doc[assetPlatform] = platform
	doc[assetAccount] = account
	doc[assetTimestamp] = ts
	return doc, nil
}

func decodeAsset(doc bson.M) (model.Asset, error) {
	a := model.Asset{
		Platform:  stringField(doc, assetPlatform),
		Account:   stringField(doc, assetAccount),
		Timestamp: int64Field(doc, assetTimestamp),
		Balances:  model.Balances{},
	}
	for key, v := range doc {
		if _, ok := reservedAssetFields[key]; ok {
			continue
		}
		sub, ok := subDocument(v)
		if !ok {
			continue
		}
		var b model.Balance
		var err error
		if b.Free, err = decimalField(sub, balanceFree); err != nil {
			return a, fmt.Errorf("currency %s: %w", key, err)
		}
		if b.Locked, err = decimalField(sub, balanceLocked); err != nil {
			return a, fmt.Errorf("currency %s: %w", key, err)
		}
		if b.Total, err = decimalField(sub, balanceTotal); err != nil {
			return a, fmt.Errorf("currency %s: %w", key, err)
		}
		a.Balances[key] = b
	}
	return a, nil
}

var (
	_ port.AssetRepository         = (*AssetStore)(nil)
	_ port.AssetSnapshotRepository = (*AssetSnapshotStore)(nil)
)
