package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

const symbolSeparator = "/"

// PartitionName converts a symbol to its kline partition name, e.g. ETH/BTC => kline_eth_btc.
func PartitionName(symbol string) (string, error) {
	parts := strings.Split(symbol, symbolSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidSymbolFormat, symbol)
	}
	return fmt.Sprintf("kline_%s_%s", strings.ToLower(parts[0]), strings.ToLower(parts[1])), nil
}

// PartitionRouter maps symbols to kline partitions of one database and caches the
// handles for its own lifetime. Entries are never evicted.
type PartitionRouter struct {
	store    port.DocumentStore
	database string

	mu    sync.RWMutex
	cache map[string]port.Partition
}

func NewPartitionRouter(store port.DocumentStore, database string) *PartitionRouter {
	return &PartitionRouter{
		store:    store,
		database: database,
		cache:    make(map[string]port.Partition),
	}
}

// Database returns the database every partition of this router lives in.
func (r *PartitionRouter) Database() string { return r.database }

// Resolve returns the partition for symbol. Two callers racing on a new symbol may both
// resolve it; resolution is idempotent and the first cached handle is kept.
func (r *PartitionRouter) Resolve(ctx context.Context, symbol string) (port.Partition, error) {
	r.mu.RLock()
	p, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	name, err := PartitionName(symbol)
	if err != nil {
		return nil, err
	}
	p, err = r.store.Partition(ctx, r.database, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[symbol]; ok {
		return cached, nil
	}
	r.cache[symbol] = p
	return p, nil
}
