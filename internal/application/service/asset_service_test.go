package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"quantstore/internal/domain/model"
	"quantstore/internal/infrastructure/storage"
	"quantstore/internal/infrastructure/storage/memory"
)

func TestAssetServiceRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	current, err := storage.NewAssetStore(ctx, store)
	if err != nil {
		t.Fatalf("NewAssetStore failed: %v", err)
	}
	snapshots, err := storage.NewAssetSnapshotStore(ctx, store)
	if err != nil {
		t.Fatalf("NewAssetSnapshotStore failed: %v", err)
	}
	svc := NewAssetService(current, snapshots)

	one := model.NewBalance(decimal.NewFromInt(1), decimal.Zero)
	if err := svc.Record(ctx, "binance", "acct", model.Balances{"BTC": one, "ETH": one}, 1000); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// ETH sold within the same tick
	if err := svc.Record(ctx, "binance", "acct", model.Balances{"BTC": one}, 1000); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	a, found, err := svc.Current(ctx, "binance", "acct")
	if err != nil || !found {
		t.Fatalf("Current: found=%v err=%v", found, err)
	}
	if _, ok := a.Balances["ETH"]; ok {
		t.Errorf("ETH should have been removed: %+v", a.Balances)
	}
	if len(a.Balances) != 1 {
		t.Errorf("expected 1 currency, got %d", len(a.Balances))
	}

	snaps, err := svc.Snapshots(ctx, "binance", "acct", 1, 2000)
	if err != nil {
		t.Fatalf("Snapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if len(snaps[0].Balances) != 2 || len(snaps[1].Balances) != 1 {
		t.Errorf("snapshots should keep history, got %+v", snaps)
	}

	latest, found, err := svc.LatestSnapshot(ctx, "binance", "acct")
	if err != nil || !found {
		t.Fatalf("LatestSnapshot: found=%v err=%v", found, err)
	}
	if latest.Timestamp != 1000 {
		t.Errorf("expected ts 1000, got %d", latest.Timestamp)
	}
}
