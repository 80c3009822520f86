package service

import (
	"context"

	"quantstore/internal/application/port"
	"quantstore/internal/domain/model"
)

// AssetService keeps the current balances and the snapshot history in step.
type AssetService struct {
	current   port.AssetRepository
	snapshots port.AssetSnapshotRepository
}

func NewAssetService(current port.AssetRepository, snapshots port.AssetSnapshotRepository) *AssetService {
	return &AssetService{current: current, snapshots: snapshots}
}

// Record merges balances into the current document for ts, unsetting the
// currencies the account no longer holds, and appends a snapshot.
func (s *AssetService) Record(ctx context.Context, platform, account string, balances model.Balances, ts int64) error {
	prev, found, err := s.current.GetLatestCurrent(ctx, platform, account)
	if err != nil {
		return err
	}
	var removed []string
	if found {
		for _, c := range prev.Balances.Currencies() {
			if _, ok := balances[c]; !ok {
				removed = append(removed, c)
			}
		}
	}
	if _, err := s.current.MergeCurrent(ctx, platform, account, balances, ts, removed); err != nil {
		return err
	}
	_, err = s.snapshots.RecordSnapshot(ctx, platform, account, balances, ts)
	return err
}

func (s *AssetService) Current(ctx context.Context, platform, account string) (model.Asset, bool, error) {
	return s.current.GetLatestCurrent(ctx, platform, account)
}

func (s *AssetService) Snapshots(ctx context.Context, platform, account string, start, end int64) ([]model.Asset, error) {
	return s.snapshots.GetSnapshotRange(ctx, platform, account, start, end)
}

func (s *AssetService) LatestSnapshot(ctx context.Context, platform, account string) (model.Asset, bool, error) {
	return s.snapshots.GetLatestSnapshot(ctx, platform, account)
}
