package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stockdash/internal/marketdata"
	"stockdash/internal/model"
)

// AddWatch adds a ticker to the watchlist, filling name and sector from the
// market provider when it answers. A ticker already present in any status
// is a conflict.
func (s *Service) AddWatch(ctx context.Context, in model.WatchlistAdd) (model.WatchlistItem, error) {
	ticker := marketdata.NormalizeTicker(in.Ticker)
	if ticker == "" {
		return model.WatchlistItem{}, fmt.Errorf("%w: ticker is required", ErrInvalid)
	}

	_, found, err := s.watch.FindWatchByTicker(ctx, ticker)
	if err != nil {
		return model.WatchlistItem{}, err
	}
	if found {
		return model.WatchlistItem{}, fmt.Errorf("%w: Already in watchlist", ErrConflict)
	}

	item := model.WatchlistItem{
		Ticker:    ticker,
		AddedDate: s.today(),
		Memo:      in.Memo,
		Status:    model.WatchActive,
	}
	if info, err := s.market.Info(ctx, ticker); err != nil {
		log.Printf("[dashboard] watchlist %s: info lookup failed: %v", ticker, err)
	} else {
		item.Name = info.DisplayName()
		item.Sector = info.Sector
	}

	item, err = s.watch.AddWatch(ctx, item)
	if errors.Is(err, model.ErrDuplicate) {
		return model.WatchlistItem{}, fmt.Errorf("%w: Already in watchlist", ErrConflict)
	}
	return item, err
}

// ListWatch returns the active watchlist.
func (s *Service) ListWatch(ctx context.Context) ([]model.WatchlistItem, error) {
	return s.watch.ListWatch(ctx, model.WatchActive)
}

// ArchiveWatch hides an item from the active watchlist.
func (s *Service) ArchiveWatch(ctx context.Context, id int64) error {
	found, err := s.watch.SetWatchStatus(ctx, id, model.WatchArchived)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: Item not found", ErrNotFound)
	}
	return nil
}
