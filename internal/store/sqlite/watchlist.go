package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stockdash/internal/model"
)

// AddWatch inserts item. A ticker already present in any status yields
// model.ErrDuplicate.
func (s *Store) AddWatch(ctx context.Context, item model.WatchlistItem) (model.WatchlistItem, error) {
	if item.Status == "" {
		item.Status = model.WatchActive
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist (ticker, name, sector, added_date, memo, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.Ticker, item.Name, item.Sector, item.AddedDate, item.Memo, item.Status,
	)
	if isUniqueViolation(err) {
		return model.WatchlistItem{}, fmt.Errorf("watchlist %s: %w", item.Ticker, model.ErrDuplicate)
	}
	if err != nil {
		return model.WatchlistItem{}, fmt.Errorf("insert watchlist: %w", err)
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return model.WatchlistItem{}, fmt.Errorf("insert watchlist id: %w", err)
	}
	return item, nil
}

// FindWatchByTicker looks up an item regardless of status.
func (s *Store) FindWatchByTicker(ctx context.Context, ticker string) (model.WatchlistItem, bool, error) {
	var it model.WatchlistItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name, sector, added_date, memo, status
		FROM watchlist WHERE ticker = ?`, ticker,
	).Scan(&it.ID, &it.Ticker, &it.Name, &it.Sector, &it.AddedDate, &it.Memo, &it.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WatchlistItem{}, false, nil
	}
	if err != nil {
		return model.WatchlistItem{}, false, fmt.Errorf("find watchlist %s: %w", ticker, err)
	}
	return it, true, nil
}

// ListWatch returns items with status, oldest first.
func (s *Store) ListWatch(ctx context.Context, status string) ([]model.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, name, sector, added_date, memo, status
		FROM watchlist WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	out := []model.WatchlistItem{}
	for rows.Next() {
		var it model.WatchlistItem
		if err := rows.Scan(&it.ID, &it.Ticker, &it.Name, &it.Sector, &it.AddedDate, &it.Memo, &it.Status); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetWatchStatus changes an item's status.
func (s *Store) SetWatchStatus(ctx context.Context, id int64, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE watchlist SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return false, fmt.Errorf("update watchlist %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update watchlist %d: %w", id, err)
	}
	return n > 0, nil
}
