package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockdash/internal/model"
)

const tradeColumns = `id, ticker, direction, entry_date, entry_price, target_price, stop_loss,
	exit_date, exit_price, entry_reason, exit_reason, pnl, pnl_pct, status, tags,
	created_at, updated_at`

// CreateTrade inserts t and returns it with ID and timestamps set.
func (s *Store) CreateTrade(ctx context.Context, t model.Trade) (model.Trade, error) {
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Tags == nil {
		t.Tags = []string{}
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return model.Trade{}, fmt.Errorf("encode tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (ticker, direction, entry_date, entry_price, target_price, stop_loss,
			exit_date, exit_price, entry_reason, exit_reason, pnl, pnl_pct, status, tags,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ticker, string(t.Direction), t.EntryDate, t.EntryPrice, t.TargetPrice, t.StopLoss,
		t.ExitDate, t.ExitPrice, t.EntryReason, t.ExitReason, t.PnL, t.PnLPct, string(t.Status), string(tags),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return model.Trade{}, fmt.Errorf("insert trade: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return model.Trade{}, fmt.Errorf("insert trade id: %w", err)
	}
	return t, nil
}

// UpdateTrade overwrites the mutable columns of an existing trade and bumps
// updated_at.
func (s *Store) UpdateTrade(ctx context.Context, t model.Trade) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE trades SET target_price = ?, stop_loss = ?, exit_date = ?, exit_price = ?,
			entry_reason = ?, exit_reason = ?, pnl = ?, pnl_pct = ?, status = ?, tags = ?,
			updated_at = ?
		WHERE id = ?`,
		t.TargetPrice, t.StopLoss, t.ExitDate, t.ExitPrice,
		t.EntryReason, t.ExitReason, t.PnL, t.PnLPct, string(t.Status), string(tags),
		time.Now().UnixMilli(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update trade %d: %w", t.ID, err)
	}
	return nil
}

// GetTrade returns the trade with the given id.
func (s *Store) GetTrade(ctx context.Context, id int64) (model.Trade, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trade{}, false, nil
	}
	if err != nil {
		return model.Trade{}, false, fmt.Errorf("get trade %d: %w", id, err)
	}
	return t, true, nil
}

// ListTrades returns trades newest first, optionally filtered by status.
func (s *Store) ListTrades(ctx context.Context, status model.TradeStatus) ([]model.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	out := []model.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(sc scanner) (model.Trade, error) {
	var (
		t                 model.Trade
		direction, status string
		tags              string
		created, updated  int64
	)
	err := sc.Scan(&t.ID, &t.Ticker, &direction, &t.EntryDate, &t.EntryPrice, &t.TargetPrice, &t.StopLoss,
		&t.ExitDate, &t.ExitPrice, &t.EntryReason, &t.ExitReason, &t.PnL, &t.PnLPct, &status, &tags,
		&created, &updated)
	if err != nil {
		return model.Trade{}, err
	}
	t.Direction = model.Direction(direction)
	t.Status = model.TradeStatus(status)
	t.CreatedAt = time.UnixMilli(created)
	t.UpdatedAt = time.UnixMilli(updated)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil || t.Tags == nil {
		t.Tags = []string{}
	}
	return t, nil
}
