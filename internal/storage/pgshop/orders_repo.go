package pgshop

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/models"
)

type OrderSyncCreate struct {
	WCOrderID      uint64
	ElogistOrderID string
	SysOrderID     *string
	CurrentStatus  string
}

type OrderStatusUpdate struct {
	WCOrderID      uint64
	Status         string
	TrackingNumber *string
	CheckedAt      time.Time
}

func (s *Storage) CreateOrderSync(ctx context.Context, in OrderSyncCreate) (*models.OrderSyncRecord, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO order_sync (
  wc_order_id, elogist_order_id, sys_order_id, current_status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (wc_order_id)
DO UPDATE SET updated_at = order_sync.updated_at
RETURNING id
`, in.WCOrderID, in.ElogistOrderID, in.SysOrderID, in.CurrentStatus, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert order sync")
	}

	return s.GetOrderSync(ctx, in.WCOrderID)
}

// GetOrderSync returns nil without an error when the order was never
// submitted.
func (s *Storage) GetOrderSync(ctx context.Context, wcOrderID uint64) (*models.OrderSyncRecord, error) {
	var r models.OrderSyncRecord
	err := s.db.QueryRow(ctx, `
SELECT
  id, wc_order_id, elogist_order_id, sys_order_id,
  current_status, tracking_number, last_status_check,
  created_at, updated_at
FROM order_sync
WHERE wc_order_id = $1
`, wcOrderID).Scan(
		&r.ID, &r.WCOrderID, &r.ElogistOrderID, &r.SysOrderID,
		&r.CurrentStatus, &r.TrackingNumber, &r.LastStatusCheck,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order sync")
	}
	return &r, nil
}

// ApplyOrderStatus records a status check. Returns whether the stored
// status actually changed; the tracking number is kept once seen.
func (s *Storage) ApplyOrderStatus(ctx context.Context, upd OrderStatusUpdate) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx, `
SELECT current_status FROM order_sync WHERE wc_order_id = $1 FOR UPDATE
`, upd.WCOrderID).Scan(&prev)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "select order sync for update")
	}

	_, err = tx.Exec(ctx, `
UPDATE order_sync
SET current_status = $2,
    tracking_number = COALESCE($3, tracking_number),
    last_status_check = $4,
    updated_at = now()
WHERE wc_order_id = $1
`, upd.WCOrderID, upd.Status, upd.TrackingNumber, upd.CheckedAt)
	if err != nil {
		return false, errors.Wrap(err, "update order sync")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return prev != upd.Status, nil
}

func (s *Storage) ListRecentOrderSyncs(ctx context.Context, limit int) ([]*models.OrderSyncRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
SELECT
  id, wc_order_id, elogist_order_id, sys_order_id,
  current_status, tracking_number, last_status_check,
  created_at, updated_at
FROM order_sync
ORDER BY updated_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent order syncs")
	}
	defer rows.Close()

	out := make([]*models.OrderSyncRecord, 0, limit)
	for rows.Next() {
		var r models.OrderSyncRecord
		if err := rows.Scan(
			&r.ID, &r.WCOrderID, &r.ElogistOrderID, &r.SysOrderID,
			&r.CurrentStatus, &r.TrackingNumber, &r.LastStatusCheck,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan order sync")
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CountOrderSyncs(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM order_sync`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count order syncs")
	}
	return n, nil
}
