package pgshop

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Well-known sync_state keys.
const (
	StateKeyStatusPollAfter = "statuspoll:after"
	StateKeyFeedLastRun     = "feedsync:last_run"
)

func (s *Storage) GetState(ctx context.Context, key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(ctx, `SELECT value FROM sync_state WHERE key = $1`, key).Scan(&val)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select sync state")
	}
	return val, true, nil
}

func (s *Storage) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO sync_state (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, key, value)
	return errors.Wrap(err, "upsert sync state")
}
