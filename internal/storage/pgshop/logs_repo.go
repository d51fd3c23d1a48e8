package pgshop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// AppendLog writes one leveled entry to sync_logs. The table is the
// operator-facing log surfaced on /status; slog stays the process log.
func (s *Storage) AppendLog(ctx context.Context, level, source, message string, logCtx map[string]any) error {
	var ctxJSON *string
	if len(logCtx) > 0 {
		b, err := json.Marshal(logCtx)
		if err != nil {
			return errors.Wrap(err, "marshal log context")
		}
		str := string(b)
		ctxJSON = &str
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO sync_logs (ts, level, source, message, context)
VALUES (now(), $1, $2, $3, $4)
`, level, source, message, ctxJSON)
	return errors.Wrap(err, "insert sync log")
}

// LogStats24h counts entries per level over the trailing 24 hours.
func (s *Storage) LogStats24h(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, `
SELECT level, COUNT(*)
FROM sync_logs
WHERE ts >= now() - interval '24 hours'
GROUP BY level
`)
	if err != nil {
		return nil, errors.Wrap(err, "select log stats")
	}
	defer rows.Close()

	out := map[string]int64{"error": 0, "warning": 0, "info": 0, "debug": 0}
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, errors.Wrap(err, "scan log stats")
		}
		out[level] = n
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CleanupLogs removes entries older than the retention window.
func (s *Storage) CleanupLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sync_logs WHERE ts < $1`,
		time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, errors.Wrap(err, "delete old sync logs")
	}
	return tag.RowsAffected(), nil
}
