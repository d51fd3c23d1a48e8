package pgshop

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS product_mappings (
  id BIGSERIAL PRIMARY KEY,
  xml_guid TEXT NOT NULL,
  xml_variant_id TEXT NOT NULL DEFAULT '',
  xml_id TEXT NOT NULL DEFAULT '',
  xml_code TEXT NOT NULL DEFAULT '',
  shop_product_id BIGINT NOT NULL DEFAULT 0,
  product_type TEXT NOT NULL,
  sync_status TEXT NOT NULL DEFAULT 'synced',
  last_sync_at TIMESTAMPTZ NOT NULL,
  UNIQUE (xml_guid, xml_variant_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_product_mappings_xml_code ON product_mappings(xml_code)`,
		`CREATE INDEX IF NOT EXISTS idx_product_mappings_sync_status ON product_mappings(sync_status)`,
		`
CREATE TABLE IF NOT EXISTS order_sync (
  id BIGSERIAL PRIMARY KEY,
  wc_order_id BIGINT NOT NULL,
  elogist_order_id TEXT NOT NULL,
  sys_order_id TEXT NULL,
  current_status TEXT NOT NULL,
  tracking_number TEXT NULL,
  last_status_check TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (wc_order_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_sync_current_status ON order_sync(current_status)`,
		`CREATE INDEX IF NOT EXISTS idx_order_sync_elogist_order_id ON order_sync(elogist_order_id)`,
		`
CREATE TABLE IF NOT EXISTS sync_logs (
  id BIGSERIAL PRIMARY KEY,
  ts TIMESTAMPTZ NOT NULL,
  level TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT 'general',
  message TEXT NOT NULL,
  context JSONB NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_ts ON sync_logs(ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_level_ts ON sync_logs(level, ts DESC)`,
		`
CREATE TABLE IF NOT EXISTS sync_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
