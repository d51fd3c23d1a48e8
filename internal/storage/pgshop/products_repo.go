package pgshop

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/models"
)

func (s *Storage) UpsertProductMapping(ctx context.Context, m models.ProductMapping) (*models.ProductMapping, error) {
	if m.LastSyncAt.IsZero() {
		m.LastSyncAt = time.Now().UTC()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = models.SyncStatusSynced
	}

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO product_mappings (
  xml_guid, xml_variant_id, xml_id, xml_code,
  shop_product_id, product_type, sync_status, last_sync_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (xml_guid, xml_variant_id)
DO UPDATE SET
  xml_id = EXCLUDED.xml_id,
  xml_code = EXCLUDED.xml_code,
  shop_product_id = EXCLUDED.shop_product_id,
  product_type = EXCLUDED.product_type,
  sync_status = EXCLUDED.sync_status,
  last_sync_at = EXCLUDED.last_sync_at
RETURNING id
`, m.XMLGUID, m.XMLVariantID, m.XMLID, m.XMLCode,
		m.ShopProductID, m.ProductType, m.SyncStatus, m.LastSyncAt).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "upsert product mapping")
	}
	m.ID = id
	return &m, nil
}

// GetProductMapping returns nil without an error when the feed item was
// never imported. variantID is empty for the product row itself.
func (s *Storage) GetProductMapping(ctx context.Context, xmlGUID, variantID string) (*models.ProductMapping, error) {
	var m models.ProductMapping
	err := s.db.QueryRow(ctx, `
SELECT
  id, xml_guid, xml_variant_id, xml_id, xml_code,
  shop_product_id, product_type, sync_status, last_sync_at
FROM product_mappings
WHERE xml_guid = $1 AND xml_variant_id = $2
`, xmlGUID, variantID).Scan(
		&m.ID, &m.XMLGUID, &m.XMLVariantID, &m.XMLID, &m.XMLCode,
		&m.ShopProductID, &m.ProductType, &m.SyncStatus, &m.LastSyncAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select product mapping")
	}
	return &m, nil
}

// CountProductMappings returns (products, variants).
func (s *Storage) CountProductMappings(ctx context.Context) (int64, int64, error) {
	var products, variants int64
	err := s.db.QueryRow(ctx, `
SELECT
  COUNT(*) FILTER (WHERE xml_variant_id = ''),
  COUNT(*) FILTER (WHERE xml_variant_id <> '')
FROM product_mappings
`).Scan(&products, &variants)
	if err != nil {
		return 0, 0, errors.Wrap(err, "count product mappings")
	}
	return products, variants, nil
}
