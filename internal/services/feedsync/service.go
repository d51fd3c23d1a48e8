package feedsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wse/elogist-sync/internal/feed"
	"github.com/wse/elogist-sync/internal/integrations/shop"
	"github.com/wse/elogist-sync/internal/models"
	"github.com/wse/elogist-sync/internal/storage/pgshop"
)

// ErrSyncRunning means another run holds the feed lock.
var ErrSyncRunning = errors.New("feed sync already running")

const (
	lockKey = "feedsync:lock"

	// Attribute driving shop variations, matches the feed's variant parameter.
	sizeAttribute = "Velikost"
)

type Fetcher interface {
	Fetch(ctx context.Context) (*feed.Feed, error)
}

type Catalog interface {
	GetProductMapping(ctx context.Context, xmlGUID, variantID string) (*models.ProductMapping, error)
	UpsertProductMapping(ctx context.Context, m models.ProductMapping) (*models.ProductMapping, error)
	AppendLog(ctx context.Context, level, source, message string, context map[string]any) error
}

type ShopCatalog interface {
	UpsertProduct(ctx context.Context, p shop.ProductUpsert) (uint64, error)
	UpsertVariation(ctx context.Context, productID uint64, v shop.VariationUpsert) (uint64, error)
}

type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type StateStore interface {
	SetState(ctx context.Context, key, value string) error
}

// Stats is the summary of one run, persisted to sync_state for the
// diagnostics endpoint.
type Stats struct {
	StartedAt time.Time `json:"started_at"`
	Processed int       `json:"processed"`
	Imported  int       `json:"imported"`
	Updated   int       `json:"updated"`
	Variants  int       `json:"variants"`
	Errors    int       `json:"errors"`
	Duration  string    `json:"duration"`
}

type Service struct {
	fetcher Fetcher
	catalog Catalog
	shop    ShopCatalog
	lock    Locker
	limiter RateLimiter
	state   StateStore

	lockTTL         time.Duration
	writesPerMinute int64
}

func New(fetcher Fetcher, catalog Catalog, sc ShopCatalog, lock Locker,
	limiter RateLimiter, state StateStore, lockTTL time.Duration, writesPerMinute int64) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	if writesPerMinute <= 0 {
		writesPerMinute = 60
	}
	return &Service{
		fetcher:         fetcher,
		catalog:         catalog,
		shop:            sc,
		lock:            lock,
		limiter:         limiter,
		state:           state,
		lockTTL:         lockTTL,
		writesPerMinute: writesPerMinute,
	}
}

// Run performs one full feed import. One item failing never aborts the
// run; it is counted and logged instead.
func (s *Service) Run(ctx context.Context) (*Stats, error) {
	owner := uuid.NewString()
	ok, err := s.lock.Acquire(ctx, lockKey, owner, s.lockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "acquire feed lock")
	}
	if !ok {
		return nil, ErrSyncRunning
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), lockKey, owner); err != nil {
			slog.Warn("release feed lock failed", "err", err)
		}
	}()

	stats := &Stats{StartedAt: time.Now().UTC()}

	f, err := s.fetcher.Fetch(ctx)
	if err != nil {
		_ = s.catalog.AppendLog(ctx, "error", "feedsync", "feed fetch failed", map[string]any{
			"error": err.Error(),
		})
		return nil, errors.Wrap(err, "fetch feed")
	}

	for i := range f.Items {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Processed++
		if err := s.syncItem(ctx, &f.Items[i], stats); err != nil {
			stats.Errors++
			_ = s.catalog.AppendLog(ctx, "error", "feedsync", "item sync failed", map[string]any{
				"guid":  f.Items[i].GUID,
				"name":  f.Items[i].Name,
				"error": err.Error(),
			})
		}
	}

	stats.Duration = time.Since(stats.StartedAt).Truncate(time.Millisecond).String()
	if b, err := json.Marshal(stats); err == nil {
		_ = s.state.SetState(ctx, pgshop.StateKeyFeedLastRun, string(b))
	}
	_ = s.catalog.AppendLog(ctx, "info", "feedsync", "feed sync finished", map[string]any{
		"processed": stats.Processed,
		"imported":  stats.Imported,
		"updated":   stats.Updated,
		"variants":  stats.Variants,
		"errors":    stats.Errors,
	})
	return stats, nil
}

func (s *Service) syncItem(ctx context.Context, it *feed.ShopItem, stats *Stats) error {
	if it.GUID == "" {
		return errors.New("item has no GUID")
	}
	if it.Name == "" {
		return errors.New("item has no NAME")
	}

	// Items with variants must carry a size on every variant; a feed that
	// loses the parameter would otherwise collapse variants into one.
	for _, v := range it.Variants {
		if v.Size() == "" {
			return errors.Errorf("variant %s has no %s parameter", v.ID, sizeAttribute)
		}
	}

	existing, err := s.catalog.GetProductMapping(ctx, it.GUID, "")
	if err != nil {
		return err
	}

	productType := models.ProductTypeSimple
	if it.HasVariants() {
		productType = models.ProductTypeVariable
	}

	up := productUpsert(it, productType)
	if existing != nil {
		up.ID = existing.ShopProductID
	}

	if err := s.throttle(ctx); err != nil {
		return err
	}
	productID, err := s.shop.UpsertProduct(ctx, up)
	if err != nil {
		return errors.Wrap(err, "upsert product")
	}

	if existing == nil {
		stats.Imported++
	} else {
		stats.Updated++
	}

	if _, err := s.catalog.UpsertProductMapping(ctx, models.ProductMapping{
		XMLGUID:       it.GUID,
		XMLVariantID:  "",
		XMLID:         it.ID,
		XMLCode:       it.Code,
		ShopProductID: productID,
		ProductType:   productType,
		SyncStatus:    models.SyncStatusSynced,
	}); err != nil {
		return err
	}

	for _, v := range it.Variants {
		if err := s.syncVariant(ctx, it, productID, v); err != nil {
			return errors.Wrapf(err, "variant %s", v.ID)
		}
		stats.Variants++
	}
	return nil
}

func (s *Service) syncVariant(ctx context.Context, it *feed.ShopItem, productID uint64, v feed.Variant) error {
	existing, err := s.catalog.GetProductMapping(ctx, it.GUID, v.ID)
	if err != nil {
		return err
	}

	vu := variationUpsert(v)
	if existing != nil {
		vu.ID = existing.ShopProductID
	}

	if err := s.throttle(ctx); err != nil {
		return err
	}
	variationID, err := s.shop.UpsertVariation(ctx, productID, vu)
	if err != nil {
		return errors.Wrap(err, "upsert variation")
	}

	_, err = s.catalog.UpsertProductMapping(ctx, models.ProductMapping{
		XMLGUID:       it.GUID,
		XMLVariantID:  v.ID,
		XMLID:         it.ID,
		XMLCode:       v.Code,
		ShopProductID: variationID,
		ProductType:   models.ProductTypeVariation,
		SyncStatus:    models.SyncStatusSynced,
	})
	return err
}

// throttle keeps shop writes under the configured per-minute budget by
// sleeping out the rest of the window once the budget is spent.
func (s *Service) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	for {
		key := "feedsync:writes:" + time.Now().UTC().Format("200601021504")
		allowed, _, err := s.limiter.Allow(ctx, key, s.writesPerMinute, time.Minute)
		if err != nil {
			// A broken limiter must not stop the sync.
			slog.Warn("feed rate limiter failed", "err", err)
			return nil
		}
		if allowed {
			return nil
		}
		wait := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func productUpsert(it *feed.ShopItem, productType string) shop.ProductUpsert {
	up := shop.ProductUpsert{
		Name:             it.Name,
		Type:             productType,
		SKU:              it.Code,
		Description:      it.Description,
		ShortDescription: it.ShortDescription,
		MetaData: []shop.MetaData{
			{Key: "_xml_guid", Value: it.GUID},
			{Key: "_xml_id", Value: it.ID},
		},
	}
	if it.EAN != "" {
		up.MetaData = append(up.MetaData, shop.MetaData{Key: "_ean", Value: it.EAN})
	}
	// Image binaries stay on the feed CDN; only the refs are recorded.
	if len(it.Images) > 0 {
		up.MetaData = append(up.MetaData, shop.MetaData{Key: "_xml_images", Value: it.Images})
	}

	if productType == models.ProductTypeSimple {
		up.RegularPrice = formatPrice(it.StandardPrice, it.PriceVAT)
		if it.StandardPrice > 0 && it.PriceVAT < it.StandardPrice {
			up.SalePrice = formatPrice(it.PriceVAT, 0)
		}
		stock := it.StockAmount()
		up.StockQuantity = &stock
		up.ManageStock = true
		if it.Logistic != nil && it.Logistic.Weight > 0 {
			up.Weight = strconv.FormatFloat(it.Logistic.Weight, 'f', -1, 64)
		}
	} else {
		sizes := make([]string, 0, len(it.Variants))
		for _, v := range it.Variants {
			sizes = append(sizes, v.Size())
		}
		up.Attributes = []shop.Attribute{
			{Name: sizeAttribute, Options: sizes, Variation: true, Visible: true},
		}
	}

	for _, p := range it.InformationParameters {
		for _, val := range p.Values {
			up.MetaData = append(up.MetaData, shop.MetaData{
				Key:   fmt.Sprintf("_param_%s", p.Name),
				Value: val,
			})
		}
	}
	return up
}

func variationUpsert(v feed.Variant) shop.VariationUpsert {
	stock := v.StockAmount()
	vu := shop.VariationUpsert{
		SKU:           v.Code,
		RegularPrice:  formatPrice(v.StandardPrice, v.PriceVAT),
		StockQuantity: &stock,
		ManageStock:   true,
		Attributes: []shop.VariationAttribute{
			{Name: sizeAttribute, Option: v.Size()},
		},
		MetaData: []shop.MetaData{
			{Key: "_xml_variant_id", Value: v.ID},
			{Key: "_xml_variant_code", Value: v.Code},
		},
	}
	if v.EAN != "" {
		vu.MetaData = append(vu.MetaData, shop.MetaData{Key: "_ean", Value: v.EAN})
	}
	if v.StandardPrice > 0 && v.PriceVAT < v.StandardPrice {
		vu.SalePrice = formatPrice(v.PriceVAT, 0)
	}
	if v.Logistic != nil && v.Logistic.Weight > 0 {
		vu.Weight = strconv.FormatFloat(v.Logistic.Weight, 'f', -1, 64)
	}
	return vu
}

// formatPrice prefers the standard price, falling back to the VAT price.
func formatPrice(standard, vat float64) string {
	v := standard
	if v <= 0 {
		v = vat
	}
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
