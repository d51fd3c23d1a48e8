package pickup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wse/elogist-sync/internal/carrier"
	"github.com/wse/elogist-sync/internal/models"
)

// SessionStore reads checkout-session values as a last resort: orders that
// lost their meta during checkout still carry the selection in the session.
type SessionStore interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
}

type Resolver struct {
	sessions SessionStore
}

func New(sessions SessionStore) *Resolver {
	return &Resolver{sessions: sessions}
}

// Order-level meta keys tried for every method, most specific first.
var orderMetaKeys = []string{
	"_pickup_point_id",
	"_elogist_pickup_point_id",
	"_elogist_branch_id",
	"_branch_id",
	"_delivery_point_id",
}

// Shipping-line meta keys, as the various checkout plugins write them.
var lineMetaKeys = []string{
	"pickup_point_id",
	"_pickup_point_id",
	"_branch_id",
	"branch_id",
	"pickup_id",
	"delivery_point_id",
}

var carrierMetaKeys = map[string][]string{
	carrier.Zasilkovna: {
		"_packeta_point_id",
		"_zasilkovna_point_id",
		"_wse_pickup_point_id_wse_elogist_shipping_zasilkovna",
		"_wse_pickup_point_id_zasilkovna",
	},
	carrier.PPL: {
		"_ppl_point_id",
		"_parcelshop_id",
		"_wse_pickup_point_id_wse_elogist_shipping_ppl_parcelshop",
		"_wse_pickup_point_id_ppl_parcelshop",
	},
}

var carrierSessionKeys = map[string][]string{
	carrier.Zasilkovna: {"packeta_point_id", "zasilkovna_point_id"},
	carrier.PPL:        {"ppl_point_id", "parcelshop_id"},
}

// Resolve finds the pickup-point id selected for the order's shipping
// method. The checkout flow has written it under different names over time,
// so this walks an ordered candidate chain: order meta, carrier-specific
// meta, shipping-line meta, then the checkout session. A method id with an
// ":instance" suffix is retried once with the suffix stripped. Returns ""
// when nothing is found; never an error.
func (r *Resolver) Resolve(ctx context.Context, o *models.ShopOrder, methodID, carrierID string) string {
	if v := r.resolveOnce(ctx, o, methodID, carrierID); v != "" {
		return v
	}
	if base, _, ok := strings.Cut(methodID, ":"); ok && base != methodID {
		return r.resolveOnce(ctx, o, base, carrierID)
	}
	return ""
}

func (r *Resolver) resolveOnce(ctx context.Context, o *models.ShopOrder, methodID, carrierID string) string {
	// Canonical key first; everything after it is a read-side fallback.
	keys := append([]string{fmt.Sprintf("_wse_pickup_point_id_%s", methodID)}, orderMetaKeys...)
	keys = append(keys, carrierMetaKeys[carrierID]...)
	for _, k := range keys {
		if v := pointValue(o.MetaData.Get(k)); v != "" {
			return v
		}
	}

	for _, line := range o.ShippingLines {
		if line.MethodID != methodID && !strings.HasPrefix(line.MethodID, methodID) {
			continue
		}
		for _, k := range lineMetaKeys {
			if v := pointValue(line.MetaData.Get(k)); v != "" {
				return v
			}
		}
	}

	return r.fromSession(ctx, o.SessionID, methodID, carrierID)
}

func (r *Resolver) fromSession(ctx context.Context, sessionID, methodID, carrierID string) string {
	if r.sessions == nil || sessionID == "" {
		return ""
	}
	keys := []string{
		fmt.Sprintf("wse_pickup_point_%s", methodID),
		"wse_current_pickup_point",
		"pickup_point_id",
		"branch_id",
	}
	keys = append(keys, carrierSessionKeys[carrierID]...)
	for _, k := range keys {
		raw, ok, err := r.sessions.Get(ctx, sessionID, k)
		if err != nil {
			slog.Warn("checkout session read failed", "key", k, "error", err.Error())
			continue
		}
		if !ok {
			continue
		}
		if v := pointValue(raw); v != "" {
			return v
		}
	}
	return ""
}

// pointValue accepts both plain ids and the JSON objects some widgets
// store, e.g. {"pickup_id":"PPL_001","name":"..."}.
func pointValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return ""
	}
	for _, k := range []string{"pickup_id", "id", "point_id", "branch_id"} {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
