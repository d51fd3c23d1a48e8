package carrier

import (
	"fmt"
	"log/slog"
	"strings"
)

// eLogist carrier identifiers.
const (
	PPL        = "PPL"
	Zasilkovna = "ZASILKOVNA"
	DPDCZ      = "DPD-CZ"
	CPost      = "CPOST"
)

// Mapping is the eLogist carrier/service pair for one shop shipping method.
type Mapping struct {
	CarrierID           string `json:"carrierId"`
	Service             string `json:"service"`
	RequiresPickupPoint bool   `json:"requiresPickupPoint"`
}

type methodRule struct {
	key string
	m   Mapping
}

// Ordered: exact and substring matching walk this list top to bottom, so
// the more specific methods must come before their prefixes.
var methodRules = []methodRule{
	{"wse_shipping_ppl_parcelshop", Mapping{PPL, "ParcelShop", true}},
	{"wse_shipping_ppl", Mapping{PPL, "PPL Parcel CZ Private", false}},
	{"wse_shipping_zasilkovna_home", Mapping{Zasilkovna, "Nejvýhodnější doručení na adresu", false}},
	{"wse_shipping_zasilkovna", Mapping{Zasilkovna, "Osobní odběr", true}},
	{"ppl_parcelshop", Mapping{PPL, "ParcelShop", true}},
	{"zasilkovna", Mapping{Zasilkovna, "Osobní odběr", true}},
	{"ppl", Mapping{PPL, "PPL Parcel CZ Private", false}},
	{"dpd", Mapping{DPDCZ, "DPD Private", false}},
	{"ceska_posta", Mapping{CPost, "Balík Do ruky", false}},
}

// DefaultMapping is used when nothing matches; callers get a PPL address
// delivery rather than a failed order.
var DefaultMapping = Mapping{PPL, "PPL Parcel CZ Private", false}

// Map resolves a shop shipping method to its carrier mapping. Match order:
// exact method id (with and without the :instance suffix), substring, title
// keywords, then DefaultMapping. Never fails; the default is logged.
// The second return is the rule key that matched ("" for title/default).
func Map(methodID string, instanceID int, title string) (Mapping, string) {
	fullID := methodID
	if instanceID > 0 {
		fullID = fmt.Sprintf("%s:%d", methodID, instanceID)
	}

	for _, r := range methodRules {
		if r.key == methodID || r.key == fullID {
			return r.m, r.key
		}
	}

	for _, r := range methodRules {
		if strings.Contains(methodID, r.key) {
			return r.m, r.key
		}
	}

	if m, ok := mapByTitle(title); ok {
		return m, ""
	}

	slog.Warn("unknown shipping method, using default carrier",
		"method_id", methodID, "title", title,
		"carrier", DefaultMapping.CarrierID)
	return DefaultMapping, ""
}

func mapByTitle(title string) (Mapping, bool) {
	t := strings.ToLower(title)
	switch {
	case t == "":
		return Mapping{}, false
	case strings.Contains(t, "ppl") && strings.Contains(t, "parcelshop"):
		return Mapping{PPL, "ParcelShop", true}, true
	case strings.Contains(t, "ppl"):
		return Mapping{PPL, "PPL Parcel CZ Private", false}, true
	case strings.Contains(t, "zásilkovna") || strings.Contains(t, "zasilkovna"):
		if strings.Contains(t, "adresu") || strings.Contains(t, "doručení") {
			return Mapping{Zasilkovna, "Nejvýhodnější doručení na adresu", false}, true
		}
		return Mapping{Zasilkovna, "Osobní odběr", true}, true
	}
	return Mapping{}, false
}
