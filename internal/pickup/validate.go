package pickup

import (
	"regexp"

	"github.com/wse/elogist-sync/internal/carrier"
)

var (
	zasilkovnaNumeric = regexp.MustCompile(`^\d{3,6}$`)
	zasilkovnaAlnum   = regexp.MustCompile(`(?i)^[A-Z0-9]{3,8}$`)
	pplFormat         = regexp.MustCompile(`(?i)^[A-Z0-9_-]{3,20}$`)
	dpdFormat         = regexp.MustCompile(`(?i)^[A-Z0-9]{3,15}$`)
)

// ValidFormat checks the pickup-point id against the carrier's branch id
// format. Unknown carriers accept anything non-empty.
func ValidFormat(carrierID, pointID string) bool {
	if pointID == "" {
		return false
	}
	switch carrierID {
	case carrier.Zasilkovna:
		return zasilkovnaNumeric.MatchString(pointID) || zasilkovnaAlnum.MatchString(pointID)
	case carrier.PPL:
		return pplFormat.MatchString(pointID)
	case carrier.DPDCZ:
		return dpdFormat.MatchString(pointID)
	default:
		return true
	}
}
