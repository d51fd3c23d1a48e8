package carrier

// Per-carrier cash-on-delivery ceilings in CZK, from the eLogist carrier
// contracts.
var codCeilings = map[string]float64{
	PPL:        100000,
	Zasilkovna: 20000,
	DPDCZ:      50000,
	CPost:      100000,
}

// CODCeiling returns the COD ceiling for the carrier. ok=false means the
// carrier takes no COD at all.
func CODCeiling(carrierID string) (float64, bool) {
	c, ok := codCeilings[carrierID]
	return c, ok
}
