package payload

import "strings"

// FormatPhone normalizes Czech phone numbers to the +420 form the carriers
// require. Numbers that are clearly foreign are passed through cleaned.
func FormatPhone(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	clean := b.String()

	switch {
	case strings.HasPrefix(clean, "+420"):
		return clean
	case strings.HasPrefix(clean, "420") && len(clean) == 12:
		return "+" + clean
	case !strings.HasPrefix(clean, "+") && len(clean) == 9:
		return "+420" + clean
	default:
		return clean
	}
}
