package sanitize

import "strings"

// Family is a group of indicators that measure the same quantity.
type Family string

const (
	FamilyNone      Family = ""
	FamilyGDPGrowth Family = "GDP_GROWTH"
	FamilyInflation Family = "INFLATION"
)

var familyCodes = map[string]Family{
	"NY.GDP.MKTP.KD.ZG": FamilyGDPGrowth,
	"NGDP_RPCH":         FamilyGDPGrowth,
	"FP.CPI.TOTL.ZG":    FamilyInflation,
	"PCPIPCH":           FamilyInflation,
}

// FamilyOf classifies an indicator code into a family, or FamilyNone.
func FamilyOf(code string) Family {
	if f, ok := familyCodes[code]; ok {
		return f
	}
	upper := strings.ToUpper(code)
	switch {
	case strings.Contains(upper, "GDP") && strings.Contains(upper, "RPCH"):
		return FamilyGDPGrowth
	case strings.HasPrefix(upper, "PCPI") && strings.HasSuffix(upper, "PCH"),
		strings.Contains(upper, "INFLATION"):
		return FamilyInflation
	}
	return FamilyNone
}

// BoundsFor returns the value bounds for an indicator's family,
// falling back to DefaultValueBounds.
func BoundsFor(code string) Bounds {
	switch FamilyOf(code) {
	case FamilyGDPGrowth:
		return GDPGrowthBounds
	case FamilyInflation:
		return InflationBounds
	}
	return DefaultValueBounds
}
