package models

// ValuePoint is the minimal projection of an observation used by quality checks.
type ValuePoint struct {
	ID            int64   `json:"id"`
	CountryCode   string  `json:"country_code"`
	IndicatorCode string  `json:"indicator_code"`
	Year          int     `json:"year"`
	Value         float64 `json:"value"`
}

// SourcePair holds one country-year seen by two sources for the same concept.
type SourcePair struct {
	CountryCode string  `json:"country_code"`
	Year        int     `json:"year"`
	WBValue     float64 `json:"wb_value"`
	IMFValue    float64 `json:"imf_value"`
}

// CountryCoverage is the number of sources mapped for one country.
type CountryCoverage struct {
	UnifiedCode string `json:"unified_code"`
	CountryName string `json:"country_name"`
	Sources     int    `json:"sources"`
}

// UnmappedIndicator is an observed indicator code with no registry entry for its source.
type UnmappedIndicator struct {
	Source        Source `json:"source"`
	IndicatorCode string `json:"indicator_code"`
}

// IndustryCoverage counts mapped indicators for one industry.
type IndustryCoverage struct {
	Industry       string `json:"industry"`
	TotalConcepts  int64  `json:"total_indicators"`
	WBIndicators   int64  `json:"wb_indicators"`
	OECDIndicators int64  `json:"oecd_indicators"`
	IMFIndicators  int64  `json:"imf_indicators"`
}
