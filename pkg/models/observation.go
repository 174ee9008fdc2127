package models

import "time"

// Observation is one data point: a country's value for an indicator in a year.
// The same shape is persisted to one table per source.
type Observation struct {
	ID               int64     `json:"id,omitempty"`
	CountryCode      string    `json:"country_code"` // unified code
	CountryName      string    `json:"country_name,omitempty"`
	IndicatorCode    string    `json:"indicator_code"` // source-native
	IndicatorName    string    `json:"indicator_name,omitempty"`
	Year             int       `json:"year"`
	Value            float64   `json:"value"`
	Industry         string    `json:"industry"`
	Source           Source    `json:"source"`
	DataQualityScore int       `json:"data_quality_score"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`

	// Source-specific extras. Empty when the source has no such field.
	SourceCountryCode string `json:"source_country_code,omitempty"` // IMF WEO country code
	Units             string `json:"units,omitempty"`               // IMF
	Dataflow          string `json:"dataflow,omitempty"`            // OECD
}

// ObservationKey is the natural key of an observation.
type ObservationKey struct {
	CountryCode   string
	IndicatorCode string
	Year          int
	Source        Source
}

// Key returns the natural key of the observation.
func (o *Observation) Key() ObservationKey {
	return ObservationKey{
		CountryCode:   o.CountryCode,
		IndicatorCode: o.IndicatorCode,
		Year:          o.Year,
		Source:        o.Source,
	}
}
