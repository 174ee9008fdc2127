package models

// CountryMetadata is a row of the World Bank country metadata file.
type CountryMetadata struct {
	CountryCode string `json:"country_code"`
	ShortName   string `json:"short_name"`
	TableName   string `json:"table_name"`
	Region      string `json:"region,omitempty"`
	IncomeGroup string `json:"income_group,omitempty"`
}

// IndicatorMetadata is a row of the World Bank series metadata file.
type IndicatorMetadata struct {
	IndicatorCode string `json:"indicator_code"`
	IndicatorName string `json:"indicator_name"`
	Definition    string `json:"definition,omitempty"`
	UnitOfMeasure string `json:"unit_of_measure,omitempty"`
	SourceNote    string `json:"source_note,omitempty"`
	Topic         string `json:"topic,omitempty"`
	Periodicity   string `json:"periodicity,omitempty"`
	Industry      string `json:"industry"`
}

// Availability records that a country publishes a series, from the country-series file.
type Availability struct {
	CountryCode   string `json:"country_code"`
	IndicatorCode string `json:"indicator_code"`
	LastUpdated   string `json:"last_updated,omitempty"`
}
