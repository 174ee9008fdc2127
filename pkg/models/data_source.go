package models

import "time"

// DataSource describes an upstream agency and when its data was last refreshed.
type DataSource struct {
	SourceCode       Source     `json:"source_code"`
	SourceName       string     `json:"source_name"`
	Description      string     `json:"description"`
	BaseURL          string     `json:"base_url"`
	UpdateFrequency  string     `json:"update_frequency"`
	DataQualityScore int        `json:"data_quality_score"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
}

// DefaultDataSources are the registry rows for the three agencies.
var DefaultDataSources = []DataSource{
	{
		SourceCode:       SourceWorldBank,
		SourceName:       "World Bank",
		Description:      "World Development Indicators - annual country-level development data",
		BaseURL:          "https://databank.worldbank.org/",
		UpdateFrequency:  "Annual",
		DataQualityScore: 5,
	},
	{
		SourceCode:       SourceOECD,
		SourceName:       "OECD",
		Description:      "OECD Main Science and Technology Indicators",
		BaseURL:          "https://data-explorer.oecd.org/",
		UpdateFrequency:  "Quarterly",
		DataQualityScore: 4,
	},
	{
		SourceCode:       SourceIMF,
		SourceName:       "International Monetary Fund",
		Description:      "IMF World Economic Outlook Database - Biannual macroeconomic projections",
		BaseURL:          "https://www.imf.org/en/Publications/WEO/weo-database/",
		UpdateFrequency:  "Biannual",
		DataQualityScore: 4,
	},
}
