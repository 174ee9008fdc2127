package validation

import (
	"github.com/ekaya-inc/ekaya-macro/pkg/config"
	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// DefaultUnmappedLimit caps the unmapped observation countries and indicators
// listed in a report.
const DefaultUnmappedLimit = 20

// maxConcurrentPhases bounds the connections one run holds at a time.
const maxConcurrentPhases = 4

// Family is an indicator concept published by both the World Bank and the IMF
// under different native codes.
type Family struct {
	Name    sanitize.Family `json:"name"`
	WBCode  string          `json:"wb_code"`
	IMFCode string          `json:"imf_code"`

	// Range is the plausible value range; values outside it are range violations.
	Range sanitize.Bounds `json:"range"`

	// StatsRange bounds the values that feed the mean and standard deviation
	// used for outlier detection.
	StatsRange sanitize.Bounds `json:"stats_range"`

	// A WB/IMF pair is inconsistent when |wb-imf| > AbsTolerance and
	// |wb-imf|/|wb| > RelTolerance.
	AbsTolerance float64 `json:"abs_tolerance"`
	RelTolerance float64 `json:"rel_tolerance"`
}

// Weights are the quality score weights of the four sub-metrics.
type Weights struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Coverage     float64 `json:"coverage"`
	Accuracy     float64 `json:"accuracy"`
}

// Config is the policy of one validation run.
type Config struct {
	CountVarianceThreshold float64
	ZScoreThreshold        float64
	Weights                Weights
	PageSize               int
	Years                  sanitize.YearRange
	RequiredIndustries     []string
	RequiredSources        []models.Source

	// Baselines are the expected row counts per source. Sources without a
	// baseline are compared against the previous recorded run.
	Baselines map[models.Source]int64

	MaxInconsistencies        int
	MaxAnomalies              int
	UnmappedLimit             int
	ConsistencyPenaltyDivisor float64
	AccuracyPenaltyDivisor    float64
	Families                  []Family
}

// DefaultFamilies returns the GDP growth and inflation families.
func DefaultFamilies() []Family {
	return []Family{
		{
			Name:         sanitize.FamilyGDPGrowth,
			WBCode:       "NY.GDP.MKTP.KD.ZG",
			IMFCode:      "NGDP_RPCH",
			Range:        sanitize.GDPGrowthBounds,
			StatsRange:   sanitize.Bounds{Min: -30, Max: 30},
			AbsTolerance: 2.0,
			RelTolerance: 0.15,
		},
		{
			Name:         sanitize.FamilyInflation,
			WBCode:       "FP.CPI.TOTL.ZG",
			IMFCode:      "PCPIPCH",
			Range:        sanitize.InflationBounds,
			StatsRange:   sanitize.Bounds{Min: -10, Max: 50},
			AbsTolerance: 3.0,
			RelTolerance: 0.20,
		},
	}
}

// DefaultConfig returns the policy with every default applied.
func DefaultConfig() Config {
	return Config{
		CountVarianceThreshold: 0.05,
		ZScoreThreshold:        3.0,
		Weights: Weights{
			Completeness: 0.30,
			Consistency:  0.25,
			Coverage:     0.25,
			Accuracy:     0.20,
		},
		PageSize:                  50000,
		Years:                     sanitize.YearRange{Min: 1980, Max: 2030},
		RequiredIndustries:        append([]string(nil), industry.Order...),
		RequiredSources:           append([]models.Source(nil), models.AllSources...),
		Baselines:                 map[models.Source]int64{},
		MaxInconsistencies:        1000,
		MaxAnomalies:              100,
		UnmappedLimit:             DefaultUnmappedLimit,
		ConsistencyPenaltyDivisor: 100,
		AccuracyPenaltyDivisor:    1000,
		Families:                  DefaultFamilies(),
	}
}

// ConfigFrom builds the policy from the application configuration.
// Expected counts of zero leave that source without a configured baseline.
func ConfigFrom(c config.ValidationConfig) Config {
	cfg := DefaultConfig()
	cfg.CountVarianceThreshold = c.CountVarianceThreshold
	cfg.ZScoreThreshold = c.ZScoreThreshold
	cfg.Weights = Weights{
		Completeness: c.WeightCompleteness,
		Consistency:  c.WeightConsistency,
		Coverage:     c.WeightCoverage,
		Accuracy:     c.WeightAccuracy,
	}
	cfg.PageSize = c.PageSize
	cfg.Years = sanitize.YearRange{Min: c.MinYear, Max: c.MaxYear}
	cfg.MaxInconsistencies = c.MaxInconsistencies
	cfg.MaxAnomalies = c.MaxAnomalies
	cfg.ConsistencyPenaltyDivisor = c.ConsistencyPenaltyDivisor
	cfg.AccuracyPenaltyDivisor = c.AccuracyPenaltyDivisor

	expected := map[models.Source]int64{
		models.SourceWorldBank: c.ExpectedWB,
		models.SourceOECD:      c.ExpectedOECD,
		models.SourceIMF:       c.ExpectedIMF,
	}
	for src, n := range expected {
		if n > 0 {
			cfg.Baselines[src] = n
		}
	}
	return cfg
}

// family returns the configured family of an indicator code.
func (c *Config) family(code string) (Family, bool) {
	name := sanitize.FamilyOf(code)
	if name == sanitize.FamilyNone {
		return Family{}, false
	}
	for _, f := range c.Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// boundsFor returns the value range applied to code during re-validation.
func (c *Config) boundsFor(code string) sanitize.Bounds {
	if f, ok := c.family(code); ok {
		return f.Range
	}
	return sanitize.DefaultValueBounds
}
