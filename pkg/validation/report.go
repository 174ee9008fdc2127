package validation

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// Quality status labels.
const (
	StatusExcellent = "EXCELLENT"
	StatusGood      = "GOOD"
	StatusFair      = "FAIR"
	StatusPoor      = "POOR"
)

// Anomaly types.
const (
	AnomalyRangeViolation = "RANGE_VIOLATION"
	outlierSuffix         = "_OUTLIER"
	varianceSuffix        = "_VARIANCE"
)

// Range violation issues.
const (
	IssueInvalidYear = "invalid_year"
	IssueNotFinite   = "not_finite"
	IssueOutOfRange  = "out_of_range"
	IssueStatOutlier = "statistical_outlier"
)

// Warning codes.
const (
	WarnCountVariance      = "COUNT_VARIANCE"
	WarnMissingSource      = "MISSING_SOURCE"
	WarnNoBaseline         = "NO_BASELINE"
	WarnMissingIndustry    = "MISSING_INDUSTRY"
	WarnOrphanedCountries  = "ORPHANED_COUNTRY_MAPPINGS"
	WarnOrphanedIndicators = "ORPHANED_INDICATOR_MAPPINGS"
	WarnUnmappedCountries  = "UNMAPPED_COUNTRIES"
	WarnUnmappedIndicators = "UNMAPPED_INDICATORS"
)

// Report is the outcome of one validation run.
type Report struct {
	RunID           uuid.UUID          `json:"run_id"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	DurationSeconds float64            `json:"duration_seconds"`
	Summary         Summary            `json:"summary"`
	RecordCounts    []SourceCount      `json:"record_counts"`
	Metrics         Metrics            `json:"quality_metrics"`
	Consistency     ConsistencyResult  `json:"cross_validation"`
	Coverage        Coverage           `json:"coverage"`
	Anomalies       []Anomaly          `json:"anomalies"`
	Mappings        MappingIntegrity   `json:"mappings"`
	Warnings        []Warning          `json:"warnings"`
	Families        []Family           `json:"families"`
	Years           sanitize.YearRange `json:"years"`
}

// Summary holds the headline numbers of a run.
type Summary struct {
	Status          string  `json:"overall_status"`
	QualityScore    float64 `json:"quality_score"`
	TotalRecords    int64   `json:"total_records"`
	ValidRecords    int64   `json:"valid_records"`
	InvalidRecords  int64   `json:"invalid_records"`
	Inconsistencies int     `json:"inconsistencies"`
	Anomalies       int     `json:"anomalies"`
	Warnings        int     `json:"warnings"`
}

// SourceCount compares the actual row count of a source with its baseline.
// Baseline is zero when no baseline was available.
type SourceCount struct {
	Source   models.Source `json:"source"`
	Actual   int64         `json:"actual"`
	Baseline int64         `json:"baseline"`
	Variance float64       `json:"variance"`
	Within   bool          `json:"within_threshold"`
}

// Metrics are the four quality sub-metrics, each a percentage in [0,100].
type Metrics struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Coverage     float64 `json:"coverage"`
	Accuracy     float64 `json:"accuracy"`
}

// Inconsistency is a WB/IMF pair of the same concept that disagrees.
// VariancePercent is nil when the World Bank value is zero.
type Inconsistency struct {
	Type            string   `json:"type"`
	CountryCode     string   `json:"country_code"`
	Year            int      `json:"year"`
	WBValue         float64  `json:"wb_value"`
	IMFValue        float64  `json:"imf_value"`
	Variance        float64  `json:"variance"`
	VariancePercent *float64 `json:"variance_percent,omitempty"`
}

// ConsistencyResult lists cross-source disagreements.
type ConsistencyResult struct {
	ByFamily        map[string]int  `json:"by_family"`
	Total           int             `json:"total_inconsistencies"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
}

// CountryBuckets counts countries by the number of sources mapped.
type CountryBuckets struct {
	Total  int `json:"total_countries"`
	Tri    int `json:"tri_source_countries"`
	Dual   int `json:"dual_source_countries"`
	Single int `json:"single_source_countries"`
	None   int `json:"no_source_countries"`
}

// Coverage describes how well the sources cover countries and industries.
type Coverage struct {
	Countries         CountryBuckets            `json:"country_coverage"`
	Industries        []models.IndustryCoverage `json:"industry_coverage"`
	MissingIndustries []string                  `json:"missing_industries"`
}

// Anomaly is a range violation or a statistical outlier.
// Non-finite values are reported in RawValue with Value left at zero.
type Anomaly struct {
	Type          string           `json:"type"`
	Source        models.Source    `json:"source"`
	CountryCode   string           `json:"country_code"`
	IndicatorCode string           `json:"indicator_code"`
	Year          int              `json:"year"`
	Value         float64          `json:"value"`
	RawValue      string           `json:"raw_value,omitempty"`
	ZScore        float64          `json:"z_score,omitempty"`
	Issue         string           `json:"issue"`
	Range         *sanitize.Bounds `json:"range,omitempty"`
}

// MappingIntegrity lists registry entries without data and data without registry entries.
type MappingIntegrity struct {
	OrphanedCountries  []string `json:"orphaned_countries"`
	OrphanedIndicators []string `json:"orphaned_indicators"`
	UnmappedCountries  []string `json:"unmapped_countries"`
	// UnmappedIndicators shares the UnmappedLimit cap with UnmappedCountries.
	UnmappedIndicators []models.UnmappedIndicator `json:"unmapped_indicators"`
}

// Warning is a non-fatal finding.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
