// Package ingest turns upstream extracts into sanitized observations.
//
// A single Pipeline handles every source; what differs between the World Bank,
// OECD and IMF feeds is captured in a Policy and in the RowReader that adapts
// the file or API format to Rows.
package ingest

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// IndicatorPolicy decides what happens to a row whose indicator is not mapped.
type IndicatorPolicy int

const (
	// IndicatorSkip drops the row and counts it as skipped.
	IndicatorSkip IndicatorPolicy = iota
	// IndicatorDefault tags the row with Policy.DefaultIndustry.
	IndicatorDefault
)

func (p IndicatorPolicy) String() string {
	switch p {
	case IndicatorSkip:
		return "skip"
	case IndicatorDefault:
		return "default"
	}
	return fmt.Sprintf("IndicatorPolicy(%d)", int(p))
}

// CountryPolicy decides what happens to a row whose country is not mapped.
type CountryPolicy int

const (
	// CountrySkip drops the row and counts it as skipped.
	CountrySkip CountryPolicy = iota
	// CountryEchoRawCode uses the raw code as the unified code.
	CountryEchoRawCode
)

func (p CountryPolicy) String() string {
	switch p {
	case CountrySkip:
		return "skip"
	case CountryEchoRawCode:
		return "echo"
	}
	return fmt.Sprintf("CountryPolicy(%d)", int(p))
}

// Policy is the per-source trust configuration of a pipeline run.
type Policy struct {
	Source              models.Source
	OnUnmappedIndicator IndicatorPolicy
	DefaultIndustry     string
	OnUnmappedCountry   CountryPolicy
	Years               sanitize.YearRange
	QualityScore        int

	// Required text fields; a row missing one is a validation error.
	RequireCountryName   bool
	RequireIndicatorName bool

	// CountryNameLen and IndicatorNameLen bound the sanitized names.
	CountryNameLen   int
	IndicatorNameLen int
}

// WorldBankPolicy is strict on indicators; World Bank country codes are the
// unified codes, so unmapped countries are echoed.
func WorldBankPolicy() Policy {
	return Policy{
		Source:               models.SourceWorldBank,
		OnUnmappedIndicator:  IndicatorSkip,
		OnUnmappedCountry:    CountryEchoRawCode,
		Years:                sanitize.WorldBankYears,
		QualityScore:         5,
		RequireCountryName:   true,
		RequireIndicatorName: true,
		CountryNameLen:       100,
		IndicatorNameLen:     255,
	}
}

// OECDPolicy is permissive: unknown measures land in the general industry and
// unknown areas keep their raw code.
func OECDPolicy() Policy {
	return Policy{
		Source:              models.SourceOECD,
		OnUnmappedIndicator: IndicatorDefault,
		DefaultIndustry:     industry.General,
		OnUnmappedCountry:   CountryEchoRawCode,
		Years:               sanitize.OECDYears,
		QualityScore:        4,
		CountryNameLen:      100,
		IndicatorNameLen:    255,
	}
}

// IMFPolicy is strict on both indicators and countries.
func IMFPolicy() Policy {
	return Policy{
		Source:              models.SourceIMF,
		OnUnmappedIndicator: IndicatorSkip,
		OnUnmappedCountry:   CountrySkip,
		Years:               sanitize.IMFYears,
		QualityScore:        4,
		RequireCountryName:  true,
		CountryNameLen:      100,
		IndicatorNameLen:    255,
	}
}

// PolicyFor returns the default policy of src.
func PolicyFor(src models.Source) (Policy, error) {
	switch src {
	case models.SourceWorldBank:
		return WorldBankPolicy(), nil
	case models.SourceOECD:
		return OECDPolicy(), nil
	case models.SourceIMF:
		return IMFPolicy(), nil
	}
	return Policy{}, fmt.Errorf("no ingest policy for source %q", src)
}

// Kind names one of the four ingestion variants.
type Kind string

const (
	KindWorldBankCSV Kind = "wb-csv"
	KindWorldBankAPI Kind = "wb-api"
	KindOECD         Kind = "oecd"
	KindIMF          Kind = "imf"
)

// Source returns the agency the variant loads.
func (k Kind) Source() models.Source {
	switch k {
	case KindOECD:
		return models.SourceOECD
	case KindIMF:
		return models.SourceIMF
	}
	return models.SourceWorldBank
}

// Policy returns the default policy of the variant.
func (k Kind) Policy() Policy {
	p, _ := PolicyFor(k.Source())
	return p
}
