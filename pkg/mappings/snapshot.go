// Package mappings resolves source-native codes to the unified model and
// populates the mapping tables.
package mappings

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// Lister is the part of the mapping repository a snapshot is loaded from.
type Lister interface {
	ListIndicatorMappings(ctx context.Context, src models.Source) ([]models.IndicatorMapping, error)
	ListCountryMappings(ctx context.Context, src models.Source) ([]models.CountryMapping, error)
}

// CountryInfo is the resolved form of a source-native country code.
type CountryInfo struct {
	Name        string
	UnifiedCode string
}

// Snapshot is an immutable view of the mappings of one source, keyed by
// source-native code. It is safe for concurrent reads.
type Snapshot struct {
	source     models.Source
	industries map[string]string
	countries  map[string]CountryInfo
}

// Preload loads the snapshot for src with exactly two queries.
func Preload(ctx context.Context, repo Lister, src models.Source) (*Snapshot, error) {
	indicators, err := repo.ListIndicatorMappings(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s indicator mappings: %w", src, err)
	}

	countries, err := repo.ListCountryMappings(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s country mappings: %w", src, err)
	}

	return NewSnapshot(src, indicators, countries), nil
}

// NewSnapshot builds a snapshot from mapping rows. Rows without a code for src
// are ignored. A code mapped to several industries resolves to the one
// declared last in industry.Order.
func NewSnapshot(src models.Source, indicators []models.IndicatorMapping, countries []models.CountryMapping) *Snapshot {
	s := &Snapshot{
		source:     src,
		industries: make(map[string]string, len(indicators)),
		countries:  make(map[string]CountryInfo, len(countries)),
	}

	for i := range indicators {
		code := indicators[i].SourceCode(src)
		if code == nil || *code == "" {
			continue
		}
		if existing, ok := s.industries[*code]; ok {
			s.industries[*code] = industry.Prefer(existing, indicators[i].Industry)
			continue
		}
		s.industries[*code] = indicators[i].Industry
	}

	for i := range countries {
		code := countries[i].SourceCode(src)
		if code == nil || *code == "" {
			continue
		}
		s.countries[*code] = CountryInfo{
			Name:        countries[i].CountryName,
			UnifiedCode: countries[i].UnifiedCode,
		}
	}

	return s
}

// Source returns the source the snapshot was built for.
func (s *Snapshot) Source() models.Source { return s.source }

// IndicatorIndustry returns the industry of a source-native indicator code.
func (s *Snapshot) IndicatorIndustry(code string) (string, bool) {
	name, ok := s.industries[code]
	return name, ok
}

// Country resolves a source-native country code.
func (s *Snapshot) Country(code string) (CountryInfo, bool) {
	info, ok := s.countries[code]
	return info, ok
}

// Len returns the number of indicator and country entries.
func (s *Snapshot) Len() (indicators, countries int) {
	return len(s.industries), len(s.countries)
}
