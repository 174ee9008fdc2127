package models

import "time"

// CountryMapping links a unified country code to each source's native code.
type CountryMapping struct {
	UnifiedCode    string    `json:"unified_code"`
	CountryName    string    `json:"country_name"`
	WBCode         *string   `json:"wb_code,omitempty"`
	OECDCode       *string   `json:"oecd_code,omitempty"`
	IMFCode        *string   `json:"imf_code,omitempty"`
	PrioritySource Source    `json:"priority_source"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// SourceCode returns the native code for src, or nil.
func (m *CountryMapping) SourceCode(src Source) *string {
	switch src {
	case SourceWorldBank:
		return m.WBCode
	case SourceOECD:
		return m.OECDCode
	case SourceIMF:
		return m.IMFCode
	}
	return nil
}

// SourceCount returns how many sources have a code for this country.
func (m *CountryMapping) SourceCount() int {
	n := 0
	for _, src := range AllSources {
		if c := m.SourceCode(src); c != nil && *c != "" {
			n++
		}
	}
	return n
}

// IndicatorMapping links a unified concept to each source's native indicator code.
type IndicatorMapping struct {
	UnifiedConcept     string    `json:"unified_concept"`
	ConceptDescription string    `json:"concept_description"`
	WBCode             *string   `json:"wb_code,omitempty"`
	OECDCode           *string   `json:"oecd_code,omitempty"`
	IMFCode            *string   `json:"imf_code,omitempty"`
	Industry           string    `json:"industry"`
	PrioritySource     Source    `json:"priority_source"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// SourceCode returns the native code for src, or nil.
func (m *IndicatorMapping) SourceCode(src Source) *string {
	switch src {
	case SourceWorldBank:
		return m.WBCode
	case SourceOECD:
		return m.OECDCode
	case SourceIMF:
		return m.IMFCode
	}
	return nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
