package models

import (
	"fmt"
	"strings"
)

// Source identifies one of the upstream statistical agencies.
type Source string

const (
	SourceWorldBank Source = "WB"
	SourceOECD      Source = "OECD"
	SourceIMF       Source = "IMF"
)

// AllSources lists the sources in priority order (WB is authoritative on conflict).
var AllSources = []Source{SourceWorldBank, SourceOECD, SourceIMF}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceWorldBank, SourceOECD, SourceIMF:
		return true
	}
	return false
}

func (s Source) String() string {
	return string(s)
}

// ParseSource accepts the source code in any case ("wb", "oecd", "imf").
func ParseSource(value string) (Source, error) {
	s := Source(strings.ToUpper(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", value)
	}
	return s, nil
}

// PrioritySource picks the authoritative source among the populated codes.
// World Bank wins over OECD, OECD over IMF. Returns fallback when none is set.
func PrioritySource(wbCode, oecdCode, imfCode *string, fallback Source) Source {
	switch {
	case wbCode != nil && *wbCode != "":
		return SourceWorldBank
	case oecdCode != nil && *oecdCode != "":
		return SourceOECD
	case imfCode != nil && *imfCode != "":
		return SourceIMF
	}
	return fallback
}
