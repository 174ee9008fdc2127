package sanitize

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// LooksLikeInjection reports whether free text carries a SQL injection fingerprint.
// Persistence is always parameterized; this only feeds the suspicious-field counter.
func LooksLikeInjection(s string) bool {
	if len(s) < 3 {
		return false
	}
	isSQLi, _ := libinjection.IsSQLi(s)
	return isSQLi
}
