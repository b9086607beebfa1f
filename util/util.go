// Package util contains misc internal utilities.
package util

import "unicode"

// AllElementsNumbers returns true if every rune in s is a digit or a
// decimal point, i.e. the string is a bare number with no unit suffix.
func AllElementsNumbers(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
