package marketdata

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeTicker folds full-width characters (as typed with a Japanese
// IME) to ASCII, trims whitespace and upper-cases the result, so "７２０３．ｔ"
// and "7203.T" name the same instrument.
func NormalizeTicker(s string) string {
	s = width.Fold.String(s)
	return strings.ToUpper(strings.TrimSpace(s))
}
