package extract

import (
	"regexp"
	"strings"
)

// Brazilian sources publish day-first dates. Only the two unambiguous
// notations are accepted; anything else stays raw for the normalizer to
// reject instead of being guessed at.
var dayFirstExpr = regexp.MustCompile(`^(\d{2})[/-](\d{2})[/-](\d{4})$`)

// CanonicalizeDate renders a day-first source date as DD-MM-YYYY. ok is
// false when the input does not match a known day-first notation.
func CanonicalizeDate(raw string) (string, bool) {
	m := dayFirstExpr.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2] + "-" + m[3], true
}
