package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMoneyCentavos parses Brazilian currency notation ("R$ 12.345,67",
// "1.234,00", "1500") into centavos. It is shared by the extractors (to
// flag VALOR_NAO_PARSEAVEL rows) and the normalizer (to fill the canonical
// estimated value).
func ParseMoneyCentavos(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimPrefix(s, "r$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}

	// Brazilian notation: '.' thousands separator, ',' decimal separator.
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "")
	intPart := s
	fracPart := "00"
	if idx := strings.LastIndex(s, ","); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
		if len(fracPart) != 2 {
			return 0, fmt.Errorf("malformed decimal part %q", raw)
		}
	}
	if intPart == "" {
		return 0, fmt.Errorf("malformed value %q", raw)
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", raw, err)
	}
	cents, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cents %q: %w", raw, err)
	}
	if whole < 0 {
		return 0, fmt.Errorf("negative value %q", raw)
	}
	return whole*100 + cents, nil
}
