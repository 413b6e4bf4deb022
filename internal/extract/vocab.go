// Package extract turns classified documents into candidate records. Each
// extractor is selected by the classifier's family and reports per-row
// failures without aborting the rest of the document.
package extract

import (
	"strings"
)

// Column identifies one recognized table column.
type Column string

// Recognized columns of auction lot tables.
const (
	ColumnLot          Column = "lote"
	ColumnDescription  Column = "descricao"
	ColumnValuation    Column = "avaliacao"
	ColumnPlate        Column = "placa"
	ColumnChassis      Column = "chassi"
	ColumnRegistration Column = "renavam"
	ColumnBrand        Column = "marca"
	ColumnModel        Column = "modelo"
	ColumnYear         Column = "ano"
	ColumnCity         Column = "cidade"
	ColumnState        Column = "uf"
)

// headerVocabulary maps normalized header tokens to columns. The vocabulary
// is closed: unrecognized headers are ignored rather than guessed.
var headerVocabulary = map[string]Column{
	"lote":          ColumnLot,
	"lote n":        ColumnLot,
	"n lote":        ColumnLot,
	"numero lote":   ColumnLot,
	"numero do lote": ColumnLot,
	"item":          ColumnLot,
	"descricao":     ColumnDescription,
	"descricao do bem": ColumnDescription,
	"bem":           ColumnDescription,
	"objeto":        ColumnDescription,
	"avaliacao":     ColumnValuation,
	"valor":         ColumnValuation,
	"valor avaliacao": ColumnValuation,
	"valor de avaliacao": ColumnValuation,
	"lance minimo":  ColumnValuation,
	"lance inicial": ColumnValuation,
	"placa":         ColumnPlate,
	"chassi":        ColumnChassis,
	"chassis":       ColumnChassis,
	"renavam":       ColumnRegistration,
	"marca":         ColumnBrand,
	"marca modelo":  ColumnBrand,
	"modelo":        ColumnModel,
	"ano":           ColumnYear,
	"ano fab":       ColumnYear,
	"ano modelo":    ColumnYear,
	"cidade":        ColumnCity,
	"municipio":     ColumnCity,
	"uf":            ColumnState,
	"estado":        ColumnState,
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "õ", "o", "ô", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
	"º", "", "°", "", "ª", "",
)

// NormalizeToken lowercases, strips accents and punctuation, and collapses
// whitespace so header cells compare against the vocabulary.
func NormalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentReplacer.Replace(s)
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// MatchHeader maps cell positions to recognized columns. A header is valid
// only when it names at least a lot column and a description column.
func MatchHeader(cells []string) (map[int]Column, bool) {
	mapping := make(map[int]Column, len(cells))
	for i, cell := range cells {
		token := NormalizeToken(cell)
		if token == "" {
			continue
		}
		if col, ok := headerVocabulary[token]; ok {
			if _, taken := hasColumn(mapping, col); !taken {
				mapping[i] = col
			}
		}
	}
	_, hasLot := hasColumn(mapping, ColumnLot)
	_, hasDesc := hasColumn(mapping, ColumnDescription)
	if !hasLot || !hasDesc {
		return nil, false
	}
	return mapping, true
}

func hasColumn(mapping map[int]Column, want Column) (int, bool) {
	for i, col := range mapping {
		if col == want {
			return i, true
		}
	}
	return 0, false
}

// HeaderScore counts how many vocabulary tokens appear in a free-text line.
// The classifier uses it to spot tabular layouts inside PDF text.
func HeaderScore(line string) int {
	normalized := NormalizeToken(line)
	if normalized == "" {
		return 0
	}
	fields := strings.Fields(normalized)
	score := 0
	for _, f := range fields {
		if _, ok := headerVocabulary[f]; ok {
			score++
		}
	}
	return score
}
