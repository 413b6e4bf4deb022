package normalize

import (
	"sort"
	"strings"

	"github.com/arremate/ingestor/internal/pipeline"
)

// tagVocabulary is the closed output tag set. Free-text classifications
// collapse onto it; anything unrecognized is dropped, never invented.
var tagVocabulary = map[string]string{
	"veiculo":     "veiculo",
	"veículo":     "veiculo",
	"automovel":   "veiculo",
	"automóvel":   "veiculo",
	"carro":       "veiculo",
	"caminhao":    "caminhao",
	"caminhão":    "caminhao",
	"onibus":      "onibus",
	"ônibus":      "onibus",
	"moto":        "motocicleta",
	"motocicleta": "motocicleta",
	"motoneta":    "motocicleta",
	"utilitario":  "utilitario",
	"utilitário":  "utilitario",
	"sucata":      "sucata",
	"imovel":      "imovel",
	"imóvel":      "imovel",
	"equipamento": "equipamento",
	"maquina":     "equipamento",
	"máquina":     "equipamento",
}

// descriptionHints maps description keywords to tags when the source gave no
// usable classification.
var descriptionHints = map[string]string{
	"caminhao":    "caminhao",
	"caminhão":    "caminhao",
	"onibus":      "onibus",
	"ônibus":      "onibus",
	"moto ":       "motocicleta",
	"motocicleta": "motocicleta",
	"sucata":      "sucata",
}

// normalizeTags collapses the candidate's classification and descriptive
// text onto the closed vocabulary. Vehicle rows always carry "veiculo" when
// they expose plate, chassis, or registration evidence.
func normalizeTags(rec pipeline.CandidateRecord) []string {
	set := make(map[string]struct{})

	for _, word := range strings.Fields(strings.ToLower(rec.Category)) {
		if tag, ok := tagVocabulary[strings.Trim(word, ".,;:")]; ok {
			set[tag] = struct{}{}
		}
	}
	if rec.Plate != "" || rec.Chassis != "" || rec.Registration != "" || rec.Brand != "" {
		set["veiculo"] = struct{}{}
	}
	lowered := strings.ToLower(rec.Description + " " + rec.Title)
	for hint, tag := range descriptionHints {
		if strings.Contains(lowered, hint) {
			set[tag] = struct{}{}
		}
	}

	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
