package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arremate/ingestor/internal/pdftext/pdftest"
	"github.com/arremate/ingestor/internal/pipeline"
)

func nativeDoc(body []byte) pipeline.SourceDocument {
	return pipeline.SourceDocument{
		URL:         "https://leiloes.example.gov.br/editais/edital-04-2025.pdf",
		Body:        body,
		ContentType: "application/pdf",
		FetchedAt:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestNativeTextExtractsLotsWithFieldLines(t *testing.T) {
	t.Parallel()

	body := pdftest.Build(
		[]string{"Lote 001 - VW GOL 1.0 FLEX BRANCO"},
		[]string{"Placa: KQP1234"},
		[]string{"Chassi: 9BWZZZ377VT004251"},
		[]string{"Renavam: 00845632190"},
		[]string{"Avaliacao: R$ 12.500,00"},
		[]string{"Data do leilao: 15/08/2025"},
		[]string{"Localizacao: Duque de Caxias/RJ"},
		[]string{"Ano: 2014"},
		[]string{"Comitente: DETRAN-RJ"},
		[]string{"Lote 002"},
		[]string{"FIAT UNO MILLE FIRE CINZA"},
		[]string{"Avaliacao: R$ 6.800,00"},
	)

	records, errs := NewNativeText().Extract(nativeDoc(body))
	require.Empty(t, errs)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "001", first.LotNumber)
	require.Equal(t, "VW GOL 1.0 FLEX BRANCO", first.Description)
	require.Equal(t, "KQP1234", first.Plate)
	require.Equal(t, "9BWZZZ377VT004251", first.Chassis)
	require.Equal(t, "00845632190", first.Registration)
	require.Equal(t, "R$ 12.500,00", first.Valuation)
	require.Equal(t, "15-08-2025", first.AuctionDate)
	require.Equal(t, "Duque de Caxias", first.City)
	require.Equal(t, "RJ", first.State)
	require.Equal(t, "2014", first.Year)
	require.Equal(t, "DETRAN-RJ", first.Entity)
	require.Equal(t, 1, first.Provenance.Page)
	require.Equal(t, 1, first.Provenance.Row)
	require.Equal(t, pipeline.FamilyNativeText, first.Provenance.ExtractorFamily)
	require.Equal(t, nativeTextVersion, first.Provenance.ExtractorVersion)
	require.InDelta(t, 0.6, first.Provenance.Confidence, 0.0001)

	second := records[1]
	require.Equal(t, "002", second.LotNumber)
	require.Equal(t, "FIAT UNO MILLE FIRE CINZA", second.Description)
	require.Equal(t, "FIAT UNO MILLE FIRE CINZA", second.Title)
	require.Equal(t, "R$ 6.800,00", second.Valuation)
	require.Equal(t, 10, second.Provenance.Page)
}

func TestNativeTextScantDescriptionIsRowError(t *testing.T) {
	t.Parallel()

	body := pdftest.Build(
		[]string{"Lote 005 - SUCATA"},
		[]string{"Avaliacao: R$ 100,00"},
	)

	records, errs := NewNativeText().Extract(nativeDoc(body))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeDescriptionScant, errs[0].Code)
	require.Equal(t, 1, errs[0].Row)
	require.Equal(t, 1, errs[0].Page)
}

func TestNativeTextWithoutLotMarkers(t *testing.T) {
	t.Parallel()

	body := pdftest.Build(
		[]string{"EDITAL DE ALIENACAO 04/2025"},
		[]string{"Condicoes gerais de venda"},
	)

	records, errs := NewNativeText().Extract(nativeDoc(body))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeUnexpectedLayout, errs[0].Code)
}

func TestNativeTextCorruptedBody(t *testing.T) {
	t.Parallel()

	records, errs := NewNativeText().Extract(nativeDoc([]byte("%PDF-1.4 severed before xref")))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeCorruptedDocument, errs[0].Code)
}
