package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/arremate/ingestor/internal/pdftext/pdftest"
	"github.com/arremate/ingestor/internal/pipeline"
)

func tabularDoc(body []byte, contentType string) pipeline.SourceDocument {
	return pipeline.SourceDocument{
		URL:         "https://leiloes.example.gov.br/editais/anexo-ii.csv",
		Body:        body,
		ContentType: contentType,
		FetchedAt:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

const semicolonCSV = `Lote;Descrição;Avaliação;Placa;UF
001;VW GOL 1.0 FLEX 2014 BRANCO;R$ 12.500,00;KQP1234;rj
002;FIAT UNO MILLE FIRE 2008;R$ 6.800,00;LMN5678;RJ
003;HONDA CG 150 TITAN 2011 VERMELHA;R$ 3.200,00;;RJ
;CAMINHÃO MB 1113 SUCATA APROVEITÁVEL;R$ 15.000,00;XYZ0001;RJ
004;MOTO;R$ 2.000,00;ABC9999;RJ
005;GM CELTA 1.0 2009 PRATA;a consultar;DEF1111;RJ
`

func TestTabularCSVRowsAndRowErrors(t *testing.T) {
	t.Parallel()

	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(tabularDoc([]byte(semicolonCSV), "text/csv"))
	require.Len(t, records, 3)
	require.Len(t, errs, 3)

	first := records[0]
	require.Equal(t, "001", first.LotNumber)
	require.Equal(t, "VW GOL 1.0 FLEX 2014 BRANCO", first.Description)
	require.Equal(t, "R$ 12.500,00", first.Valuation)
	require.Equal(t, "KQP1234", first.Plate)
	require.Equal(t, "RJ", first.State)
	require.Equal(t, 1, first.Provenance.Row)
	require.Equal(t, pipeline.FamilyTableStart, first.Provenance.ExtractorFamily)
	require.Equal(t, tabularVersion, first.Provenance.ExtractorVersion)
	require.InDelta(t, 0.9, first.Provenance.Confidence, 0.0001)

	require.Equal(t, "003", records[2].LotNumber)
	require.Empty(t, records[2].Plate)

	codes := map[pipeline.ErrorCode]int{}
	for _, e := range errs {
		codes[e.Code]++
	}
	require.Equal(t, 1, codes[pipeline.CodeLotNumberMissing])
	require.Equal(t, 1, codes[pipeline.CodeDescriptionScant])
	require.Equal(t, 1, codes[pipeline.CodeValueUnparsable])

	for _, e := range errs {
		require.Positive(t, e.Row)
	}
}

func TestTabularLateProvenanceFamily(t *testing.T) {
	t.Parallel()

	body := []byte("Lote;Descrição;Avaliação\n001;VW GOL 1.0 FLEX 2014 BRANCO;R$ 12.500,00\n")
	records, errs := NewTabular(pipeline.FamilyTableLate).Extract(tabularDoc(body, "text/csv"))
	require.Empty(t, errs)
	require.Len(t, records, 1)
	require.Equal(t, pipeline.FamilyTableLate, records[0].Provenance.ExtractorFamily)
}

func TestTabularNoHeader(t *testing.T) {
	t.Parallel()

	body := []byte("coluna a;coluna b;coluna c\n1;2;3\n")
	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(tabularDoc(body, "text/csv"))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeTableHeaderInvalid, errs[0].Code)
}

func TestTabularEmptyDocument(t *testing.T) {
	t.Parallel()

	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(tabularDoc(nil, "text/csv"))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeTableNotFound, errs[0].Code)
}

func TestTabularHeaderWithoutDataRows(t *testing.T) {
	t.Parallel()

	body := []byte("Lote,Descrição,Avaliação\n")
	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(tabularDoc(body, "text/csv"))
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeTableNotFound, errs[0].Code)
}

func TestTabularXLSX(t *testing.T) {
	t.Parallel()

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]interface{}{
		{"Lote", "Descrição", "Avaliação", "Marca", "Modelo", "Ano"},
		{"10", "FIAT STRADA WORKING CABINE SIMPLES", "R$ 28.000,00", "FIAT", "STRADA", "2017"},
		{"11", "RENAULT SANDERO EXPRESSION 1.6", "R$ 21.500,00", "RENAULT", "SANDERO", "2015"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(tabularDoc(buf.Bytes(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	require.Empty(t, errs)
	require.Len(t, records, 2)

	require.Equal(t, "10", records[0].LotNumber)
	require.Equal(t, "FIAT", records[0].Brand)
	require.Equal(t, "STRADA", records[0].Model)
	require.Equal(t, "2017", records[0].Year)
	require.Equal(t, "11", records[1].LotNumber)
}

func TestTabularPDFWithDocumentContext(t *testing.T) {
	t.Parallel()

	body := pdftest.Build(
		[]string{"EDITAL DE LEILAO 04/2025"},
		[]string{"Comitente: DETRAN-RJ"},
		[]string{"Data do leilao: 15/08/2025"},
		[]string{"Lote  Descricao  Avaliacao"},
		[]string{"001  VW GOL 1.0 FLEX BRANCO  R$ 12.500,00"},
		[]string{"002  FIAT UNO MILLE FIRE CINZA  R$ 6.800,00"},
	)

	doc := tabularDoc(body, "application/pdf")
	records, errs := NewTabular(pipeline.FamilyTableStart).Extract(doc)
	require.Empty(t, errs)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, "001", first.LotNumber)
	require.Equal(t, "VW GOL 1.0 FLEX BRANCO", first.Description)
	require.Equal(t, "R$ 12.500,00", first.Valuation)
	require.Equal(t, "15-08-2025", first.AuctionDate)
	require.Equal(t, "DETRAN-RJ", first.Entity)
	require.Equal(t, 4, first.Provenance.Page)
}
