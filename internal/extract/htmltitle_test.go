package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arremate/ingestor/internal/pipeline"
)

func htmlDoc(body string) pipeline.SourceDocument {
	return pipeline.SourceDocument{
		URL:         "https://leiloes.example.gov.br/lote/91823",
		Body:        []byte(body),
		ContentType: "text/html",
		FetchedAt:   time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHTMLTitleExtractsVehicleTitle(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<!DOCTYPE html><html><head>
		<title>FIAT/OGGI CS 1983/1983. Localização: Cordeiro/RJ</title>
	</head><body><div id="app"></div></body></html>`)

	records, errs := NewHTMLTitle().Extract(doc)
	require.Empty(t, errs)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "FIAT/OGGI CS 1983/1983", rec.Title)
	require.Equal(t, "FIAT", rec.Brand)
	require.Equal(t, "OGGI CS", rec.Model)
	require.Equal(t, "1983", rec.Year)
	require.Equal(t, "Cordeiro", rec.City)
	require.Equal(t, "RJ", rec.State)
	require.Equal(t, doc.URL, rec.SourceURL)

	require.True(t, rec.Provenance.TitleOnly)
	require.InDelta(t, 0.4, rec.Provenance.Confidence, 0.0001)
	require.Equal(t, pipeline.FamilyHTMLListing, rec.Provenance.ExtractorFamily)
	require.Equal(t, htmlTitleVersion, rec.Provenance.ExtractorVersion)
}

func TestHTMLTitlePrefersOpenGraphTitle(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<html><head>
		<title>Portal de Leilões</title>
		<meta property="og:title" content="VW/GOL 2014/2015. Localização: Niterói/rj">
	</head><body></body></html>`)

	records, errs := NewHTMLTitle().Extract(doc)
	require.Empty(t, errs)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "VW", rec.Brand)
	require.Equal(t, "GOL", rec.Model)
	require.Equal(t, "2014", rec.Year)
	require.Equal(t, "Niterói", rec.City)
	require.Equal(t, "RJ", rec.State)
}

func TestHTMLTitleWithoutTitleFailsLayout(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<html><head></head><body><div id="root"></div></body></html>`)

	records, errs := NewHTMLTitle().Extract(doc)
	require.Empty(t, records)
	require.Len(t, errs, 1)
	require.Equal(t, pipeline.CodeUnexpectedLayout, errs[0].Code)
}

func TestHTMLTitleUnknownMakeKeepsHeadAsModel(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<html><head>
		<title>AGRALE MARRUA 2009. Localização: Campos dos Goytacazes/RJ</title>
	</head></html>`)

	records, errs := NewHTMLTitle().Extract(doc)
	require.Empty(t, errs)
	require.Len(t, records, 1)

	rec := records[0]
	require.Empty(t, rec.Brand)
	require.Equal(t, "AGRALE MARRUA", rec.Model)
	require.Equal(t, "2009", rec.Year)
	require.Equal(t, "Campos dos Goytacazes", rec.City)
}

func TestHTMLTitleWithoutLocationKeepsSummary(t *testing.T) {
	t.Parallel()

	doc := htmlDoc(`<html><head><title>HONDA/CG 160 FAN 2020/2020</title></head></html>`)

	records, errs := NewHTMLTitle().Extract(doc)
	require.Empty(t, errs)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "HONDA", rec.Brand)
	require.Equal(t, "CG 160 FAN", rec.Model)
	require.Equal(t, "2020", rec.Year)
	require.Empty(t, rec.City)
	require.Empty(t, rec.State)
}
