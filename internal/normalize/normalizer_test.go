package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arremate/ingestor/internal/hash/sha256"
	"github.com/arremate/ingestor/internal/pipeline"
)

func newNormalizer(allowed ...string) *Normalizer {
	return New(sha256.New(), Config{AllowedDomains: allowed})
}

func completeCandidate() pipeline.CandidateRecord {
	return pipeline.CandidateRecord{
		LotNumber:     "001",
		ProcessNumber: "SEI-2025/04711",
		Entity:        "DETRAN-RJ",
		Title:         "VW GOL 1.0 FLEX BRANCO",
		Description:   "VW GOL 1.0 FLEX BRANCO, documento ok",
		Category:      "Veículo",
		Valuation:     "R$ 12.500,00",
		AuctionDate:   "15-08-2025",
		PublishedDate: "10-06-2025",
		City:          "Niterói",
		State:         "rj",
		SourceURL:     "https://leiloes.example.gov.br/lote/91823",
		Plate:         "KQP1234",
		Provenance: pipeline.Provenance{
			SourceURL:  "https://leiloes.example.gov.br/lote/91823",
			Confidence: 0.9,
		},
	}
}

func TestNormalizeCompleteRecordIsValid(t *testing.T) {
	t.Parallel()

	out, err := newNormalizer().Normalize(completeCandidate())
	require.NoError(t, err)

	require.Equal(t, pipeline.StatusValid, out.Status)
	require.True(t, len(out.InternalID) == len("lot-")+16)
	require.Equal(t, "RJ", out.State)
	require.Equal(t, "15-08-2025", out.AuctionDate)
	require.Equal(t, int64(1250000), out.EstimatedValue)
	require.Contains(t, out.Tags, "veiculo")
}

func TestIdentityIsDeterministicAndInsensitiveToNoise(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	a, err := n.Normalize(completeCandidate())
	require.NoError(t, err)

	noisy := completeCandidate()
	noisy.Entity = "  detran-rj "
	noisy.LotNumber = " 001"
	noisy.Description = "descrição reescrita pelo portal nessa versão"
	noisy.Valuation = "R$ 13.000,00"
	b, err := n.Normalize(noisy)
	require.NoError(t, err)

	require.Equal(t, a.InternalID, b.InternalID)
}

func TestIdentityChangesWithKeyFields(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	a, err := n.Normalize(completeCandidate())
	require.NoError(t, err)

	other := completeCandidate()
	other.LotNumber = "002"
	b, err := n.Normalize(other)
	require.NoError(t, err)

	require.NotEqual(t, a.InternalID, b.InternalID)
}

func TestIdentitySourceKeyWhenEntityMissing(t *testing.T) {
	t.Parallel()

	rec := completeCandidate()
	rec.Entity = ""
	rec.AuctionID = "leilao-04-2025"

	n := newNormalizer()
	out, err := n.Normalize(rec)
	require.NoError(t, err)
	require.NotEqual(t, pipeline.StatusRejected, out.Status)

	again, err := n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, out.InternalID, again.InternalID)
}

func TestFallbackIdentityRejectsButStaysDeterministic(t *testing.T) {
	t.Parallel()

	rec := pipeline.CandidateRecord{
		Title:       "FIAT UNO MILLE FIRE",
		Description: "FIAT UNO MILLE FIRE 2008 CINZA",
		SourceURL:   "https://leiloes.example.gov.br/lote/404",
	}

	n := newNormalizer()
	a, err := n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusRejected, a.Status)

	b, err := n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, a.InternalID, b.InternalID)
}

func TestNormalizeEmptyCandidateFails(t *testing.T) {
	t.Parallel()

	_, err := newNormalizer().Normalize(pipeline.CandidateRecord{SourceURL: "https://example.com"})
	require.Error(t, err)

	var verr pipeline.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, pipeline.CodeMandatoryFieldMissing, verr.Code)
}

func TestDatesAreDroppedUnlessCanonical(t *testing.T) {
	t.Parallel()

	n := newNormalizer()
	for _, raw := range []string{"15/08/2025", "2025-08-15", "15.08.2025", "5-8-2025", "32-01-2025", "01-13-2025"} {
		rec := completeCandidate()
		rec.AuctionDate = raw
		out, err := n.Normalize(rec)
		require.NoError(t, err, raw)
		require.Empty(t, out.AuctionDate, raw)
		require.Equal(t, pipeline.StatusNotSellable, out.Status, raw)
	}
}

func TestURLNormalization(t *testing.T) {
	t.Parallel()

	n := newNormalizer()

	rec := completeCandidate()
	rec.NoticeURL = "www.detran.rj.gov.br/editais/04-2025.pdf"
	out, err := n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, "https://www.detran.rj.gov.br/editais/04-2025.pdf", out.NoticeURL)

	rec = completeCandidate()
	rec.NoticeURL = "edital anexo II"
	out, err = n.Normalize(rec)
	require.NoError(t, err)
	require.Empty(t, out.NoticeURL)

	rec = completeCandidate()
	rec.NoticeURL = "ftp://detran.rj.gov.br/edital.pdf"
	out, err = n.Normalize(rec)
	require.NoError(t, err)
	require.Empty(t, out.NoticeURL)
}

func TestAllowedDomainRaisesConfidence(t *testing.T) {
	t.Parallel()

	n := newNormalizer("leiloes.example.gov.br")
	out, err := n.Normalize(completeCandidate())
	require.NoError(t, err)
	require.InDelta(t, 1.0, out.Provenance.Confidence, 0.0001)

	other := newNormalizer("outro.example.com")
	out, err = other.Normalize(completeCandidate())
	require.NoError(t, err)
	require.InDelta(t, 0.9, out.Provenance.Confidence, 0.0001)
}

func TestGateDowngrades(t *testing.T) {
	t.Parallel()

	n := newNormalizer()

	rec := completeCandidate()
	rec.Valuation = ""
	out, err := n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusNotSellable, out.Status)

	rec = completeCandidate()
	rec.PublishedDate = ""
	out, err = n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusDraft, out.Status)

	rec = completeCandidate()
	rec.City = ""
	out, err = n.Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusNotSellable, out.Status)
}

func TestTagsFollowClosedVocabulary(t *testing.T) {
	t.Parallel()

	rec := completeCandidate()
	rec.Category = "Automóvel conservado"
	rec.Description = "CAMINHÃO MB 1113 PARCIALMENTE SUCATA"
	rec.Title = rec.Description

	out, err := newNormalizer().Normalize(rec)
	require.NoError(t, err)
	require.Equal(t, []string{"caminhao", "sucata", "veiculo"}, out.Tags)

	rec = completeCandidate()
	rec.Category = "Categoria exótica inventada"
	rec.Plate = ""
	rec.Chassis = ""
	rec.Registration = ""
	rec.Brand = ""
	rec.Description = "bem diverso sem indicio veicular"
	rec.Title = rec.Description
	out, err = newNormalizer().Normalize(rec)
	require.NoError(t, err)
	require.Empty(t, out.Tags)
}
