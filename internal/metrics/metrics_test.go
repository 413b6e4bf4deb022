package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserversAreSafeBeforeInit(t *testing.T) {
	// Collectors are nil until Init runs; observers must not panic.
	ObserveDocument("detran-rj", "extracted")
	ObserveFetchRetry("detran-rj")
	ObserveTombstone("detran-rj")
	ObserveRecord("valid")
	ObserveQuarantine("extraction", "TABELA_NAO_ENCONTRADA")
}

func TestInitAndCounters(t *testing.T) {
	Init()
	Init() // idempotent

	before := testutil.ToFloat64(documentsTotal.WithLabelValues("pge-sp", "extracted"))
	ObserveDocument("pge-sp", "extracted")
	ObserveDocument("pge-sp", "extracted")
	after := testutil.ToFloat64(documentsTotal.WithLabelValues("pge-sp", "extracted"))
	require.Equal(t, before+2, after)

	beforeQ := testutil.ToFloat64(quarantineTotal.WithLabelValues("validation", "NUMERO_LOTE_AUSENTE"))
	ObserveQuarantine("validation", "NUMERO_LOTE_AUSENTE")
	afterQ := testutil.ToFloat64(quarantineTotal.WithLabelValues("validation", "NUMERO_LOTE_AUSENTE"))
	require.Equal(t, beforeQ+1, afterQ)
}

func TestHandlerServesRegistry(t *testing.T) {
	Init()
	require.NotNil(t, Handler())
}
