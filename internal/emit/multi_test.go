package emit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arremate/ingestor/internal/pipeline"
)

type failingSink struct{ err error }

func (s failingSink) Emit(context.Context, pipeline.CanonicalRecord) error { return s.err }

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a := NewMemorySink()
	b := NewMemorySink()
	sink := Multi(a, nil, b)

	require.NoError(t, sink.Emit(context.Background(), validRecord("lot-aaaa")))
	require.Equal(t, 1, a.Len())
	require.Equal(t, 1, b.Len())
}

func TestMultiStillWritesHealthySinks(t *testing.T) {
	t.Parallel()

	healthy := NewMemorySink()
	sink := Multi(failingSink{err: errors.New("sink down")}, healthy)

	err := sink.Emit(context.Background(), validRecord("lot-aaaa"))
	require.Error(t, err)
	require.Equal(t, 1, healthy.Len())
}
