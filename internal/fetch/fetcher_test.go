package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/hash/sha256"
	"github.com/arremate/ingestor/internal/pipeline"
	"github.com/arremate/ingestor/internal/ratelimit"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type scriptedClient struct {
	responses []Response
	errs      []error
	calls     int
}

func (c *scriptedClient) Get(_ context.Context, _ string) (Response, error) {
	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return c.responses[i], err
}

type recordingSleeper struct {
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) {
	s.slept = append(s.slept, d)
}

func newTestFetcher(client Client, tombstones pipeline.TombstoneStore) (*Fetcher, *recordingSleeper) {
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: 1000})
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond)
	sleeper := &recordingSleeper{}
	f := New(
		client,
		limiter,
		policy,
		tombstones,
		sha256.New(),
		&fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	).WithSleeper(sleeper)
	return f, sleeper
}

func TestFetchSuccessHashesBody(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{
		URL:         "https://leiloes.example.org/edital-7.pdf",
		StatusCode:  200,
		Body:        []byte("%PDF-1.4 test"),
		ContentType: "application/pdf",
	}}}
	f, _ := newTestFetcher(client, NewMemoryTombstoneStore())

	doc, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://leiloes.example.org/edital-7.pdf",
		Source: "detran-rj",
	})
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Equal(t, "application/pdf", doc.ContentType)
	require.NotEmpty(t, doc.ContentHash)
	require.Equal(t, "detran-rj", doc.Source)
	require.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), doc.FetchedAt)
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{
		{StatusCode: 503},
		{StatusCode: 503},
		{URL: "https://example.org/lista.html", StatusCode: 200, Body: []byte("<html></html>")},
	}}
	f, sleeper := newTestFetcher(client, NewMemoryTombstoneStore())

	doc, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/lista.html",
		Source: "pge-sp",
	})
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Equal(t, 3, client.calls)
	require.Len(t, sleeper.slept, 2)
}

func TestFetchExhaustedRetriesReturnsFetchFailure(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{StatusCode: 500}}}
	f, _ := newTestFetcher(client, NewMemoryTombstoneStore())

	_, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/instavel.pdf",
		Source: "detran-rj",
	})
	var failure *pipeline.FetchFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 500, failure.StatusCode)
	require.Equal(t, 3, failure.Attempts)
	require.Equal(t, 3, client.calls)
}

func TestFetchNonRetryableStatusReportsSingleAttempt(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{StatusCode: 403}}}
	f, sleeper := newTestFetcher(client, NewMemoryTombstoneStore())

	_, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/restrito.pdf",
		Source: "detran-rj",
	})
	var failure *pipeline.FetchFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 403, failure.StatusCode)
	require.Equal(t, 1, failure.Attempts)
	require.Equal(t, 1, client.calls)
	require.Empty(t, sleeper.slept)
}

func TestFetch404TombstonesLocation(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{StatusCode: 404}}}
	tombstones := NewMemoryTombstoneStore()
	f, _ := newTestFetcher(client, tombstones)

	loc := pipeline.Location{URL: "https://example.org/removido.pdf", Source: "detran-rj"}
	_, err := f.Fetch(context.Background(), loc)
	require.ErrorIs(t, err, pipeline.ErrTombstoned)
	require.True(t, tombstones.IsTombstoned(loc.URL))
	require.Equal(t, 1, client.calls)

	// A second fetch never reaches the network.
	_, err = f.Fetch(context.Background(), loc)
	require.ErrorIs(t, err, pipeline.ErrTombstoned)
	require.Equal(t, 1, client.calls)
}

func TestFetchPermanentFailureNeverRetried(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{StatusCode: 410}}}
	f, sleeper := newTestFetcher(client, NewMemoryTombstoneStore())

	_, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/encerrado.pdf",
		Source: "pge-sp",
	})
	require.ErrorIs(t, err, pipeline.ErrTombstoned)
	require.Empty(t, sleeper.slept)
}

func TestFetchConnectionErrorRetries(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	client := &scriptedClient{
		responses: []Response{{}, {URL: "https://example.org/ok.html", StatusCode: http.StatusOK, Body: []byte("ok")}},
		errs:      []error{refused, nil},
	}
	f, _ := newTestFetcher(client, NewMemoryTombstoneStore())

	doc, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/ok.html",
		Source: "detran-rj",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Equal(t, 2, client.calls)
}

func TestFetchDetectsContentTypeWhenHeaderMissing(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{responses: []Response{{
		URL:        "https://example.org/pagina",
		StatusCode: 200,
		Body:       []byte("<html><body>leilão</body></html>"),
	}}}
	f, _ := newTestFetcher(client, NewMemoryTombstoneStore())

	doc, err := f.Fetch(context.Background(), pipeline.Location{
		URL:    "https://example.org/pagina",
		Source: "pge-sp",
	})
	require.NoError(t, err)
	require.Contains(t, doc.ContentType, "text/html")
}
