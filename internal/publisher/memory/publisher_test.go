package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "run.completed", map[string]string{"source": "detran-rj"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "run.completed", map[string]string{"source": "pge-sp"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "run.completed", msgs[0].Topic)
	require.JSONEq(t, `{"source":"detran-rj"}`, string(msgs[0].Data))

	msgs[0].Topic = "modified"
	require.Equal(t, "run.completed", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "run.completed", make(chan int))
	require.Error(t, err)
	require.Empty(t, pub.Messages())
}
