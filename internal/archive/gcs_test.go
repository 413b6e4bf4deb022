package archive

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
)

func TestNewGCSStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGCSStore(nil, "arremate-raw")
	require.Error(t, err)

	_, err = NewGCSStore(&storage.Client{}, "")
	require.Error(t, err)

	store, err := NewGCSStore(&storage.Client{}, "arremate-raw")
	require.NoError(t, err)
	require.NotNil(t, store)
}
