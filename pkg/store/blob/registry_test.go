package blob

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	factory := func(context.Context, Settings) (Store, error) { return nil, nil }

	require.NoError(t, r.Register("memory", factory))
	assert.Error(t, r.Register("memory", factory), "duplicate backend")
	assert.Error(t, r.Register("", factory), "empty name")
	assert.Error(t, r.Register("nil", nil), "nil factory")
	assert.Equal(t, []string{"memory"}, r.ListBackends())
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create(context.Background(), Settings{Backend: "ftp"})
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(afero.NewMemMapFs())
	assert.Equal(t, []string{BackendAzure, BackendLocal, BackendS3}, r.ListBackends())

	// An empty backend falls back to local storage.
	store, err := r.Create(context.Background(), Settings{Root: "/reports"})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "a.json", []byte("{}"))
	require.NoError(t, err)

	_, err = r.Create(context.Background(), Settings{Backend: BackendAzure})
	assert.Error(t, err, "azure needs a connection string or account url")
}
