package blob

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewLocalStore(fs, "/data")
	require.NoError(t, err)
	return store, fs
}

func TestNewLocalStore_Validation(t *testing.T) {
	_, err := NewLocalStore(nil, "/data")
	assert.Error(t, err)

	_, err = NewLocalStore(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestLocalStore_PutGet(t *testing.T) {
	store, fs := newLocal(t)
	ctx := context.Background()

	location, err := store.Put(ctx, "reports/a.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "file:///data/reports/a.json", location)

	exists, err := afero.Exists(fs, "/data/reports/a.json")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.Get(ctx, "reports/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, _ := newLocal(t)

	_, err := store.Get(context.Background(), "reports/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_List(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	for _, key := range []string{"reports/b.json", "reports/a.json", "other/c.json"} {
		_, err := store.Put(ctx, key, []byte("{}"))
		require.NoError(t, err)
	}

	keys, err := store.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.json", "reports/b.json"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStore_Delete(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "reports/a.json", []byte("{}"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "reports/a.json"))

	_, err = store.Get(ctx, "reports/a.json")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete(ctx, "reports/a.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, _ := newLocal(t)
	ctx := context.Background()

	tests := []string{"", "../escape.json", "/abs.json", "reports/../../x.json"}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := store.Put(ctx, key, []byte("{}"))
			assert.Error(t, err)
		})
	}
}
