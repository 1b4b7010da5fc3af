package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleStoreSnapshotRoundTrip(t *testing.T) {
	store, err := NewPebbleStore(filepath.Join(t.TempDir(), "book"))
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.LoadSnapshot("BTCEUR")
	require.NoError(t, err)
	assert.False(t, ok, "empty store has no snapshot")

	payload := []byte(`{"pair":"BTCEUR"}`)
	require.NoError(t, store.SaveSnapshot("BTCEUR", payload))

	got, ok, err := store.LoadSnapshot("BTCEUR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	// Pairs are independent keys.
	_, ok, err = store.LoadSnapshot("ETHUSD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPebbleStoreSnapshotOverwrite(t *testing.T) {
	store, err := NewPebbleStore(filepath.Join(t.TempDir(), "book"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveSnapshot("BTCEUR", []byte("v1")))
	require.NoError(t, store.SaveSnapshot("BTCEUR", []byte("v2")))

	got, ok, err := store.LoadSnapshot("BTCEUR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}
