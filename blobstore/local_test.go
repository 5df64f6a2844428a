package blobstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	data := []byte("0 1\n1 2\n2 3\n3 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "edges.txt"), data, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "parts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "parts", "edges-2.txt"), nil, 0o600))

	store := NewLocalStore(tmpDir)
	ctx := t.Context()

	blob, err := store.Open(ctx, "edges.txt")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 3)
	n, err := blob.ReadAt(ctx, buf, 4)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "1 2", string(buf))

	rr, err := blob.ReadRange(ctx, 8, 100)
	require.NoError(t, err)
	tail, err := io.ReadAll(rr)
	require.NoError(t, err)
	require.NoError(t, rr.Close())
	assert.Equal(t, "2 3\n3 0\n", string(tail))

	m, ok := blob.(Mappable)
	require.True(t, ok)
	mapped, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, mapped)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"edges.txt", "parts/edges-2.txt"}, names)

	names, err = store.List(ctx, "parts/")
	require.NoError(t, err)
	assert.Equal(t, []string{"parts/edges-2.txt"}, names)

	empty, err := store.Open(ctx, "parts/edges-2.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Size())
	require.NoError(t, empty.Close())
}

func TestLocalStore_NotFound(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(t.Context(), "missing.txt")
	require.ErrorIs(t, err, ErrNotFound)
}
