package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Value int `json:"value"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteJSONAtomic(path, sample{Value: 1}))

	var out sample
	require.NoError(t, ReadJSON(path, &out))
	require.Equal(t, 1, out.Value)
}

func TestWriteJSONAtomicPromotesBak(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteJSONAtomic(path, sample{Value: 1}))
	require.NoError(t, WriteJSONAtomic(path, sample{Value: 2}))

	require.True(t, Exists(path+".bak"))

	var bak sample
	require.NoError(t, ReadJSON(path+".bak", &bak))
	require.Equal(t, 1, bak.Value)

	var cur sample
	require.NoError(t, ReadJSON(path, &cur))
	require.Equal(t, 2, cur.Value)
}

func TestReadJSONFallsBackToBak(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteJSONAtomic(path, sample{Value: 1}))
	require.NoError(t, WriteJSONAtomic(path, sample{Value: 2}))

	// Corrupt the live file; .bak should still hold value=1.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out sample
	require.NoError(t, ReadJSON(path, &out))
	require.Equal(t, 1, out.Value)
}

func TestReadJSONNoFileNoBak(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")
	var out sample
	require.Error(t, ReadJSON(path, &out))
}
