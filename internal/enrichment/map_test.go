package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_FetchesOnMissAndCachesHit(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	m, err := NewMap[int64, string]("names", filepath.Join(dir, "names.json"), func(_ context.Context, id int64) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "fetched", nil
	})
	require.NoError(t, err)

	v, err := m.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "fetched", v)

	_, err = m.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "expected the fetch to run exactly once")
}

func TestMap_PersistsToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.json")
	m, err := NewMap[int64, string]("names", path, func(_ context.Context, id int64) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	_, err = m.Get(context.Background(), 1)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err, "expected the backing file to exist")

	var data map[string]string
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "v", data["1"])
}

func TestMap_LoadsExistingFileOnConstruction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"7":"seeded"}`), 0o644))

	var calls int32
	m, err := NewMap[int64, string]("names", path, func(_ context.Context, id int64) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "should not be called", nil
	})
	require.NoError(t, err)

	v, err := m.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "seeded", v)
	assert.EqualValues(t, 0, calls, "expected no fetch for an already-seeded key")
}

func TestMap_FetchErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	wantErr := errors.New("upstream unavailable")
	m, err := NewMap[int64, string]("names", filepath.Join(dir, "names.json"), func(_ context.Context, id int64) (string, error) {
		return "", wantErr
	})
	require.NoError(t, err)

	_, err = m.Get(context.Background(), 1)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, m.Len(), "a failed fetch must not be cached")
}
