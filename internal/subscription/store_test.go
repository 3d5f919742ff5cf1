package subscription

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"killfeed/internal/filter"
)

func sampleSub(id, channel string) Subscription {
	return Subscription{
		ID:          id,
		Description: "test rule",
		Root:        filter.Condition(filter.Filter{Simple: &filter.SimpleFilter{Kind: filter.KindIsSolo, Bool: true}}),
		Action:      Action{ChannelID: channel},
	}
}

func TestStore_PutAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("tenant-a", []Subscription{sampleSub("r1", "chan-1")}))

	snap := store.Snapshot()
	assert.Len(t, snap["tenant-a"], 1)

	_, err = os.Stat(filepath.Join(dir, "tenant-a.json"))
	assert.NoError(t, err, "expected tenant-a.json to be persisted")
}

func TestStore_ReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("tenant-a", []Subscription{sampleSub("r1", "chan-1")}))

	reloaded, err := NewStore(dir)
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	require.Len(t, snap["tenant-a"], 1, "expected the persisted subscription to survive a reload")
	assert.Equal(t, "r1", snap["tenant-a"][0].ID)
}

func TestStore_Remove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("tenant-a", []Subscription{sampleSub("r1", "chan-1")}))

	require.NoError(t, store.Remove("tenant-a"))

	snap := store.Snapshot()
	_, ok := snap["tenant-a"]
	assert.False(t, ok, "expected tenant-a to be gone from the snapshot after Remove")

	_, err = os.Stat(filepath.Join(dir, "tenant-a.json"))
	assert.Error(t, err, "expected tenant-a.json to be deleted")
}

func TestStore_RemoveByChannel_OnlyAffectsMatchingSubscriptions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("tenant-a", []Subscription{
		sampleSub("r1", "chan-1"),
		sampleSub("r2", "chan-2"),
	}))

	require.NoError(t, store.RemoveByChannel("chan-1"))

	subs := store.Snapshot()["tenant-a"]
	require.Len(t, subs, 1)
	assert.Equal(t, "r2", subs[0].ID)
}

func TestStore_PutRejectsInvalidSubscription(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	missingChannel := sampleSub("r1", "")
	err = store.Put("tenant-a", []Subscription{missingChannel})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "tenant-a.json"))
	assert.Error(t, statErr, "expected nothing persisted for a rejected subscription")
}

func TestSubscription_ValidatePingAction(t *testing.T) {
	sub := sampleSub("r1", "chan-1")
	sub.Action.PingPolicy = &PingPolicy{Action: "Sometimes"}
	assert.Error(t, sub.Validate())

	sub.Action.PingPolicy = &PingPolicy{Action: PingHere}
	assert.NoError(t, sub.Validate())
}

func TestStore_RemoveByChannel_NoMatchIsNoop(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("tenant-a", []Subscription{sampleSub("r1", "chan-1")}))

	require.NoError(t, store.RemoveByChannel("chan-nonexistent"))

	assert.Len(t, store.Snapshot()["tenant-a"], 1, "expected the unrelated subscription to survive untouched")
}
