package xplorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogStore(t *testing.T) *LogStore {
	t.Helper()
	ls, err := newLogStoreForSession(t.TempDir(), "test-session")
	require.NoError(t, err)
	t.Cleanup(func() { ls.Close() })
	return ls
}

func TestLogStoreLogAndFetch(t *testing.T) {
	ls := newTestLogStore(t)

	_, err := ls.Log("first", "info")
	require.NoError(t, err)
	_, err = ls.Log("second", "warn")
	require.NoError(t, err)

	entries, err := ls.Fetch(NewFetchOptions())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "second", entries[0].Text, "newest first by default")
	assert.Equal(t, "first", entries[1].Text)
	assert.Less(t, entries[1].ID, entries[0].ID, "ids increase monotonically")
}

func TestLogStoreFetchFiltersByTypeAndPattern(t *testing.T) {
	ls := newTestLogStore(t)

	ls.Log("connection established", "network")
	ls.Log("connection dropped", "network")
	ls.Log("view rendered", "ui")

	opts := NewFetchOptions()
	opts.Type = "network"
	entries, err := ls.Fetch(opts)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	opts = NewFetchOptions()
	opts.TextPattern = "%dropped%"
	entries, err = ls.Fetch(opts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "connection dropped", entries[0].Text)

	opts = NewFetchOptions()
	opts.Type = "network"
	opts.TextPattern = "%established%"
	entries, err = ls.Fetch(opts)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "connection established", entries[0].Text)
}

func TestLogStoreCountAndClearPreservesIDSequence(t *testing.T) {
	ls := newTestLogStore(t)

	ls.Log("one", "")
	second, err := ls.Log("two", "")
	require.NoError(t, err)

	count, err := ls.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, ls.Clear())

	count, err = ls.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	third, err := ls.Log("three", "")
	require.NoError(t, err)
	assert.Greater(t, third.ID, second.ID, "ids keep increasing across a clear")
}

func TestLogStoreLastEntryIsDuplicate(t *testing.T) {
	ls := newTestLogStore(t)

	assert.False(t, ls.LastEntryIsDuplicate("hello", "info"))

	ls.Log("hello", "info")
	assert.True(t, ls.LastEntryIsDuplicate("hello", "info"))
	assert.False(t, ls.LastEntryIsDuplicate("goodbye", "info"))
}

func TestLogStoreFetchRespectsLimitAndOffset(t *testing.T) {
	ls := newTestLogStore(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := ls.Log(text, "")
		require.NoError(t, err)
	}

	opts := NewFetchOptions()
	opts.NewestFirst = false
	opts.Limit = 2
	opts.Offset = 1

	entries, err := ls.Fetch(opts)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Text)
	assert.Equal(t, "c", entries[1].Text)
}
