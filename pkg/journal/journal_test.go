package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "state", "history.json"))
	require.NoError(t, err)
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.Append(Entry{
		Mode:        "morning",
		PostURL:     "https://voom.line.me/post/1",
		PageID:      "p1",
		ImageCount:  3,
		CompletedAt: time.Now(),
	}))
	require.NoError(t, j.Append(Entry{
		Mode:        "after_hours",
		PostURL:     "https://voom.line.me/post/2",
		CompletedAt: time.Now(),
	}))

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://voom.line.me/post/1", entries[0].PostURL)
	assert.Equal(t, "https://voom.line.me/post/2", entries[1].PostURL)

	one, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "after_hours", one[0].Mode)
}

func TestSeenWithinWindow(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.Append(Entry{
		PostURL:     "https://voom.line.me/post/old",
		CompletedAt: time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, j.Append(Entry{
		PostURL:     "https://voom.line.me/post/new",
		CompletedAt: time.Now(),
	}))

	seen, err := j.Seen("https://voom.line.me/post/new", time.Hour)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = j.Seen("https://voom.line.me/post/old", time.Hour)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = j.Seen("https://voom.line.me/post/never", time.Hour)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCorruptJournalStartsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	j, err := New(path)
	require.NoError(t, err)

	entries, err := j.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, j.Append(Entry{PostURL: "u", CompletedAt: time.Now()}))
	entries, err = j.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryIsBounded(t *testing.T) {
	j := newTestJournal(t)

	for i := 0; i < maxEntries+10; i++ {
		require.NoError(t, j.Append(Entry{PostURL: "u", CompletedAt: time.Now()}))
	}

	entries, err := j.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, maxEntries)
}
