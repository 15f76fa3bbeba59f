// Package journal keeps a local history of completed digest runs. The
// history answers "did we already digest this post" after a webhook
// redelivery and gives operators a record of what was published where.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry records one completed run
type Entry struct {
	Mode        string    `json:"mode"`
	PostURL     string    `json:"post_url"`
	PageID      string    `json:"page_id,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	ImageCount  int       `json:"image_count"`
	CompletedAt time.Time `json:"completed_at"`
}

type history struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

const (
	currentVersion = 1
	// maxEntries bounds the file; old runs have no operational value
	maxEntries = 200
)

// Journal is a file-backed run history. Writes go through a temp file and
// an atomic rename, matching how downloaded images are stored.
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal at the given path, creating parent directories
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{path: path}, nil
}

// DefaultPath returns the journal location under the user data directory
func DefaultPath() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, ".local", "share", "voomreport", "history.json")
}

// Append records one entry, trimming the history to its size bound
func (j *Journal) Append(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	h, err := j.load()
	if err != nil {
		return err
	}

	h.Entries = append(h.Entries, entry)
	if len(h.Entries) > maxEntries {
		h.Entries = h.Entries[len(h.Entries)-maxEntries:]
	}

	return j.save(h)
}

// Recent returns up to n entries, newest last
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	h, err := j.load()
	if err != nil {
		return nil, err
	}

	if n > 0 && len(h.Entries) > n {
		return h.Entries[len(h.Entries)-n:], nil
	}
	return h.Entries, nil
}

// Seen reports whether the post was digested within the given window
func (j *Journal) Seen(postURL string, within time.Duration) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	h, err := j.load()
	if err != nil {
		return false, err
	}

	cutoff := time.Now().Add(-within)
	for i := len(h.Entries) - 1; i >= 0; i-- {
		e := h.Entries[i]
		if e.CompletedAt.Before(cutoff) {
			break
		}
		if e.PostURL == postURL {
			return true, nil
		}
	}
	return false, nil
}

func (j *Journal) load() (*history, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return &history{Version: currentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var h history
	if err := json.Unmarshal(data, &h); err != nil {
		// a corrupt journal is history we can live without
		return &history{Version: currentVersion}, nil
	}
	return &h, nil
}

func (j *Journal) save(h *history) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	tempFile := j.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, j.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace journal: %w", err)
	}
	return nil
}
