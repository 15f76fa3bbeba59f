package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Manager handles the session image directory. The directory is shared
// across sessions and cleared at the start of each one, so at most one
// extraction may use it at a time.
type Manager struct {
	dir   string
	saved []string
	mu    sync.Mutex
}

// NewManager creates a manager for the given directory, creating it if needed
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Clear removes every file from the image directory and resets the saved
// list. Called at the start of each extraction session.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read image directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove stale image: %w", err)
		}
	}

	m.saved = nil
	return nil
}

// SaveImage writes image data under a sequence-numbered filename and returns
// the local path. The write goes through a temp file and an atomic rename so
// a failed download never leaves a partial asset behind.
func (m *Manager) SaveImage(sequence int, ext string, data []byte) (string, error) {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	filename := filepath.Join(m.dir, strconv.Itoa(sequence)+ext)
	tempFile := filename + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved = append(m.saved, filename)
	m.mu.Unlock()

	return filename, nil
}

// List returns the paths of the sequence-numbered images in the directory,
// ordered by sequence. Sidecar files like the session manifest are skipped.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(m.dir, entry.Name())
		if sequenceOf(full) == noSequence {
			continue
		}
		paths = append(paths, full)
	}

	sort.Slice(paths, func(i, j int) bool {
		return sequenceOf(paths[i]) < sequenceOf(paths[j])
	})

	return paths, nil
}

// SavedCount returns the number of images saved in this session
func (m *Manager) SavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// Dir returns the image directory path
func (m *Manager) Dir() string {
	return m.dir
}

const noSequence = 1 << 30

func sequenceOf(path string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(base)
	if err != nil {
		return noSequence
	}
	return n
}
