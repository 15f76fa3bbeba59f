// Package manifest records what one extraction session downloaded. The
// manifest sits next to the images and lets tools and later runs see the
// source post, the slide order and each file without re-opening a browser.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileName = "manifest.json"

// Image describes one downloaded carousel image
type Image struct {
	Sequence  int    `json:"sequence"`
	SourceURL string `json:"source_url"`
	File      string `json:"file"`
	MIME      string `json:"mime"`
	Bytes     int64  `json:"bytes"`
}

// Manifest describes one completed extraction session
type Manifest struct {
	PostURL   string    `json:"post_url"`
	FetchedAt time.Time `json:"fetched_at"`
	Images    []Image   `json:"images"`
}

// Write stores the manifest in the image directory, atomically
func Write(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	target := filepath.Join(dir, fileName)
	tempFile := target + ".tmp"

	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

// Load reads the manifest from an image directory
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
