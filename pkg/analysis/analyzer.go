// Package analysis sends ordered carousel images with a prompt to a vision
// model and returns the resulting text. The model is treated as an opaque
// prompt-to-text capability.
package analysis

import "context"

// Image is one ordered input image for analysis
type Image struct {
	Path string
	MIME string
}

// Analyzer turns a prompt and ordered images into result text
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, images []Image) (string, error)
}
