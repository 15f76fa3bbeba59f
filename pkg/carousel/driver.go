package carousel

import "context"

// Observation is one reading of the viewer's active slide
type Observation struct {
	// Identity is the carousel slide index when the page exposes one,
	// empty otherwise
	Identity string
	// URL is the active slide's image URL, empty when none is visible
	URL string
	// Failed marks an automation error during the reading; it counts as
	// "no progress" for that iteration rather than aborting the session
	Failed bool
}

// Driver is the browser automation surface the extractor runs against.
// Implementations drive one live page; the extractor never touches the
// browser engine directly, which keeps the traversal logic testable.
type Driver interface {
	// Open navigates to the post URL and waits for image content
	Open(ctx context.Context, url string) error
	// OpenViewer opens the full-screen media viewer
	OpenViewer(ctx context.Context) error
	// SlideHint returns the deduplicated slide indices the carousel
	// exposes, if any. The hint only corroborates termination.
	SlideHint(ctx context.Context) []string
	// Observe reads the active slide
	Observe(ctx context.Context) (Observation, error)
	// Advance re-focuses the viewer and issues a next-slide action
	Advance(ctx context.Context) error
	// Close releases the browser session
	Close() error
}
