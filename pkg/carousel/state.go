package carousel

// Phase is the extraction session's position in its lifecycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseViewerOpening
	PhaseSlideActive
	PhaseExhausted
)

// Action tells the extractor what to do after an observation
type Action int

const (
	// ActionNone: slide already seen, keep advancing
	ActionNone Action = iota
	// ActionDownload: a new image URL was observed
	ActionDownload
	// ActionStop: the carousel is exhausted
	ActionStop
)

// staleSlack bounds how many consecutive revisits are tolerated past the
// number of distinct URLs seen, so a wrap-around carousel still terminates.
const staleSlack = 2

// Tracker decides, from successive observations, when a slide is new and
// when the carousel is exhausted. It is pure state: no browser, no I/O.
//
// The primary stop signal is an observation identical to the previous one
// (nothing moved after an advance). A failed observation counts the same
// way. Revisits of already-seen URLs are tolerated up to a budget derived
// from the number of distinct URLs, which bounds the loop even when the
// carousel wraps around and no slide-count hint exists.
type Tracker struct {
	phase          Phase
	current        Observation
	seenURLs       map[string]bool
	seenIdentities map[string]bool
	stale          int
}

// NewTracker creates a tracker in the idle phase
func NewTracker() *Tracker {
	return &Tracker{
		phase:          PhaseIdle,
		seenURLs:       make(map[string]bool),
		seenIdentities: make(map[string]bool),
	}
}

// Phase returns the current lifecycle phase
func (t *Tracker) Phase() Phase {
	return t.phase
}

// MarkViewerOpening records that the viewer is being opened. Observations
// may arrive before the viewer settles; the phase only moves forward.
func (t *Tracker) MarkViewerOpening() {
	if t.phase == PhaseIdle {
		t.phase = PhaseViewerOpening
	}
}

// SeenIdentityCount returns how many distinct slide identities were observed
func (t *Tracker) SeenIdentityCount() int {
	return len(t.seenIdentities)
}

// Step consumes one observation and returns the next action
func (t *Tracker) Step(obs Observation) Action {
	if t.phase == PhaseExhausted {
		return ActionStop
	}

	if obs.Failed {
		t.phase = PhaseExhausted
		return ActionStop
	}

	if t.phase == PhaseSlideActive && obs.Identity == t.current.Identity && obs.URL == t.current.URL {
		// nothing moved after an advance
		t.phase = PhaseExhausted
		return ActionStop
	}

	t.phase = PhaseSlideActive
	t.current = obs
	if obs.Identity != "" {
		t.seenIdentities[obs.Identity] = true
	}

	if obs.URL != "" && !t.seenURLs[obs.URL] {
		t.seenURLs[obs.URL] = true
		t.stale = 0
		return ActionDownload
	}

	t.stale++
	if t.stale > len(t.seenURLs)+staleSlack {
		t.phase = PhaseExhausted
		return ActionStop
	}

	return ActionNone
}
