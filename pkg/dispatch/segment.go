package dispatch

import "strings"

// sentence-terminal runes; a newline also closes a unit
const terminals = "。！？!?"

// splitUnits splits text into sentence-like units. The boundary character
// stays with the preceding unit so concatenation reproduces the input.
func splitUnits(text string) []string {
	var units []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '\n' || strings.ContainsRune(terminals, r) {
			units = append(units, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		units = append(units, current.String())
	}

	return units
}

// Segment packs sentence-like units greedily into segments of at most limit
// characters. A single unit longer than the limit is hard-sliced. Segments
// concatenate, in order, back to the original text.
func Segment(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return nil
	}

	var segments []string
	var current []rune

	for _, unit := range splitUnits(text) {
		add := []rune(unit)

		if len(current)+len(add) > limit {
			if len(current) > 0 {
				segments = append(segments, string(current))
				current = nil
			}
			for len(add) > limit {
				segments = append(segments, string(add[:limit]))
				add = add[limit:]
			}
		}
		current = append(current, add...)
	}

	if len(current) > 0 {
		segments = append(segments, string(current))
	}

	return segments
}
