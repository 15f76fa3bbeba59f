package pipeline

import (
	"net/url"
	"regexp"
	"strings"

	"voomreport/pkg/analysis"
)

// Mode selects the report flavor a post is digested into
type Mode string

const (
	ModeMorning    Mode = "morning"
	ModeAfterHours Mode = "after_hours"
)

// modeRe matches a leading mode digit followed by the rest of the command
var modeRe = regexp.MustCompile(`^\s*([12])\b`)

// urlRe matches the first http(s) token in a command
var urlRe = regexp.MustCompile(`https?://\S+`)

// allowedHosts are the post hosts the pipeline will open
var allowedHosts = map[string]bool{
	"voom.line.me":     true,
	"linevoom.line.me": true,
}

// DetectMode reads the leading command digit: 1 for the morning report,
// 2 for the after-hours report. Without a digit the morning report is the
// default; the second return reports whether the digit was present.
func DetectMode(text string) (Mode, bool) {
	m := modeRe.FindStringSubmatch(text)
	if m == nil {
		return ModeMorning, false
	}
	if m[1] == "1" {
		return ModeMorning, true
	}
	return ModeAfterHours, true
}

// ExtractURL returns the first URL in the command, with trailing
// punctuation stripped, or empty when none is present.
func ExtractURL(text string) string {
	raw := urlRe.FindString(text)
	if raw == "" {
		return ""
	}
	return strings.TrimRight(raw, ".,;:!?)]}>\"'")
}

// AllowedHost reports whether the URL points at a supported post host
func AllowedHost(postURL string) bool {
	u, err := url.Parse(postURL)
	if err != nil {
		return false
	}
	return allowedHosts[strings.ToLower(u.Hostname())]
}

// Prompt returns the analysis prompt template for the mode
func (m Mode) Prompt() string {
	if m == ModeMorning {
		return analysis.MorningPrompt
	}
	return analysis.AfterHoursPrompt
}

// Title returns the document title prefix for the mode
func (m Mode) Title() string {
	if m == ModeMorning {
		return "晨報整理"
	}
	return "盤後整理"
}
