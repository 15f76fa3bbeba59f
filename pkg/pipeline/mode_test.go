package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		mode     Mode
		prefixed bool
	}{
		{"morning", "1 https://voom.line.me/post/1", ModeMorning, true},
		{"after hours", "2 https://voom.line.me/post/1", ModeAfterHours, true},
		{"leading whitespace", "  1 https://voom.line.me/post/1", ModeMorning, true},
		// a bare link defaults to the morning report
		{"no digit", "https://voom.line.me/post/1", ModeMorning, false},
		{"unknown digit", "3 https://voom.line.me/post/1", ModeMorning, false},
		{"digit inside a word", "10 https://voom.line.me/post/1", ModeMorning, false},
		{"empty", "", ModeMorning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, prefixed := DetectMode(tt.text)
			assert.Equal(t, tt.prefixed, prefixed)
			assert.Equal(t, tt.mode, mode)
		})
	}
}

func TestExtractURL(t *testing.T) {
	assert.Equal(t, "https://voom.line.me/post/1",
		ExtractURL("1 https://voom.line.me/post/1"))
	assert.Equal(t, "https://voom.line.me/post/1",
		ExtractURL("2 看這篇 https://voom.line.me/post/1。謝謝"))
	assert.Equal(t, "http://voom.line.me/x",
		ExtractURL("1 http://voom.line.me/x!"))
	assert.Equal(t, "", ExtractURL("1 no link here"))
}

func TestAllowedHost(t *testing.T) {
	assert.True(t, AllowedHost("https://voom.line.me/post/1"))
	assert.True(t, AllowedHost("https://linevoom.line.me/post/1"))
	assert.True(t, AllowedHost("https://VOOM.LINE.ME/post/1"))
	assert.False(t, AllowedHost("https://evil.example/post/1"))
	assert.False(t, AllowedHost("https://voom.line.me.evil.example/post/1"))
	assert.False(t, AllowedHost("::bad"))
}

func TestModePromptAndTitle(t *testing.T) {
	assert.Contains(t, ModeMorning.Prompt(), "晨報")
	assert.Contains(t, ModeAfterHours.Prompt(), "盤後")
	assert.Equal(t, "晨報整理", ModeMorning.Title())
	assert.Equal(t, "盤後整理", ModeAfterHours.Title())
}
