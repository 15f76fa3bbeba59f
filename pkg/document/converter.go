// Package document converts lightly marked-up analysis text into ordered,
// size-bounded content blocks ready for publishing.
package document

import (
	"regexp"
	"strings"
)

// MaxBlockTextLen is the per-block text limit enforced by the destination.
// Longer lines are split into sibling blocks of the same type.
const MaxBlockTextLen = 1800

// BlockType identifies how a block is rendered
type BlockType string

const (
	BlockParagraph    BlockType = "paragraph"
	BlockHeading1     BlockType = "heading_1"
	BlockHeading2     BlockType = "heading_2"
	BlockNumberedItem BlockType = "numbered_list_item"
	BlockBulletedItem BlockType = "bulleted_list_item"
)

// Span is a contiguous text run sharing one formatting attribute set
type Span struct {
	Text string
	Bold bool
	Link string
}

// Block is a typed, independently rendered unit of document content
type Block struct {
	Type  BlockType
	Spans []Span
}

// Text returns the concatenated text of all spans
func (b Block) Text() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	numberRe  = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	bulletRe  = regexp.MustCompile(`^[-*•]\s+(.+)$`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Convert turns free text into an ordered block sequence. It never returns
// an empty sequence: empty input yields a single empty paragraph.
func Convert(content string) []Block {
	var blocks []Block

	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			// blank lines keep their place as empty paragraphs
			blocks = append(blocks, Block{Type: BlockParagraph})
			continue
		}

		if m := headingRe.FindStringSubmatch(stripped); m != nil {
			level := len(m[1])
			blockType := BlockHeading1
			if level >= 2 {
				blockType = BlockHeading2
			}
			blocks = appendChunked(blocks, blockType, m[2])
			continue
		}

		if m := numberRe.FindStringSubmatch(stripped); m != nil {
			blocks = appendChunked(blocks, BlockNumberedItem, m[2])
			continue
		}

		if m := bulletRe.FindStringSubmatch(stripped); m != nil {
			blocks = appendChunked(blocks, BlockBulletedItem, m[1])
			continue
		}

		blocks = appendChunked(blocks, BlockParagraph, stripped)
	}

	if len(blocks) == 0 {
		blocks = append(blocks, Block{Type: BlockParagraph})
	}

	return blocks
}

// appendChunked splits text at the per-block limit and appends one block of
// the given type per chunk, preserving order.
func appendChunked(blocks []Block, blockType BlockType, text string) []Block {
	for _, chunk := range chunkText(text, MaxBlockTextLen) {
		blocks = append(blocks, Block{
			Type:  blockType,
			Spans: parseSpans(chunk),
		})
	}
	return blocks
}

// chunkText slices text into rune-counted chunks of at most limit characters
func chunkText(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		chunks = append(chunks, string(runes[:limit]))
		runes = runes[limit:]
	}
	return append(chunks, string(runes))
}

// parseSpans recognises **bold** runs and emits separate spans; unmatched
// trailing text becomes a final unstyled span.
func parseSpans(text string) []Span {
	var spans []Span
	last := 0

	for _, m := range boldRe.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			spans = append(spans, Span{Text: text[last:m[0]]})
		}
		if bold := text[m[2]:m[3]]; bold != "" {
			spans = append(spans, Span{Text: bold, Bold: true})
		}
		last = m[1]
	}

	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}

	if len(spans) == 0 {
		spans = []Span{{Text: ""}}
	}

	return spans
}
