// Package markup turns single lines of model markdown into the HTML fragments
// the chat frontend renders.
//
// Each line is tokenized once into a block kind (heading, list item, table
// row, plain) holding inline runs (plain or bold) of spans (text or code
// fence markers), and rendered once. Lines never share state.
package markup

import (
	"strings"
	"unicode"
)

type Kind int

const (
	Plain Kind = iota
	Heading
	NumberedItem
	BulletItem
	TableRow
)

func (k Kind) String() string {
	switch k {
	case Heading:
		return "heading"
	case NumberedItem:
		return "numbered-item"
	case BulletItem:
		return "bullet-item"
	case TableRow:
		return "table-row"
	default:
		return "plain"
	}
}

type SpanKind int

const (
	SpanText SpanKind = iota
	SpanFenceOpen
	SpanFenceClose
)

// Span is a piece of inline content. For SpanFenceOpen, Text is the language.
type Span struct {
	Kind SpanKind
	Text string
}

// Run is a sequence of spans sharing one emphasis.
type Run struct {
	Bold  bool
	Spans []Span
}

// Line is the tokenized form of one output line.
type Line struct {
	Kind   Kind
	Level  int    // heading level, 1..6
	Number string // numbered item label without the trailing dot
	Runs   []Run
}

const (
	boldDelim   = "**"
	fenceMarker = "```"
	maxHeading  = 6
)

var fenceLangs = []string{"bash", "python"}

// Render is Parse followed by HTML.
func Render(line string) string {
	return Parse(line).HTML()
}

// Parse tokenizes one line.
func Parse(line string) Line {
	switch {
	case strings.HasPrefix(line, "#"):
		level := len(line) - len(strings.TrimLeft(line, "#"))
		text := strings.TrimSpace(line[level:])
		if level > maxHeading {
			level = maxHeading
		}
		return Line{Kind: Heading, Level: level, Runs: parseInline(text)}

	case isNumbered(line):
		number, text, _ := strings.Cut(line, ". ")
		return Line{Kind: NumberedItem, Number: number, Runs: parseInline(text)}

	case strings.HasPrefix(line, "- "):
		return Line{Kind: BulletItem, Runs: parseInline(line[2:])}

	case strings.Contains(line, "|") && !strings.HasPrefix(line, "|"):
		return Line{Kind: TableRow, Runs: parseInline(line)}
	}
	return Line{Kind: Plain, Runs: parseInline(line)}
}

func isNumbered(line string) bool {
	if line == "" || !unicode.IsDigit(rune(line[0])) {
		return false
	}
	head := line
	if len(head) > 3 {
		head = head[:3]
	}
	return strings.Contains(head, ". ")
}

// parseInline splits on the bold delimiter; odd segments are bold.
func parseInline(text string) []Run {
	if !strings.Contains(text, boldDelim) {
		return []Run{{Spans: parseFences(text)}}
	}
	parts := strings.Split(text, boldDelim)
	runs := make([]Run, 0, len(parts))
	for i, part := range parts {
		runs = append(runs, Run{Bold: i%2 == 1, Spans: parseFences(part)})
	}
	return runs
}

func parseFences(text string) []Span {
	var spans []Span
	for {
		idx := strings.Index(text, fenceMarker)
		if idx < 0 {
			break
		}
		if idx > 0 {
			spans = append(spans, Span{Kind: SpanText, Text: text[:idx]})
		}
		rest := text[idx+len(fenceMarker):]
		lang := fenceLang(rest)
		if lang != "" {
			spans = append(spans, Span{Kind: SpanFenceOpen, Text: lang})
			rest = rest[len(lang):]
		} else {
			spans = append(spans, Span{Kind: SpanFenceClose})
		}
		text = rest
	}
	if text != "" || len(spans) == 0 {
		spans = append(spans, Span{Kind: SpanText, Text: text})
	}
	return spans
}

func fenceLang(rest string) string {
	for _, lang := range fenceLangs {
		if strings.HasPrefix(rest, lang) {
			return lang
		}
	}
	return ""
}
