package markup

import (
	"strconv"
	"strings"
)

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// HTML renders the line. Text content is escaped; only the markup produced
// here reaches the frontend as tags.
func (l Line) HTML() string {
	var b strings.Builder
	switch l.Kind {
	case Heading:
		level := strconv.Itoa(l.Level)
		b.WriteString(`<h` + level + ` class="section-header">`)
		writeRuns(&b, l.Runs)
		b.WriteString(`</h` + level + `>`)
	case NumberedItem:
		b.WriteString(`<div class="numbered-item"><span class="number">`)
		b.WriteString(escaper.Replace(l.Number))
		b.WriteString(`.</span> `)
		writeRuns(&b, l.Runs)
		b.WriteString(`</div>`)
	case BulletItem:
		b.WriteString(`<div class="bullet-item"><span class="bullet">•</span> `)
		writeRuns(&b, l.Runs)
		b.WriteString(`</div>`)
	case TableRow:
		b.WriteString(`<div class="table-row">`)
		writeRuns(&b, l.Runs)
		b.WriteString(`</div>`)
	default:
		writeRuns(&b, l.Runs)
	}
	return b.String()
}

func writeRuns(b *strings.Builder, runs []Run) {
	for _, r := range runs {
		if r.Bold {
			b.WriteString("<strong>")
		}
		for _, s := range r.Spans {
			switch s.Kind {
			case SpanFenceOpen:
				b.WriteString(`<pre class="code-block ` + s.Text + `">`)
			case SpanFenceClose:
				b.WriteString(`</pre>`)
			default:
				b.WriteString(escaper.Replace(s.Text))
			}
		}
		if r.Bold {
			b.WriteString("</strong>")
		}
	}
}
