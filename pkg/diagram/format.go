package diagram

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-xmlfmt/xmlfmt"
)

var (
	interTagSpace = regexp.MustCompile(`>\s+<`)
	markup        = regexp.MustCompile(`<!--[\s\S]*?-->|<!\[CDATA\[[\s\S]*?\]\]>|<[^>]+>`)
)

// Format pretty-prints doc with two-space indentation and LF line endings.
// Whitespace-only text between tags is discarded first so formatting is
// stable. Elements carrying character data, such as documentation with
// inline markup, keep their content byte for byte.
func Format(doc string) string {
	doc = strings.TrimSpace(doc)

	spans := textSpans(doc)
	bodies := make([]string, len(spans))
	var b strings.Builder
	prev := 0
	for i, sp := range spans {
		b.WriteString(interTagSpace.ReplaceAllString(doc[prev:sp.start], "><"))
		b.WriteString(placeholder(i))
		bodies[i] = doc[sp.start:sp.end]
		prev = sp.end
	}
	b.WriteString(interTagSpace.ReplaceAllString(doc[prev:], "><"))

	out := xmlfmt.FormatXML(b.String(), "", "  ")
	out = strings.ReplaceAll(out, "\r\n", "\n")

	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	out = strings.Join(kept, "\n") + "\n"

	for i, body := range bodies {
		out = strings.Replace(out, placeholder(i), body, 1)
	}
	return out
}

func placeholder(i int) string {
	return "\x00" + strconv.Itoa(i) + "\x00"
}

type span struct{ start, end int }

// textSpans returns the content ranges of the outermost elements that hold
// non-whitespace character data directly.
func textSpans(doc string) []span {
	type open struct {
		start int
		text  bool
	}
	var (
		stack []open
		spans []span
		last  int
	)
	for _, loc := range markup.FindAllStringIndex(doc, -1) {
		tok := doc[loc[0]:loc[1]]
		if len(stack) > 0 && (strings.TrimSpace(doc[last:loc[0]]) != "" || strings.HasPrefix(tok, "<![CDATA[")) {
			stack[len(stack)-1].text = true
		}
		last = loc[1]

		switch {
		case strings.HasPrefix(tok, "<!"), strings.HasPrefix(tok, "<?"), strings.HasSuffix(tok, "/>"):
		case strings.HasPrefix(tok, "</"):
			if len(stack) == 0 {
				return outermost(spans)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.text {
				spans = append(spans, span{top.start, loc[0]})
			}
		default:
			stack = append(stack, open{start: loc[1]})
		}
	}
	return outermost(spans)
}

func outermost(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	kept := spans[:0]
	end := -1
	for _, sp := range spans {
		if sp.start >= end {
			kept = append(kept, sp)
			end = sp.end
		}
	}
	return kept
}
