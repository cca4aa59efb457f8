package chat

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements have their whole content removed, not just their tags.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Math:     true,
}

// SanitizeBody strips markup from a chat body. Text is copied as written, so
// entities stay encoded and escaped markup never turns into live tags.
// Applying it twice gives the same result as applying it once.
func SanitizeBody(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF, or a truncated tag at the end of input
			return b.String()
		case html.TextToken:
			if depth == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if droppedElements[atom.Lookup(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if droppedElements[atom.Lookup(name)] && depth > 0 {
				depth--
			}
		}
	}
}
