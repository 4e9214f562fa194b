package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

const indentUnit = " "

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// textEscaper escapes text content. Quotes only need escaping inside
// attribute values and are left as written.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var rawTextElements = map[string]bool{
	"script": true, "style": true, "xmp": true, "iframe": true,
	"noembed": true, "noframes": true, "plaintext": true,
	"textarea": true, "title": true,
}

// Prettify renders the tree rooted at n with one node per line and one space
// of indent per depth. Whitespace-only text is dropped and remaining text is
// trimmed line by line, so only real structural changes affect the output.
func Prettify(n *html.Node) string {
	var b strings.Builder
	p := printer{out: &b}
	if n.Type == html.DocumentNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.node(c, 0, false)
		}
	} else {
		p.node(n, 0, false)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type printer struct {
	out *strings.Builder
}

func (p printer) line(depth int, s string) {
	p.out.WriteString(strings.Repeat(indentUnit, depth))
	p.out.WriteString(s)
	p.out.WriteByte('\n')
}

func (p printer) node(n *html.Node, depth int, raw bool) {
	switch n.Type {
	case html.DoctypeNode:
		p.line(depth, "<!DOCTYPE "+n.Data+">")
	case html.CommentNode:
		p.line(depth, "<!--"+n.Data+"-->")
	case html.TextNode:
		p.text(n.Data, depth, raw)
	case html.ElementNode:
		p.element(n, depth)
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			p.node(c, depth, raw)
		}
	}
}

func (p printer) element(n *html.Node, depth int) {
	p.line(depth, openTag(n))
	if voidElements[n.Data] && n.FirstChild == nil {
		return
	}
	raw := rawTextElements[n.Data]
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.node(c, depth+1, raw)
	}
	p.line(depth, "</"+n.Data+">")
}

func (p printer) text(data string, depth int, raw bool) {
	for _, l := range strings.Split(data, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !raw {
			l = textEscaper.Replace(l)
		}
		p.line(depth, l)
	}
}

func openTag(n *html.Node) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	return b.String()
}
