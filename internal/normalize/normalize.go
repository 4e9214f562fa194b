// Package normalize turns raw page markup into the two comparable projections
// of a snapshot: a canonical pretty-printed tree and the concatenated contents
// of every inline style block.
package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/pagewatch/internal/monitor"
)

// Normalizer implements monitor.Normalizer.
type Normalizer struct{}

// New returns a Normalizer.
func New() Normalizer {
	return Normalizer{}
}

// Normalize parses raw leniently and returns its snapshot projections.
func (Normalizer) Normalize(raw string) monitor.Snapshot {
	return Normalize(raw)
}

// Normalize parses raw leniently and returns its snapshot projections.
// Malformed markup is recovered the way browsers do; it never fails.
func Normalize(raw string) monitor.Snapshot {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors, which a strings.Reader
		// never produces; keep the raw text comparable anyway.
		return monitor.Snapshot{HTML: raw}
	}
	return monitor.Snapshot{
		HTML: Prettify(root),
		CSS:  StyleText(goquery.NewDocumentFromNode(root)),
	}
}

// StyleText joins the text of every <style> element in document order.
func StyleText(doc *goquery.Document) string {
	blocks := []string{}
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return strings.Join(blocks, "\n")
}

// StyleBlockCount reports how many <style> elements doc contains.
func StyleBlockCount(doc *goquery.Document) int {
	return doc.Find("style").Length()
}
