package collyfetcher

import (
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// minDetectConfidence is the chardet confidence below which the declared or
// sniffed encoding wins.
const minDetectConfidence = 50

// decodeBody converts body to UTF-8. Valid UTF-8 passes through; otherwise the
// encoding is detected from the bytes themselves, falling back to the
// Content-Type header and <meta> prescan.
func decodeBody(body []byte, contentType string) (string, string) {
	if utf8.Valid(body) {
		return string(body), "utf-8"
	}
	if res, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && res.Confidence >= minDetectConfidence {
		if enc, name := charset.Lookup(res.Charset); enc != nil {
			if out, _, err := transform.Bytes(enc.NewDecoder(), body); err == nil {
				return string(out), name
			}
		}
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body), ""
	}
	return string(out), name
}
