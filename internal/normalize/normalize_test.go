package normalize

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrettyPrintsTree(t *testing.T) {
	t.Parallel()

	raw := `<!DOCTYPE html><html><head><style>body{color:red}</style></head>` +
		`<body><p class="lead">Hi &amp; bye</p><br><!-- note --></body></html>`

	got := Normalize(raw)

	want := strings.Join([]string{
		"<!DOCTYPE html>",
		"<html>",
		" <head>",
		"  <style>",
		"   body{color:red}",
		"  </style>",
		" </head>",
		" <body>",
		`  <p class="lead">`,
		"   Hi &amp; bye",
		"  </p>",
		"  <br>",
		"  <!-- note -->",
		" </body>",
		"</html>",
	}, "\n")
	require.Equal(t, want, got.HTML)
	require.Equal(t, "body{color:red}", got.CSS)
}

func TestNormalizeEscapesTextLikeMarkup(t *testing.T) {
	t.Parallel()

	raw := `<html><body><p title="a &quot;b&quot; &amp; 'c'">` +
		`It's "quoted" &amp; 1 &lt; 2 &gt; 0</p></body></html>`

	got := Normalize(raw)

	require.Contains(t, got.HTML, "\n   It's \"quoted\" &amp; 1 &lt; 2 &gt; 0\n")
	require.Contains(t, got.HTML, `<p title="a &#34;b&#34; &amp; &#39;c&#39;">`)
	require.NotContains(t, got.HTML, "It&#39;s")
}

func TestNormalizeIgnoresFormattingWhitespace(t *testing.T) {
	t.Parallel()

	compact := `<html><body><div><p>Hello</p></div></body></html>`
	spaced := "<html>\n  <body>\n\n    <div>\n      <p>   Hello   </p>\n    </div>\n  </body>\n</html>\n"

	require.Equal(t, Normalize(compact), Normalize(spaced))
}

func TestNormalizeToleratesMalformedMarkup(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"<div><p>unclosed",
		"</span></div>stray closers",
		"<<<>>>",
		`<a href="x>broken attr</a>`,
		"<style>unterminated",
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			snap := Normalize(in)
			require.Contains(t, snap.HTML, "<html>")
		}, "input %q", in)
	}

	snap := Normalize("<div><p>unclosed")
	require.Contains(t, snap.HTML, "<div>")
	require.Contains(t, snap.HTML, "unclosed")
}

func TestNormalizeJoinsStyleBlocksInOrder(t *testing.T) {
	t.Parallel()

	raw := `<html><head><style>h1{margin:0}</style></head>` +
		`<body><style></style><style>
p { color: blue; }
</style></body></html>`

	got := Normalize(raw)
	require.Equal(t, "h1{margin:0}\n\n\np { color: blue; }\n", got.CSS)
}

func TestNormalizeWithoutStyleBlocks(t *testing.T) {
	t.Parallel()

	require.Empty(t, Normalize("<p>plain</p>").CSS)
}

func TestNormalizerImplementsInterface(t *testing.T) {
	t.Parallel()

	raw := "<p>x</p>"
	require.Equal(t, Normalize(raw), New().Normalize(raw))
}

func TestStyleBlockCount(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		"<style>a{}</style><div><style>b{}</style></div>",
	))
	require.NoError(t, err)
	require.Equal(t, 2, StyleBlockCount(doc))
	require.Equal(t, "a{}\nb{}", StyleText(doc))
}

func TestPrettifyRawTextIsNotEscaped(t *testing.T) {
	t.Parallel()

	got := Normalize(`<script>if (a < b && c) {}</script>`).HTML
	require.Contains(t, got, "if (a < b && c) {}")
}
