package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiffIdenticalInputsAreEmpty(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"single line",
		"a\nb\nc",
		"<html>\n <body>\n </body>\n</html>\n",
	}
	for _, in := range inputs {
		require.Empty(t, New().Diff(in, in), "input %q", in)
	}
}

func TestDiffOneLineChanged(t *testing.T) {
	t.Parallel()

	previous := "alpha\nbeta\ngamma\ndelta\nepsilon"
	current := "alpha\nbeta\nGAMMA\ndelta\nepsilon"

	got := New().Diff(previous, current)
	require.NotEmpty(t, got)

	var added, removed int
	for _, line := range strings.Split(got, "\n") {
		require.False(t, strings.HasPrefix(line, "---"), "header line leaked: %q", line)
		require.False(t, strings.HasPrefix(line, "+++"), "header line leaked: %q", line)
		switch {
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	require.Equal(t, 1, added)
	require.Equal(t, 1, removed)
	require.Contains(t, got, "-gamma")
	require.Contains(t, got, "+GAMMA")
	require.True(t, strings.HasPrefix(got, "@@ -1,5 +1,5 @@"), "got %q", got)
}

func TestDiffAdditionFromEmpty(t *testing.T) {
	t.Parallel()

	got := New().Diff("", "body{color:red}")
	require.Equal(t, "@@ -0,0 +1 @@\n+body{color:red}", got)
}

func TestDiffIgnoresLineEndingStyle(t *testing.T) {
	t.Parallel()

	require.Empty(t, New().Diff("a\r\nb\r\n", "a\nb"))
}

func TestDiffIsDeterministic(t *testing.T) {
	t.Parallel()

	previous := "one\ntwo\nthree"
	current := "one\n2\nthree\nfour"
	first := New().Diff(previous, current)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, New().Diff(previous, current))
	}
}

func TestDifferContext(t *testing.T) {
	t.Parallel()

	previous := "1\n2\n3\n4\n5\n6\n7"
	current := "1\n2\n3\nX\n5\n6\n7"

	narrow := Differ{Context: 0}.Diff(previous, current)
	require.Equal(t, "@@ -4 +4 @@\n-4\n+X", narrow)

	wide := New().Diff(previous, current)
	require.Contains(t, wide, " 1")
	require.Contains(t, wide, " 7")
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "no trailing newline", in: "a\nb", want: []string{"a\n", "b\n"}},
		{name: "trailing newline", in: "a\nb\n", want: []string{"a\n", "b\n"}},
		{name: "blank middle line", in: "a\n\nb", want: []string{"a\n", "\n", "b\n"}},
		{name: "carriage returns", in: "a\rb", want: []string{"a\n", "b\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, splitLines(tt.in))
		})
	}
}
