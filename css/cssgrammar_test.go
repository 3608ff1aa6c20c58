package css

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentQuoteUnwrap(t *testing.T) {
	cases := []struct{ in, want string }{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`hello`, "hello"},
		{`"it's fine"`, "it's fine"},
		{`'mismatched"`, `'mismatched"`},
		{`"`, `"`},
		{``, ``},
		{`""`, ``},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Content(c.in), "input %q", c.in)
	}
}

func TestContentEscapeDecoding(t *testing.T) {
	cases := []struct{ in, want string }{
		{`\41`, "A"},
		{`\41 x`, "Ax"},
		{`\41x`, "Ax"}, // 'x' is not a hex digit, so the escape ends after "41" and 'x' is literal
		{`it\27s`, "it's"},
		{"a\\\nb", "ab"},
		{`\`, ``},
		{`plain`, "plain"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, decodeEscapes(c.in), "input %q", c.in)
	}
}

func TestContentCombined(t *testing.T) {
	// CssGrammar::cssContent unwraps one quote layer, then decodes escapes
	// from the interior.
	require.Equal(t, "A", Content(`"\41"`))
	require.Equal(t, "it's", Content(`'it\27s'`))
}
