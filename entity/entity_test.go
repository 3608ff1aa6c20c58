package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeLeavesNonEntitiesUnchanged(t *testing.T) {
	cases := []string{
		`/t?a=1&order_id=2`,
		`/t?a=1&order-id=2`,
		`a & b`,
		`a&`,
		`&unknownentity;`,
		`&123;`,
		`&nbsparg;`,
	}
	for _, c := range cases {
		require.Equal(t, c, Decode(c), "input %q", c)
	}
}

// TestScenario6 reproduces spec.md §8 scenario 6.
func TestScenario6(t *testing.T) {
	require.Equal(t,
		`<a href="/t?a=1&order_id=2">order</a>`,
		Decode(`<a href="/t?a=1&order_id=2">order</a>`))

	require.Equal(t,
		`<a href="/t?a=1&b=2">`,
		Decode(`<a href="/t?a=1&amp;b=2">`))
}

func TestDecodeNamedEntities(t *testing.T) {
	cases := []struct{ in, want string }{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", `"`},
		{"&copy;", "©"},
		{"&nbsp;", " "},
		{"&notin;", "∉"},
		{"&not;x", "¬x"}, // "not" is a legacy-free terminated name; no bare form here
	}
	for _, c := range cases {
		require.Equal(t, c.want, Decode(c.in), "input %q", c.in)
	}
}

func TestDecodeLegacyNoSemicolon(t *testing.T) {
	cases := []struct{ in, want string }{
		{"&amp", "&"},
		{"&AMP", "&"},
		{"&lt", "<"},
		{"&gt", ">"},
		{"&quot", `"`},
		{"a&ampb", "a&b"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Decode(c.in), "input %q", c.in)
	}
}

func TestDecodeNumeric(t *testing.T) {
	cases := []struct{ in, want string }{
		{"&#65;", "A"},
		{"&#x41;", "A"},
		{"&#X41;", "A"},
		{"&#65", "A"},
		{"&#0;", "�"},
		{"&#x80;", "€"},
		{"&#xD800;", "�"},
		{"&#x110000;", "�"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Decode(c.in), "input %q", c.in)
	}
}

func TestDecodeEmptyAndNoAmpersand(t *testing.T) {
	require.Equal(t, "", Decode(""))
	require.Equal(t, "plain text", Decode("plain text"))
}
