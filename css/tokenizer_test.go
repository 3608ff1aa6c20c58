package css

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// nameStartChar/nameContinueChar mirror spec.md §8's IDENT shape, extended
// with the hex-escape alternative readName falls back to for decoded code
// points that aren't safe to write literally (the same `\XX ` form STRING
// already allows below).
const (
	nameStartChar    = `(?:[a-zA-Z_\x{0080}-\x{10FFFF}]|\\[0-9a-f]+ ?)`
	nameContinueChar = `(?:[a-zA-Z0-9_\-\x{0080}-\x{10FFFF}]|\\[0-9a-f]+ ?)`
)

// shape regexes mirror spec.md §8's per-TokenType conformance table: every
// token this package emits for that type must match.
var shapeRegexes = map[TokenType]*regexp.Regexp{
	IDENT:             regexp.MustCompile(`^(?:-?` + nameStartChar + `|--)` + nameContinueChar + `*$`),
	AT:                regexp.MustCompile(`^@-?` + nameStartChar + nameContinueChar + `*$`),
	HASH_ID:           regexp.MustCompile(`^#-?` + nameStartChar + nameContinueChar + `*$`),
	HASH_UNRESTRICTED: regexp.MustCompile(`^#[0-9a-f]{3}([0-9a-f])?([0-9a-f]{2}([0-9a-f]{2})?)?$`),
	STRING:            regexp.MustCompile(`^'([^'\\]|\\[0-9a-f]+ ?)*'$`),
	URL:               regexp.MustCompile(`^url\('[^']*'\)$`),
	FUNCTION:          regexp.MustCompile(`^[a-z_]` + nameContinueChar + `*\($`),
	NUMBER:            regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?(e-?[0-9]+)?$`),
	DIMENSION:         regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?(e-?[0-9]+)?[a-zA-Z%]+$`),
	PERCENTAGE:        regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?(e-?[0-9]+)?%$`),
	UNICODE_RANGE:     regexp.MustCompile(`^[uU]\+[0-9a-f?]{1,6}(-[0-9a-f]{1,6})?$`),
	DOT_IDENT:         regexp.MustCompile(`^\.` + nameStartChar + nameContinueChar + `*$`),
	MATCH:             regexp.MustCompile(`^(~|\^|\$|\*|\|)=$`),
	COLUMN:            regexp.MustCompile(`^\|\|$`),
}

func TestTokenShapes(t *testing.T) {
	cases := []string{
		`div foo-bar --custom _under`,
		`@media @-moz-document`,
		`#id1 #Foo-Bar_2`,
		`#fff #a1b2c3 #aabbccdd`,
		`#123 #1a2b3c #1a2b3c4d`,
		`'hello' 'oh \22my' "quoted"`,
		`url(http://example.com/a.png) url("q.png") url( spaced.png )`,
		`rgb( translate(`,
		`0 1 -1 1.5 -1.5 1e3 1.5e-2 0.5`,
		`10px -5.5em 1e3px`,
		`50% -1.5%`,
		`U+26 u+0-7f U+4??`,
		`.foo .Bar-Baz`,
		`~= ^= $= *= |=`,
		`col1||col2`,
	}
	for _, c := range cases {
		toks := Lex(c)
		it := toks.Iterator()
		for it.HasNext() {
			text, typ := it.Next()
			re, ok := shapeRegexes[typ]
			if !ok {
				continue
			}
			require.Regexpf(t, re, text, "type %s text %q failed shape %s (input %q)", typ, text, re, c)
		}
	}
}

func TestBracketInvariants(t *testing.T) {
	cases := []string{
		`(foo)`, `(foo`, `foo)`, `[a{b(c]d}e)`, `{}[]()`, `((()))`, `)))(((`,
	}
	for _, c := range cases {
		toks := Lex(c)
		for i, typ := range toks.Types {
			switch typ {
			case LEFT_PAREN, LEFT_SQUARE, LEFT_CURLY, RIGHT_PAREN, RIGHT_SQUARE, RIGHT_CURLY, FUNCTION:
				p := toks.Brackets.Partner(i)
				if p == -1 {
					continue // orphan closer, allowed mid-stream
				}
				require.Equal(t, i, toks.Brackets.Partner(p), "bracket table must be an involution, input %q", c)
				require.NotEqual(t, p, i)
			default:
				require.Equal(t, -1, toks.Brackets.Partner(i))
			}
		}
	}
}

func TestIdempotence(t *testing.T) {
	cases := []string{
		`div { color: red; }`,
		`.a, #b > c ~ d + e { width: calc(10px + 2em); }`,
		`@media (min-width: 10px) { a { color: #fff } }`,
		`a[href^="http"] { background: url(foo.png) }`,
		`10 em`,
		`10 px`,
		`1.5 rem`,
		`.5em`,
		`'it\27s'`,
		`content: "\2014"`,
	}
	for _, c := range cases {
		first := Lex(c).NormalizedCSS
		second := Lex(first).NormalizedCSS
		require.Equal(t, first, second, "idempotence failed for input %q", c)
	}
}

func TestDisallowedSubstringsNeverAppear(t *testing.T) {
	cases := []string{
		`content: "</style>"`,
		`content: "<![CDATA["`,
		`content: "]]>"`,
		`/` + `* </style> */ color:red`,
	}
	for _, c := range cases {
		out := Lex(c).NormalizedCSS
		require.NotContains(t, out, "</style")
		require.NotContains(t, out, "<![CDATA[")
		require.NotContains(t, out, "]]>")
	}
}

// TestDisallowedSubstringsAcrossTokenBoundaries covers disallowed sequences
// that only assemble across three or more adjacent tokens, not just a pair:
// "]]>" from two unpaired RIGHT_SQUARE closers followed by a DELIM ">", and
// "</style" from two DELIM tokens ("<", "/") followed by an IDENT ("style").
// dangerousBoundary must check against the full accumulated output, not
// just the immediately preceding token's text.
func TestDisallowedSubstringsAcrossTokenBoundaries(t *testing.T) {
	cases := []string{
		`]]>`,
		`</style{`,
		`a]]>b`,
		`x</style y`,
	}
	for _, c := range cases {
		out := Lex(c).NormalizedCSS
		require.NotContains(t, out, "]]>", "input %q", c)
		require.NotContains(t, out, "</style", "input %q", c)
	}
}

// TestEscapedUnsafeCodePointsInNames covers §4.1's "otherwise re-encoded as
// \XX hex escapes" rule: a CSS escape inside an identifier/at-keyword/hash/
// dot-ident that decodes to a code point unsafe to write literally (a
// newline, or a markup-significant character) must be re-emitted as a hex
// escape, never as the raw code point.
func TestEscapedUnsafeCodePointsInNames(t *testing.T) {
	toks := Lex(`x\a`)
	require.Equal(t, []TokenType{IDENT}, toks.Types)
	require.NotContains(t, toks.NormalizedCSS, "\n")
	require.Contains(t, toks.NormalizedCSS, `\a`)

	toks = Lex(`\3c\2fstyle { }`)
	require.NotContains(t, toks.NormalizedCSS, "</style")
	it := toks.Iterator()
	text, typ := it.Next()
	require.Equal(t, IDENT, typ)
	require.NotContains(t, text, "</style")
	require.Regexp(t, shapeRegexes[IDENT], text)
}

// TestScenario1 lexes a small declaration block: source whitespace is
// dropped wherever re-lexing does not need it, keywords and units are
// lowercased, strings are re-quoted and url() is normalized. The verbatim
// spec.md §8 scenario 1 input is in TestScenario1Official.
func TestScenario1(t *testing.T) {
	input := `.foo { color: RED; width: 10PX; content: 'oh \22my'; background: URL(a.png) }`
	toks := Lex(input)

	var got []TokenType
	it := toks.Iterator()
	for it.HasNext() {
		_, typ := it.Next()
		got = append(got, typ)
	}

	want := []TokenType{
		DOT_IDENT, LEFT_CURLY,
		IDENT, COLON, IDENT, SEMICOLON,
		IDENT, COLON, DIMENSION, SEMICOLON,
		IDENT, COLON, STRING, SEMICOLON,
		IDENT, COLON, URL, RIGHT_CURLY,
	}
	require.Equal(t, want, got)

	it2 := toks.Iterator()
	texts := map[int]string{}
	for i := 0; it2.HasNext(); i++ {
		text, _ := it2.Next()
		texts[i] = text
	}
	require.Equal(t, "red", texts[4])
	require.Equal(t, "10px", texts[8])
	require.Contains(t, texts[12], `\22`)
}

// TestScenario1Official reproduces spec.md §8 scenario 1's literal example
// verbatim, filtering out WHITESPACE tokens as the scenario's expected
// sequence does.
func TestScenario1Official(t *testing.T) {
	input := "/* A comment */\n" +
		"words with-dashes #hashes .dots. -and-leading-dashes\n" +
		"quantities: 3px 4ex -.5pt 12.5%\n" +
		"punctuation: { ( } / , ;\n" +
		"[ url( http://example.com )\n" +
		"rgb(255, 127, 127)\n" +
		`'strings' "oh \"my" 'foo bar'`

	toks := Lex(input)
	type pair struct {
		text string
		typ  TokenType
	}
	var got []pair
	it := toks.Iterator()
	for it.HasNext() {
		text, typ := it.Next()
		if typ == WHITESPACE {
			continue
		}
		got = append(got, pair{text, typ})
	}

	want := []pair{
		{"words", IDENT}, {"with-dashes", IDENT}, {"#hashes", HASH_ID},
		{".dots", DOT_IDENT}, {".", DELIM}, {"-and-leading-dashes", IDENT},
		{"quantities", IDENT}, {":", COLON},
		{"3px", DIMENSION}, {"4ex", DIMENSION}, {"-0.5pt", DIMENSION}, {"12.5%", PERCENTAGE},
		{"punctuation", IDENT}, {":", COLON},
		{"{", LEFT_CURLY}, {"(", LEFT_PAREN}, {")", RIGHT_PAREN}, {"}", RIGHT_CURLY},
		{"/", DELIM}, {",", COMMA}, {";", SEMICOLON},
		{"[", LEFT_SQUARE},
		{"url('http://example.com')", URL},
		{"rgb(", FUNCTION}, {"255", NUMBER}, {",", COMMA}, {"127", NUMBER}, {",", COMMA}, {"127", NUMBER}, {")", RIGHT_PAREN},
		{"'strings'", STRING}, {`'oh \22my'`, STRING}, {"'foo bar'", STRING},
		{"]", RIGHT_SQUARE},
	}
	require.Equal(t, want, got)
}

func TestFuzzSeedsParseWithoutPanicking(t *testing.T) {
	seeds := []string{
		"",
		"\\",
		"#",
		"\"unterminated",
		"url(",
		"/* unterminated",
		"@",
		".",
		"-",
		"U+",
	}
	for _, s := range seeds {
		require.NotPanics(t, func() { Lex(s) })
	}
}
