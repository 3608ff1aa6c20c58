package css

import (
	"testing"
	"time"
)

// perIterationBudget mirrors the §5 watchdog: no single lex call may take
// more than this against adversarial input of fuzz-sized length.
const perIterationBudget = time.Second

func FuzzCssTokensIdempotent(f *testing.F) {
	seeds := []string{
		"",
		"div { color: red; }",
		"\\",
		"#",
		"\"unterminated",
		"url(",
		"/* unterminated",
		"@media (min-width:1px){a{color:#fff}}",
		"a[href^=\"http\"]{background:url(foo.png)}",
		"10 em 1.5 rem .5em",
		"content: \"</style><![CDATA[]]>\"",
		"((([[[{{{",
		")))]]]}}}",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		start := time.Now()
		first := Lex(input)
		elapsed := time.Since(start)
		if elapsed > perIterationBudget {
			t.Fatalf("Lex took %s on input of length %d, exceeding budget", elapsed, len(input))
		}

		second := Lex(first.NormalizedCSS)
		if first.NormalizedCSS != second.NormalizedCSS {
			t.Fatalf("not idempotent: first=%q second=%q", first.NormalizedCSS, second.NormalizedCSS)
		}

		for _, bad := range []string{"</style", "<![CDATA[", "]]>"} {
			if containsFold(first.NormalizedCSS, bad) {
				t.Fatalf("disallowed substring %q present in output %q", bad, first.NormalizedCSS)
			}
		}

		for i, typ := range first.Types {
			switch typ {
			case LEFT_PAREN, LEFT_SQUARE, LEFT_CURLY, RIGHT_PAREN, RIGHT_SQUARE, RIGHT_CURLY:
				if p := first.Brackets.Partner(i); p != -1 {
					if first.Brackets.Partner(p) != i {
						t.Fatalf("bracket table not an involution at %d<->%d", i, p)
					}
				}
			}
		}
	})
}

func containsFold(s, sub string) bool {
	ls, lsub := []rune(s), []rune(sub)
	if len(lsub) == 0 {
		return true
	}
	for i := 0; i+len(lsub) <= len(ls); i++ {
		match := true
		for j := range lsub {
			if toLowerRune(ls[i+j]) != toLowerRune(lsub[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
