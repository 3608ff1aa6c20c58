package htmltok

import (
	"testing"
	"time"
)

const perIterationBudget = time.Second

// FuzzHtmlLexerNeverPanics checks the §3 span invariants (within bounds,
// non-overlapping, monotonically non-decreasing) and the §5 watchdog
// budget across adversarial input, timed the way periwiki's fuzz render
// test budgets each iteration.
func FuzzHtmlLexerNeverPanics(f *testing.F) {
	seeds := []string{
		"",
		"<",
		"</",
		"<!",
		"<![CDATA[",
		"<!--",
		"<?",
		"<%",
		"<script>",
		"<script><script><script>",
		"<p<a href=\"/\">text</>",
		"<a href=",
		"<a =b>",
		"<a a=b=c>",
		"</script",
		"<style>" + string(make([]byte, 256)),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, input string) {
		start := time.Now()
		l := New(input)
		lastEnd := 0
		for l.HasNext() {
			tok := l.Next()
			if tok.Start < 0 || tok.End > len(input) || tok.Start > tok.End {
				t.Fatalf("token %v out of bounds for input length %d", tok, len(input))
			}
			if tok.Start < lastEnd {
				t.Fatalf("token %v overlaps previous end %d", tok, lastEnd)
			}
			lastEnd = tok.End
		}
		if elapsed := time.Since(start); elapsed > perIterationBudget {
			t.Fatalf("lexing took %s on input of length %d, exceeding budget", elapsed, len(input))
		}
	})
}
