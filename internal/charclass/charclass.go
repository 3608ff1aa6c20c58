// Package charclass provides the character classification tables shared by
// the css and htmltok packages: ASCII case folding, CSS name-start/name-
// continue rules, and the well-known CSS unit set.
//
// Spec references:
// - CSS Syntax Module Level 3 §4.2 Definitions: https://www.w3.org/TR/css-syntax-3/#tokenizer-definitions
package charclass

// ASCIILower folds a single ASCII byte to lower case, leaving everything
// else (including non-ASCII bytes that are part of a multi-byte rune)
// untouched. CSS identifiers and unit names are ASCII-lowercased; non-ASCII
// code points are preserved verbatim per spec.
func ASCIILower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// LowerASCII returns s with every ASCII letter folded to lower case.
func LowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// IsNameStart reports whether r can begin a CSS identifier.
// CSS Syntax Level 3 §4.2: name-start code point.
func IsNameStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r >= 0x80
}

// IsNameContinue reports whether r can continue a CSS identifier.
// CSS Syntax Level 3 §4.2: name code point.
func IsNameContinue(r rune) bool {
	return IsNameStart(r) || (r >= '0' && r <= '9') || r == '-'
}

// IsDigit reports whether r is an ASCII digit.
func IsDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// IsHexDigit reports whether r is an ASCII hex digit.
func IsHexDigit(r rune) bool {
	return IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// HexValue returns the numeric value of a hex digit and whether r is one.
func HexValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	}
	return 0, false
}

// IsWhitespace reports whether r is CSS whitespace (space, tab, CR, LF, FF).
// CSS Syntax Level 3 §4.2: whitespace.
func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// IsHTMLSpace reports whether r is an HTML space character (space, tab,
// CR, LF, FF) per the WHATWG definition used for attribute/tag boundaries.
func IsHTMLSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// IsASCIIAlpha reports whether r is an ASCII letter, the character class
// an HTML tag name must start with.
func IsASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// IsNonPrintable reports whether r is a C0 control (other than whitespace)
// or DEL — characters CSS Syntax Level 3 treats as "non-printable" and
// disallows unescaped inside URL tokens.
func IsNonPrintable(r rune) bool {
	return (r >= 0 && r <= 0x08) || r == 0x0B || (r >= 0x0E && r <= 0x1F) || r == 0x7F
}

// IsSurrogate reports whether r falls in the UTF-16 surrogate range, which
// is never a valid Unicode scalar value.
func IsSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}

// WellKnownUnits is the fixed set of CSS length/angle/time/frequency/
// resolution units recognized for NUMBER+IDENT fusion into DIMENSION.
// Spec §4.1 "Well-known units".
var WellKnownUnits = map[string]bool{
	"em": true, "ex": true, "ch": true, "rem": true,
	"vw": true, "vh": true, "vmin": true, "vmax": true,
	"cm": true, "mm": true, "in": true, "px": true, "pt": true, "pc": true, "q": true,
	"deg": true, "grad": true, "rad": true, "turn": true,
	"ms": true, "s": true,
	"hz": true, "khz": true,
	"dpi": true, "dpcm": true, "dppx": true,
	"fr": true,
}

// IsWellKnownUnit reports whether name (already ASCII-lowercased) is a
// recognized CSS unit.
func IsWellKnownUnit(name string) bool {
	return WellKnownUnits[LowerASCII(name)]
}
