// Package entity decodes HTML character references.
//
// Spec references:
// - HTML5 §13.2.5.73 Character reference state: https://html.spec.whatwg.org/multipage/parsing.html#character-reference-state
// - HTML5 §13.5 Named character references: https://html.spec.whatwg.org/multipage/named-characters.html
//
// Decode only rewrites a reference when doing so is unambiguous: named
// references require a terminating ';' (except for the small legacy set
// that HTML5 permits bare, see legacyNoSemicolon), and numeric references
// require at least one digit and a value that fits in 32 bits. A numeric
// reference to NUL, a surrogate or a value above U+10FFFF decodes to
// U+FFFD (see sanitizeCodePoint). Anything else — including bare
// ampersands that happen to be followed by what looks like a name, such as
// "&order_id=2" — is emitted verbatim, since rewriting it would change the
// meaning of the surrounding text.
package entity

import (
	"strconv"
	"strings"

	"github.com/lukehoban/htmlsan/internal/charclass"
)

// maxEntityNameScan bounds how far past '&' we look for a ';' before giving
// up on treating the run as a character reference. The longest HTML5 named
// reference is "CounterClockwiseContourIntegral;" (32 chars, 33 with the
// leading '&'); round up.
const maxEntityNameScan = 34

// Decode rewrites numeric and named HTML character references in s,
// leaving everything else — including malformed or unrecognized
// references — unchanged.
func Decode(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}

		if decoded, consumed, ok := decodeAt(s[i:]); ok {
			b.WriteString(decoded)
			i += consumed
			continue
		}

		b.WriteByte('&')
		i++
	}

	return b.String()
}

// decodeAt attempts to decode a character reference starting at s[0] == '&'.
// It returns the decoded text, the number of input bytes it consumes
// (including the leading '&'), and whether a reference was recognized.
func decodeAt(s string) (string, int, bool) {
	if len(s) < 2 {
		return "", 0, false
	}

	if s[1] == '#' {
		return decodeNumeric(s)
	}

	return decodeNamed(s)
}

func decodeNumeric(s string) (string, int, bool) {
	// s[0]=='&', s[1]=='#'
	i := 2
	hex := false
	if i < len(s) && (s[i] == 'x' || s[i] == 'X') {
		hex = true
		i++
	}
	digitsStart := i
	for i < len(s) && isDigitFor(s[i], hex) {
		i++
	}
	if i == digitsStart {
		return "", 0, false
	}

	digits := s[digitsStart:i]
	base := 10
	if hex {
		base = 16
	}
	v, err := strconv.ParseInt(digits, base, 32)
	if err != nil {
		return "", 0, false
	}

	consumed := i
	if i < len(s) && s[i] == ';' {
		consumed = i + 1
	}

	r := sanitizeCodePoint(rune(v))
	return string(r), consumed, true
}

func isDigitFor(c byte, hex bool) bool {
	if hex {
		return charclass.IsHexDigit(rune(c))
	}
	return charclass.IsDigit(rune(c))
}

// sanitizeCodePoint maps invalid numeric references (the Windows-1252 C1
// remapping set, surrogates, out-of-range values, NUL) onto U+FFFD or their
// HTML5-specified replacement, the same error-recovery HTML5 requires of
// user agents.
func sanitizeCodePoint(r rune) rune {
	if replacement, ok := windows1252Remap[r]; ok {
		return replacement
	}
	if r == 0 || r > 0x10FFFF || charclass.IsSurrogate(r) {
		return 0xFFFD
	}
	return r
}

// windows1252Remap implements the HTML5 numeric character reference error
// correction table for the C1 control range (0x80-0x9F), which legacy
// content generates via Windows-1252 byte values.
var windows1252Remap = map[rune]rune{
	0x80: 0x20AC, 0x82: 0x201A, 0x83: 0x0192, 0x84: 0x201E,
	0x85: 0x2026, 0x86: 0x2020, 0x87: 0x2021, 0x88: 0x02C6,
	0x89: 0x2030, 0x8A: 0x0160, 0x8B: 0x2039, 0x8C: 0x0152,
	0x8E: 0x017D, 0x91: 0x2018, 0x92: 0x2019, 0x93: 0x201C,
	0x94: 0x201D, 0x95: 0x2022, 0x96: 0x2013, 0x97: 0x2014,
	0x98: 0x02DC, 0x99: 0x2122, 0x9A: 0x0161, 0x9B: 0x203A,
	0x9C: 0x0153, 0x9E: 0x017E, 0x9F: 0x0178,
}

// decodeNamed attempts to decode a named character reference. It scans the
// run of name characters after '&' for a ';' within maxEntityNameScan bytes
// and looks up exactly that name; if no terminated, recognized name is
// found it falls back to the legacy no-semicolon allow-list, and otherwise
// reports no match.
func decodeNamed(s string) (string, int, bool) {
	limit := len(s)
	if limit > maxEntityNameScan {
		limit = maxEntityNameScan
	}

	// The candidate is the whole name up to the first ';', so "&notin;" is
	// looked up as "notin" and "&not;" as "not"; shorter prefixes of the
	// name are not tried.
	semiIdx := -1
	for j := 1; j < limit; j++ {
		c := s[j]
		if c == ';' {
			semiIdx = j
			break
		}
		if !isEntityNameChar(c) {
			break
		}
	}

	if semiIdx > 0 {
		name := s[1:semiIdx]
		if decoded, ok := namedEntities[name]; ok {
			return decoded, semiIdx + 1, true
		}
	}

	// Legacy bare references: HTML5 permits a small, historically fixed set
	// of names without a trailing ';' because no valid attribute-value or
	// query-string continuation makes them ambiguous (see legacyNoSemicolon).
	for name, decoded := range legacyNoSemicolon {
		if strings.HasPrefix(s[1:], name) {
			next := 1 + len(name)
			if next < len(s) && s[next] == ';' {
				// Already handled by the terminated path above; skip to
				// avoid double-consuming the ';'.
				continue
			}
			return decoded, next, true
		}
	}

	return "", 0, false
}

func isEntityNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// legacyNoSemicolon lists the HTML5 named references that may appear
// without a trailing semicolon. This set is intentionally small: every
// member is safe to decode bare because HTML producers have relied on the
// unterminated form since before HTML5 codified it, and none of them are a
// prefix of a longer valid reference name.
var legacyNoSemicolon = map[string]string{
	"amp":  "&",
	"AMP":  "&",
	"lt":   "<",
	"LT":   "<",
	"gt":   ">",
	"GT":   ">",
	"quot": "\"",
	"QUOT": "\"",
}

// namedEntities is a curated subset of the HTML5 named character reference
// table covering the references seen in ordinary markup and CSS/HTML
// sanitization test corpora.
var namedEntities = map[string]string{
	"amp": "&", "lt": "<", "gt": ">", "quot": "\"", "apos": "'",
	"nbsp": " ", "copy": "©", "reg": "®", "trade": "™",
	"deg": "°", "plusmn": "±", "cent": "¢", "pound": "£",
	"euro": "€", "yen": "¥", "sect": "§", "para": "¶",
	"middot": "·", "bull": "•", "hellip": "…",
	"prime": "′", "Prime": "″",
	"ndash": "–", "mdash": "—",
	"lsquo": "‘", "rsquo": "’", "ldquo": "“", "rdquo": "”",
	"sbquo": "‚", "bdquo": "„", "laquo": "«", "raquo": "»",
	"thinsp": " ", "ensp": " ", "emsp": " ",
	"times": "×", "divide": "÷", "minus": "−", "lowast": "∗",
	"le": "≤", "ge": "≥", "ne": "≠", "equiv": "≡",
	"asymp": "≈", "infin": "∞", "sum": "∑", "prod": "∏",
	"radic": "√", "part": "∂", "int": "∫", "notin": "∉",
	"not": "¬", "isin": "∈", "forall": "∀", "exist": "∃",
	"larr": "←", "uarr": "↑", "rarr": "→", "darr": "↓",
	"harr": "↔", "lArr": "⇐", "uArr": "⇑", "rArr": "⇒",
	"dArr": "⇓", "hArr": "⇔",
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ",
	"epsilon": "ε", "pi": "π", "sigma": "σ", "omega": "ω",
	"Alpha": "Α", "Beta": "Β", "Gamma": "Γ", "Delta": "Δ",
	"Pi": "Π", "Sigma": "Σ", "Omega": "Ω",
	"iexcl": "¡", "iquest": "¿", "loz": "◊",
	"spades": "♠", "clubs": "♣", "hearts": "♥", "diams": "♦",
	"frac12": "½", "frac14": "¼", "frac34": "¾",
	"sup1": "¹", "sup2": "²", "sup3": "³",
	"aacute": "á", "eacute": "é", "iacute": "í",
	"oacute": "ó", "uacute": "ú", "ntilde": "ñ",
	"Aacute": "Á", "Eacute": "É", "Iacute": "Í",
	"Oacute": "Ó", "Uacute": "Ú", "Ntilde": "Ñ",
	"agrave": "à", "egrave": "è", "igrave": "ì",
	"ograve": "ò", "ugrave": "ù",
	"auml": "ä", "euml": "ë", "iuml": "ï",
	"ouml": "ö", "uuml": "ü",
	"ccedil": "ç", "Ccedil": "Ç",
}
