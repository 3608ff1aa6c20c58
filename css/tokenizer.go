// Package css tokenizes CSS input into a safe, normalized, idempotent
// token stream. It does not build a CSS AST or apply any policy; it is the
// lexical foundation an HTML/CSS sanitizer builds its tag/attribute
// decisions on top of.
//
// Spec references:
// - CSS Syntax Module Level 3 §4 Tokenization: https://www.w3.org/TR/css-syntax-3/#tokenization
// - CSS Syntax Module Level 3 §4.3 Tokenizer algorithms: https://www.w3.org/TR/css-syntax-3/#tokenizer-algorithms
package css

import (
	"strings"
	"unicode/utf8"

	"github.com/lukehoban/htmlsan/internal/charclass"
	"github.com/lukehoban/htmlsan/log"
)

// TokenType identifies the lexical class of a CSS token. The set is closed;
// every emitted token's text matches a fixed shape for its type (see the
// package tests for the shape regexes).
type TokenType uint8

const (
	WHITESPACE TokenType = iota
	IDENT
	AT
	HASH_ID
	HASH_UNRESTRICTED
	STRING
	URL
	FUNCTION
	NUMBER
	DIMENSION
	PERCENTAGE
	UNICODE_RANGE
	DELIM
	DOT_IDENT
	MATCH
	COLUMN
	COLON
	SEMICOLON
	COMMA
	LEFT_CURLY
	RIGHT_CURLY
	LEFT_PAREN
	RIGHT_PAREN
	LEFT_SQUARE
	RIGHT_SQUARE
)

var tokenTypeNames = [...]string{
	"WHITESPACE", "IDENT", "AT", "HASH_ID", "HASH_UNRESTRICTED", "STRING",
	"URL", "FUNCTION", "NUMBER", "DIMENSION", "PERCENTAGE", "UNICODE_RANGE",
	"DELIM", "DOT_IDENT", "MATCH", "COLUMN", "COLON", "SEMICOLON", "COMMA",
	"LEFT_CURLY", "RIGHT_CURLY", "LEFT_PAREN", "RIGHT_PAREN", "LEFT_SQUARE",
	"RIGHT_SQUARE",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "UNKNOWN"
}

// Span is a (start, end) byte offset pair into a Tokens' NormalizedCSS.
type Span struct {
	Start, End int
}

// Brackets is a flat partner table: Brackets[i] is the token index paired
// with token i, or -1 if token i is not a bracket or has no partner.
// It is an involution over its defined (non -1) entries.
type Brackets []int

// Partner returns the index paired with token i, or -1 if unpaired or i is
// out of range.
func (b Brackets) Partner(i int) int {
	if i < 0 || i >= len(b) {
		return -1
	}
	return b[i]
}

// Tokens is the immutable product of lexing a CSS input: the rewritten safe
// text, one type per token, one span per token, and the bracket partner
// table.
type Tokens struct {
	NormalizedCSS string
	Types         []TokenType
	Spans         []Span
	Brackets      Brackets
}

// Iterator walks a Tokens container lazily, yielding (text, type) pairs. It
// supports a single step of backup, matching the contract callers need to
// re-examine a NUMBER token once a following IDENT reveals it was actually
// the start of a dimension (see lexNumber's digit-space-unit fusion).
type Iterator struct {
	tokens *Tokens
	pos    int // index of the "current" token; -1 before the first Next/Advance
	prev   int
}

// Iterator returns a new Iterator positioned before the first token.
func (t *Tokens) Iterator() *Iterator {
	return &Iterator{tokens: t, pos: -1, prev: -1}
}

// HasNext reports whether there is a token after the current position.
func (it *Iterator) HasNext() bool {
	return it.pos+1 < len(it.tokens.Types)
}

// Advance moves to the next token without returning it.
func (it *Iterator) Advance() {
	it.prev = it.pos
	if it.HasNext() {
		it.pos++
	}
}

// Next advances to the next token and returns its (text, type).
func (it *Iterator) Next() (string, TokenType) {
	it.Advance()
	return it.Token(), it.Type()
}

// Backup rewinds one step to the position before the last Advance/Next
// call. Only a single prior position is retained.
func (it *Iterator) Backup() {
	it.pos = it.prev
}

// Token returns the text of the current token (peek, no side effect).
func (it *Iterator) Token() string {
	if it.pos < 0 || it.pos >= len(it.tokens.Spans) {
		return ""
	}
	sp := it.tokens.Spans[it.pos]
	return it.tokens.NormalizedCSS[sp.Start:sp.End]
}

// Type returns the type of the current token.
func (it *Iterator) Type() TokenType {
	if it.pos < 0 || it.pos >= len(it.tokens.Types) {
		return WHITESPACE
	}
	return it.tokens.Types[it.pos]
}

// bracket opener kinds tracked on the lex-time stack.
type bracketKind uint8

const (
	kindParen bracketKind = iota
	kindSquare
	kindCurly
)

type stackEntry struct {
	kind bracketKind
	idx  int
}

// lexer holds the mutable state of a single Lex call.
type lexer struct {
	input []rune
	pos   int

	out   strings.Builder
	types []TokenType
	spans []Span

	stack    []stackEntry
	brackets []int

	sawGap    bool // whitespace/comment seen since the last emitted token
	lastType  TokenType
	lastText  string
	hasLast   bool
	synthetic int // count of synthetic closers inserted, logged once at end
}

const eof = -1

// Lex tokenizes input and returns a well-formed Tokens. It never fails:
// every malformed construct is normalized, synthesized, or dropped.
func Lex(input string) Tokens {
	l := &lexer{input: []rune(input)}
	l.run()
	if l.synthetic > 0 {
		log.WithFields(log.DebugLevel, "css: inserted synthetic bracket closers", map[string]interface{}{
			"count": l.synthetic,
		})
	}
	return Tokens{
		NormalizedCSS: l.out.String(),
		Types:         l.types,
		Spans:         l.spans,
		Brackets:      Brackets(l.brackets),
	}
}

func (l *lexer) run() {
	for {
		r := l.peek()
		if r == eof {
			break
		}
		l.step(r)
	}
	l.closeRemainingBrackets()
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	return l.input[l.pos]
}

func (l *lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return eof
	}
	return l.input[l.pos+offset]
}

// step consumes and emits exactly one lexical unit (possibly zero tokens,
// for whitespace/comments).
func (l *lexer) step(r rune) {
	switch {
	case charclass.IsWhitespace(r):
		l.consumeWhitespace()
	case r == '/' && l.peekAt(1) == '*':
		l.consumeComment()
	case r == '"' || r == '\'':
		l.lexString(r)
	case r == '#':
		l.lexHash()
	case r == '.':
		l.lexDot()
	case r == '@':
		l.lexAt()
	case charclass.IsDigit(r):
		l.lexNumber()
	case (r == '+' || r == '-') && l.numberFollows(0):
		l.lexNumber()
	case r == '-' && l.identFollows(0):
		l.lexIdentLike()
	case (r == 'u' || r == 'U') && l.peekAt(1) == '+' && (charclass.IsHexDigit(l.peekAt(2)) || l.peekAt(2) == '?'):
		l.lexUnicodeRange()
	case charclass.IsNameStart(r) || (r == '\\' && l.validEscapeAt(0)):
		l.lexIdentLike()
	case r == '~' || r == '^' || r == '$' || r == '*':
		l.lexMatchOrDelim(r)
	case r == '|':
		l.lexPipe()
	case r == ':':
		l.pos++
		l.emit(COLON, ":")
	case r == ';':
		l.pos++
		l.emit(SEMICOLON, ";")
	case r == ',':
		l.pos++
		l.emit(COMMA, ",")
	case r == '{':
		l.pos++
		l.pushOpener(kindCurly, l.emit(LEFT_CURLY, "{"))
	case r == '}':
		l.pos++
		l.closeBracket(kindCurly, RIGHT_CURLY, "}")
	case r == '(':
		l.pos++
		l.pushOpener(kindParen, l.emit(LEFT_PAREN, "("))
	case r == ')':
		l.pos++
		l.closeBracket(kindParen, RIGHT_PAREN, ")")
	case r == '[':
		l.pos++
		l.pushOpener(kindSquare, l.emit(LEFT_SQUARE, "["))
	case r == ']':
		l.pos++
		l.closeBracket(kindSquare, RIGHT_SQUARE, "]")
	default:
		l.lexDelimOrDrop(r)
	}
}

func (l *lexer) consumeWhitespace() {
	for charclass.IsWhitespace(l.peek()) {
		l.pos++
	}
	l.sawGap = true
}

func (l *lexer) consumeComment() {
	l.pos += 2
	for {
		if l.pos >= len(l.input) {
			break // unclosed comment runs to EOF, discarded
		}
		if l.input[l.pos] == '*' && l.peekAt(1) == '/' {
			l.pos += 2
			break
		}
		l.pos++
	}
	l.sawGap = true
}

func (l *lexer) lexDelimOrDrop(r rune) {
	l.pos++
	if r == 0 || r == 0xFEFF || charclass.IsSurrogate(r) || charclass.IsNonPrintable(r) {
		l.sawGap = true
		return
	}
	l.emit(DELIM, string(r))
}

// numberFollows reports whether a NUMBER token starts at offset, assuming
// the current character is '+' or '-'.
func (l *lexer) numberFollows(offset int) bool {
	c1 := l.peekAt(offset + 1)
	if charclass.IsDigit(c1) {
		return true
	}
	if c1 == '.' && charclass.IsDigit(l.peekAt(offset+2)) {
		return true
	}
	return false
}

// identFollows reports whether an identifier starts at offset, assuming the
// current character is '-'.
func (l *lexer) identFollows(offset int) bool {
	c1 := l.peekAt(offset + 1)
	if charclass.IsNameStart(c1) || c1 == '-' {
		return true
	}
	if c1 == '\\' {
		return l.validEscapeAtAbs(l.pos + offset + 1)
	}
	return false
}

func (l *lexer) validEscapeAt(offset int) bool {
	return l.validEscapeAtAbs(l.pos + offset)
}

// validEscapeAtAbs reports whether input[at] == '\\' begins a valid escape
// (not a backslash immediately followed by a newline or EOF).
func (l *lexer) validEscapeAtAbs(at int) bool {
	if at >= len(l.input) || l.input[at] != '\\' {
		return false
	}
	if at+1 >= len(l.input) {
		return false
	}
	return !isNewlineRune(l.input[at+1])
}

func isNewlineRune(r rune) bool {
	return r == '\n' || r == '\r' || r == '\f'
}

// emit appends text to the output, inserting a single-space WHITESPACE
// token first if dropping the source gap (or the mere juxtaposition) would
// change how the output re-lexes. It returns the index of the newly
// emitted token.
func (l *lexer) emit(typ TokenType, text string) int {
	if l.hasLast {
		// dangerousBoundary is checked against the full accumulated output,
		// not just the previous token's text: a disallowed sequence like
		// "]]>" or "</style" can straddle three (or more) tokens, and
		// looking only at the immediately preceding token's text would miss
		// it (e.g. the second of two adjacent RIGHT_SQUARE tokens plus a
		// following DELIM ">").
		danger := dangerousBoundary(l.out.String(), text)
		if l.sawGap {
			if danger || needsSeparator(l.lastType, l.lastText, typ, text) {
				l.appendToken(WHITESPACE, " ")
			}
		} else if danger || needsSeparator(l.lastType, l.lastText, typ, text) {
			// True adjacency that would still misparse (can happen after
			// normalization rewrites change a token's text, e.g. escape
			// decoding). Insert the same single-space guard.
			log.Debugf("css: inserted guard whitespace between adjacent %s and %s", l.lastType, typ)
			l.appendToken(WHITESPACE, " ")
		}
	}
	l.sawGap = false
	idx := l.appendToken(typ, text)
	l.lastType = typ
	l.lastText = text
	l.hasLast = true
	return idx
}

func (l *lexer) appendToken(typ TokenType, text string) int {
	start := l.out.Len()
	l.out.WriteString(text)
	end := l.out.Len()
	idx := len(l.types)
	l.types = append(l.types, typ)
	l.spans = append(l.spans, Span{Start: start, End: end})
	l.brackets = append(l.brackets, -1)
	return idx
}

func (l *lexer) pushOpener(kind bracketKind, idx int) {
	l.stack = append(l.stack, stackEntry{kind: kind, idx: idx})
}

func closerRune(kind bracketKind) (TokenType, string) {
	switch kind {
	case kindSquare:
		return RIGHT_SQUARE, "]"
	case kindCurly:
		return RIGHT_CURLY, "}"
	default:
		return RIGHT_PAREN, ")"
	}
}

func (l *lexer) closeBracket(expected bracketKind, typ TokenType, text string) {
	for len(l.stack) > 0 {
		top := l.stack[len(l.stack)-1]
		if top.kind == expected {
			l.stack = l.stack[:len(l.stack)-1]
			idx := l.emit(typ, text)
			l.pair(top.idx, idx)
			return
		}
		// Mismatched: synthesize a closer for the abandoned opener before
		// continuing to look for our match.
		l.stack = l.stack[:len(l.stack)-1]
		sTyp, sText := closerRune(top.kind)
		sIdx := l.emit(sTyp, sText)
		l.pair(top.idx, sIdx)
		l.synthetic++
	}
	// No opener at all: emit as an unpaired closer.
	l.emit(typ, text)
}

func (l *lexer) closeRemainingBrackets() {
	for len(l.stack) > 0 {
		top := l.stack[len(l.stack)-1]
		l.stack = l.stack[:len(l.stack)-1]
		typ, text := closerRune(top.kind)
		idx := l.emit(typ, text)
		l.pair(top.idx, idx)
		l.synthetic++
	}
}

func (l *lexer) pair(a, b int) {
	l.brackets[a] = b
	l.brackets[b] = a
}

func (l *lexer) lexMatchOrDelim(r rune) {
	if l.peekAt(1) == '=' {
		l.pos += 2
		l.emit(MATCH, string(r)+"=")
		return
	}
	l.pos++
	l.emit(DELIM, string(r))
}

func (l *lexer) lexPipe() {
	if l.peekAt(1) == '=' {
		l.pos += 2
		l.emit(MATCH, "|=")
		return
	}
	if l.peekAt(1) == '|' {
		l.pos += 2
		l.emit(COLUMN, "||")
		return
	}
	l.pos++
	l.emit(DELIM, "|")
}

func (l *lexer) lexDot() {
	if charclass.IsDigit(l.peekAt(1)) {
		l.lexNumber()
		return
	}
	if charclass.IsNameStart(l.peekAt(1)) || (l.peekAt(1) == '\\' && l.validEscapeAt(1)) {
		l.pos++ // consume '.'
		name := l.readName()
		l.emit(DOT_IDENT, "."+name)
		return
	}
	l.pos++
	l.emit(DELIM, ".")
}

func (l *lexer) lexAt() {
	if charclass.IsNameStart(l.peekAt(1)) || (l.peekAt(1) == '\\' && l.validEscapeAt(1)) {
		l.pos++ // consume '@'
		name := l.readName()
		l.emit(AT, "@"+charclass.LowerASCII(name))
		return
	}
	l.pos++
	l.emit(DELIM, "@")
}

func (l *lexer) lexHash() {
	save := l.pos
	l.pos++ // consume '#'
	if !charclass.IsNameContinue(l.peek()) && !(l.peek() == '\\' && l.validEscapeAt(0)) {
		l.emit(DELIM, "#")
		return
	}
	name := l.readName()
	if isValidIdentText(name) {
		l.emit(HASH_ID, "#"+name)
		return
	}
	if isHexOnly(name) && isUnrestrictedHashLen(len(name)) {
		l.emit(HASH_UNRESTRICTED, "#"+charclass.LowerASCII(name))
		return
	}
	// Not a valid name of either shape: back off to a lone DELIM '#' and
	// re-lex the rest normally.
	l.pos = save + 1
	l.emit(DELIM, "#")
}

func isHexOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !charclass.IsHexDigit(r) {
			return false
		}
	}
	return true
}

func isUnrestrictedHashLen(n int) bool {
	switch n {
	case 3, 4, 6, 8:
		return true
	default:
		return false
	}
}

func isValidIdentText(s string) bool {
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	return charclass.IsNameStart(first) || first == '-'
}

// readName consumes a run of name-continue characters and escapes,
// decoding escapes to their code points, and returns the assembled text.
// A decoded escape that is not itself a name-continue character — CR/LF/
// FF, a control character, or a markup-significant character like `<`,
// `>`, `&`, `/` — is re-encoded as a `\XX ` hex escape in the output
// rather than written literally, per §4.1's "otherwise re-encoded as \XX
// hex escapes" rule: writing it raw would let a disallowed sequence like
// `</style` or a literal newline land inside an otherwise-plain
// identifier. The caller has already consumed any leading sigil
// ('#', '@', '.').
func (l *lexer) readName() string {
	var runes []rune
	var needsEscape []bool
	for {
		r := l.peek()
		if r == '\\' && l.validEscapeAt(0) {
			decoded, ok := l.readEscape()
			if ok {
				runes = append(runes, decoded)
				needsEscape = append(needsEscape, !charclass.IsNameContinue(decoded))
			}
			continue
		}
		if charclass.IsNameContinue(r) {
			runes = append(runes, r)
			needsEscape = append(needsEscape, false)
			l.pos++
			continue
		}
		break
	}
	return assembleName(runes, needsEscape)
}

// assembleName serializes decoded name code points, hex-escaping any
// marked unsafe, with the same trailing-space-if-ambiguous rule
// writeHexEscape already applies when re-quoting strings.
func assembleName(runes []rune, needsEscape []bool) string {
	var b strings.Builder
	for i, r := range runes {
		if needsEscape[i] {
			writeHexEscape(&b, r, runes, i+1)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// readEscape consumes a CSS escape sequence starting at the current '\\'
// and returns the decoded rune. ok is false for a line-continuation escape
// (backslash-newline, which decodes to nothing) or a trailing backslash at
// EOF.
func (l *lexer) readEscape() (rune, bool) {
	l.pos++ // consume backslash
	if l.pos >= len(l.input) {
		return 0, false
	}
	c := l.input[l.pos]
	if isNewlineRune(c) {
		l.pos++
		if c == '\r' && l.peek() == '\n' {
			l.pos++
		}
		return 0, false
	}
	if hv, ok := charclass.HexValue(c); ok {
		hex := hv
		l.pos++
		for i := 0; i < 5 && charclass.IsHexDigit(l.peek()); i++ {
			nv, _ := charclass.HexValue(l.peek())
			hex = hex*16 + nv
			l.pos++
		}
		if charclass.IsWhitespace(l.peek()) {
			term := l.peek()
			l.pos++
			if term == '\r' && l.peek() == '\n' {
				l.pos++
			}
		}
		return sanitizeEscapeCodepoint(rune(hex)), true
	}
	l.pos++
	return c, true
}

func sanitizeEscapeCodepoint(r rune) rune {
	if r == 0 || r > 0x10FFFF || charclass.IsSurrogate(r) {
		return 0xFFFD
	}
	return r
}

func (l *lexer) lexIdentLike() {
	name := l.readName()
	if l.peek() == '(' {
		l.pos++
		lower := charclass.LowerASCII(name)
		if lower == "url" {
			l.lexURL()
			return
		}
		l.emit(FUNCTION, lower+"(")
		l.pushOpener(kindParen, len(l.types)-1)
		return
	}
	l.emit(IDENT, charclass.LowerASCII(name))
}

func (l *lexer) lexUnicodeRange() {
	l.pos += 2 // consume 'u'/'U' and '+'
	var hex strings.Builder
	for hex.Len() < 6 && charclass.IsHexDigit(l.peek()) {
		hex.WriteRune(charclass.ASCIILower(l.peek()))
		l.pos++
	}
	var b strings.Builder
	b.WriteString("U+")
	b.WriteString(hex.String())

	if hex.Len() < 6 && l.peek() == '?' {
		wildcards := 0
		for wildcards < 6-hex.Len() && l.peek() == '?' {
			b.WriteByte('?')
			l.pos++
			wildcards++
		}
		l.emit(UNICODE_RANGE, b.String())
		return
	}

	if l.peek() == '-' && charclass.IsHexDigit(l.peekAt(1)) {
		l.pos++ // consume '-'
		var hex2 strings.Builder
		for hex2.Len() < 6 && charclass.IsHexDigit(l.peek()) {
			hex2.WriteRune(charclass.ASCIILower(l.peek()))
			l.pos++
		}
		b.WriteByte('-')
		b.WriteString(hex2.String())
	}
	l.emit(UNICODE_RANGE, b.String())
}

// lexURL consumes the content of a url(...) construct (the "url(" has
// already been consumed) and emits a single URL token whose content is
// restricted to a safe character set and always single-quoted.
func (l *lexer) lexURL() {
	for charclass.IsWhitespace(l.peek()) {
		l.pos++
	}

	var content strings.Builder
	ok := true

	if l.peek() == '"' || l.peek() == '\'' {
		quote := l.peek()
		l.pos++
		for {
			r := l.peek()
			if r == eof {
				break
			}
			if r == quote {
				l.pos++
				break
			}
			if r == '\\' {
				if l.validEscapeAt(0) {
					decoded, escOK := l.readEscape()
					if escOK {
						content.WriteRune(decoded)
					}
					continue
				}
				l.pos++
				continue
			}
			if isNewlineRune(r) {
				break
			}
			content.WriteRune(r)
			l.pos++
		}
	} else {
		for {
			r := l.peek()
			if r == eof || r == ')' {
				break
			}
			if charclass.IsWhitespace(r) {
				for charclass.IsWhitespace(l.peek()) {
					l.pos++
				}
				break
			}
			if r == '\\' {
				if l.validEscapeAt(0) {
					decoded, escOK := l.readEscape()
					if escOK {
						content.WriteRune(decoded)
					}
					continue
				}
				ok = false
				l.pos++
				continue
			}
			if r == '"' || r == '\'' || r == '(' {
				ok = false
				l.pos++
				continue
			}
			content.WriteRune(r)
			l.pos++
		}
	}

	for charclass.IsWhitespace(l.peek()) {
		l.pos++
	}
	if l.peek() == ')' {
		l.pos++
	}

	if !ok {
		log.Debugf("css: malformed url() content rewritten to url()")
		l.emit(URL, "url()")
		return
	}
	l.emit(URL, "url('"+percentEncodeURL(content.String())+"')")
}

// percentEncodeURL restricts s to the URL token's allowed character set,
// percent-encoding everything else and dropping illegal code points
// (NUL, BOM, surrogates, non-printable controls).
func percentEncodeURL(s string) string {
	const allowed = "-_.~:/?#[]@!$&+,;=%"
	var b strings.Builder
	for _, r := range s {
		if r == 0 || r == 0xFEFF || charclass.IsSurrogate(r) || charclass.IsNonPrintable(r) {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
			continue
		}
		var buf [4]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, by := range buf[:n] {
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(hexByte(by)))
		}
	}
	return b.String()
}

const hexDigits = "0123456789abcdef"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}

func (l *lexer) lexString(quote rune) {
	l.pos++ // consume opening quote
	var content strings.Builder
	for {
		r := l.peek()
		if r == eof {
			break
		}
		if r == quote {
			l.pos++
			break
		}
		if isNewlineRune(r) {
			// Unterminated: close here, reinsert the newline as a gap.
			l.sawGap = true
			l.pos++
			break
		}
		if r == '\\' {
			if l.peekAt(1) == eof {
				l.pos++
				break
			}
			decoded, ok := l.readEscape()
			if ok {
				content.WriteRune(decoded)
			}
			continue
		}
		content.WriteRune(r)
		l.pos++
	}
	l.emit(STRING, quoteString(content.String()))
}

// quoteString re-serializes decoded string content as a single-quoted CSS
// string literal, hex-escaping the output quote character, the escape
// character itself, and any character that could let the value escape its
// enclosing HTML/CSS context.
func quoteString(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.WriteByte('\'')
	for i, r := range runes {
		if needsStringEscape(r) {
			writeHexEscape(&b, r, runes, i+1)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

func needsStringEscape(r rune) bool {
	switch r {
	case '\'', '\\', '<', '>', '&', '"', '\r', '\n', '\f', 0, 0xFEFF:
		return true
	}
	return charclass.IsNonPrintable(r) || charclass.IsSurrogate(r)
}

func writeHexEscape(b *strings.Builder, r rune, following []rune, nextIdx int) {
	b.WriteByte('\\')
	b.WriteString(hexLower(uint32(r)))
	if nextIdx < len(following) {
		next := following[nextIdx]
		if charclass.IsHexDigit(next) || charclass.IsWhitespace(next) {
			b.WriteByte(' ')
		}
	}
}

func hexLower(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

func (l *lexer) lexNumber() {
	negative := false
	if l.peek() == '+' || l.peek() == '-' {
		negative = l.peek() == '-'
		l.pos++
	}
	var intDigits strings.Builder
	for charclass.IsDigit(l.peek()) {
		intDigits.WriteRune(l.peek())
		l.pos++
	}
	var fracDigits strings.Builder
	if l.peek() == '.' && charclass.IsDigit(l.peekAt(1)) {
		l.pos++
		for charclass.IsDigit(l.peek()) {
			fracDigits.WriteRune(l.peek())
			l.pos++
		}
	}
	expNegative := false
	var expDigits strings.Builder
	if l.peek() == 'e' || l.peek() == 'E' {
		off := 1
		sign := rune(0)
		if l.peekAt(1) == '+' || l.peekAt(1) == '-' {
			sign = l.peekAt(1)
			off = 2
		}
		if charclass.IsDigit(l.peekAt(off)) {
			l.pos += off
			expNegative = sign == '-'
			for charclass.IsDigit(l.peek()) {
				expDigits.WriteRune(l.peek())
				l.pos++
			}
		}
	}

	number := canonicalNumber(negative, intDigits.String(), fracDigits.String(), expNegative, expDigits.String())

	// Immediate adjacency (no source gap) always fuses per the base CSS
	// grammar, regardless of whether the unit is recognized.
	if charclass.IsNameStart(l.peek()) || (l.peek() == '\\' && l.validEscapeAt(0)) {
		unit := charclass.LowerASCII(l.readName())
		l.emit(DIMENSION, number+unit)
		return
	}
	if l.peek() == '%' {
		l.pos++
		l.emit(PERCENTAGE, number+"%")
		return
	}

	// Preferred fix for the documented NUMBER-WHITESPACE-IDENT
	// non-idempotence (see SPEC_FULL.md §9): if a gap-then-identifier
	// follows and the identifier is a well-known unit, fuse it into a
	// single DIMENSION token, dropping the gap, instead of emitting three
	// tokens that could not survive re-lexing unchanged.
	save := l.pos
	if l.skipGapForLookahead() && (charclass.IsNameStart(l.peek()) || (l.peek() == '\\' && l.validEscapeAt(0))) {
		unit := charclass.LowerASCII(l.readName())
		if charclass.IsWellKnownUnit(unit) {
			l.emit(DIMENSION, number+unit)
			return
		}
	}
	l.pos = save // not a fusible unit: rewind past the lookahead, gap re-tokenized normally

	l.emit(NUMBER, number)
}

// skipGapForLookahead consumes whitespace/comments purely for lookahead
// purposes (the caller restores l.pos if the lookahead doesn't pan out) and
// reports whether any gap was present.
func (l *lexer) skipGapForLookahead() bool {
	start := l.pos
	for {
		if charclass.IsWhitespace(l.peek()) {
			l.pos++
			continue
		}
		if l.peek() == '/' && l.peekAt(1) == '*' {
			l.pos += 2
			for l.pos < len(l.input) && !(l.input[l.pos] == '*' && l.peekAt(1) == '/') {
				l.pos++
			}
			if l.pos < len(l.input) {
				l.pos += 2
			}
			continue
		}
		break
	}
	return l.pos != start
}

func canonicalNumber(negative bool, intDigits, fracDigits string, expNegative bool, expDigits string) string {
	intDigits = strings.TrimLeft(intDigits, "0")
	if intDigits == "" {
		intDigits = "0"
	}
	fracDigits = strings.TrimRight(fracDigits, "0")
	expDigits = strings.TrimLeft(expDigits, "0")

	isZero := intDigits == "0" && fracDigits == ""

	var b strings.Builder
	if negative && !isZero {
		b.WriteByte('-')
	}
	b.WriteString(intDigits)
	if fracDigits != "" {
		b.WriteByte('.')
		b.WriteString(fracDigits)
	}
	if expDigits != "" && !isZero {
		b.WriteByte('e')
		if expNegative {
			b.WriteByte('-')
		}
		b.WriteString(expDigits)
	}
	return b.String()
}

// needsSeparator reports whether concatenating prevText and nextText
// directly (no character between them) would re-lex into a different token
// sequence than emitting them as prevType, nextType. When true, the caller
// inserts a single-space WHITESPACE token between them.
func needsSeparator(prevType TokenType, prevText string, nextType TokenType, nextText string) bool {
	if prevText == "" || nextText == "" {
		return false
	}
	pr, _ := utf8.DecodeLastRuneInString(prevText)
	nr, _ := utf8.DecodeRuneInString(nextText)

	if continuesName(pr) && (charclass.IsNameContinue(nr) || charclass.IsDigit(nr)) {
		return true
	}
	if charclass.IsDigit(pr) && nr == '%' {
		return true
	}
	if prevType == DELIM {
		switch prevText {
		case ".":
			if charclass.IsNameStart(nr) || charclass.IsDigit(nr) {
				return true
			}
		case "@":
			if charclass.IsNameStart(nr) {
				return true
			}
		case "#":
			if charclass.IsNameStart(nr) || charclass.IsHexDigit(nr) {
				return true
			}
		case "-":
			if charclass.IsNameStart(nr) || charclass.IsDigit(nr) {
				return true
			}
		case "+":
			if charclass.IsDigit(nr) {
				return true
			}
		case "~", "^", "$", "*":
			if nr == '=' {
				return true
			}
		case "|":
			if nr == '=' || nr == '|' {
				return true
			}
		case "/":
			if nr == '*' {
				return true
			}
		}
	}
	return false
}

// continuesName reports whether r could be the last character of a name
// token such that a following name-continue or digit character would
// extend it rather than start a new token.
func continuesName(r rune) bool {
	return charclass.IsNameContinue(r) || charclass.IsDigit(r)
}

// dangerousBoundary reports whether the text spanning the end of the
// accumulated output so far and the start of next could assemble one of the
// disallowed output sequences (</style, <![CDATA[, ]]>) that must never
// appear in NormalizedCSS. prev is the *entire* output accumulated so far,
// not just the previous token's text, since a disallowed sequence can
// straddle more than two tokens (e.g. two RIGHT_SQUARE tokens followed by a
// DELIM ">" assembling "]]>"); only its tail is actually inspected.
func dangerousBoundary(prev, next string) bool {
	window := strings.ToLower(tail(prev, 12) + head(next, 12))
	for _, bad := range []string{"</style", "<![cdata[", "]]>"} {
		if strings.Contains(window, bad) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
