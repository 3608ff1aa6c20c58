// Package htmltok lexes HTML into a span stream: tag boundaries, attribute
// names/values, text, and the handful of markup-declaration forms (raw
// text, comments, CDATA, directives, server code) that a CSS/HTML
// sanitizer must recognize without building a DOM.
//
// This is deliberately not an HTML5-conformant tokenizer: tree
// construction, template/foreign content, and HTML5's short-tag
// interpretation are out of scope. Malformed input is always normalized
// into some token sequence, never rejected.
package htmltok

import (
	"strings"

	"github.com/lukehoban/htmlsan/internal/charclass"
	"github.com/lukehoban/htmlsan/log"
)

// TokenType identifies the lexical class of an HTML token.
type TokenType uint8

const (
	TAGBEGIN TokenType = iota
	TAGEND
	ATTRNAME
	ATTRVALUE
	TEXT
	CDATA
	DIRECTIVE
	COMMENT
	SERVERCODE
	UNESCAPED
)

var tokenTypeNames = [...]string{
	"TAGBEGIN", "TAGEND", "ATTRNAME", "ATTRVALUE", "TEXT",
	"CDATA", "DIRECTIVE", "COMMENT", "SERVERCODE", "UNESCAPED",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "UNKNOWN"
}

// Token is a (type, span) pair indexing into the Lexer's input string. The
// input is never copied or mutated.
type Token struct {
	Type       TokenType
	Start, End int
}

// rawTextElements is the fixed set of elements whose body is opaque
// character data lexed verbatim until the matching end tag.
var rawTextElements = map[string]bool{
	"script": true, "style": true, "xmp": true, "iframe": true,
	"listing": true, "noembed": true, "noframes": true,
	"plaintext": true, "title": true, "textarea": true,
}

// Lexer is a single-pass HTML tokenizer that never allocates the input.
type Lexer struct {
	input string
	pos   int

	// inTag is true while positioned inside an open tag, after its
	// TAGBEGIN has been emitted and before its TAGEND (the IN_TAG,
	// IN_ATTR_NAME, AFTER_ATTR_NAME and IN_ATTR_VALUE_* states).
	inTag bool
	// pendingValue is true once an attribute name has been read and an
	// '=' consumed after it, so the next call must read its ATTRVALUE.
	pendingValue bool

	// lastTagName/lastTagWasEnd record the most recently emitted
	// TAGBEGIN's name, to decide at its TAGEND whether to enter raw text.
	lastTagName   string
	lastTagWasEnd bool

	// rawTextTag holds the lowercased name of the raw-text element
	// currently open, or "" outside raw text (the IN_RAWTEXT state).
	rawTextTag string
	// rawTextEndPending is true once the matching end-tag boundary for
	// rawTextTag has been located and the next token to emit is its
	// TAGBEGIN.
	rawTextEndPending bool

	peeked    Token
	hasPeeked bool
}

// New returns a Lexer over input, positioned before the first token.
func New(input string) *Lexer {
	return &Lexer{input: input}
}

// HasNext reports whether a further call to Next would return a token.
func (l *Lexer) HasNext() bool {
	if l.hasPeeked {
		return true
	}
	t, ok := l.lex()
	if !ok {
		return false
	}
	l.peeked = t
	l.hasPeeked = true
	return true
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if !l.hasPeeked {
		if t, ok := l.lex(); ok {
			l.peeked = t
			l.hasPeeked = true
		}
	}
	return l.peeked
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	if l.hasPeeked {
		l.hasPeeked = false
		return l.peeked
	}
	t, _ := l.lex()
	return t
}

// lex produces the single next token, or ok=false at EOF.
func (l *Lexer) lex() (Token, bool) {
	if l.pendingValue {
		l.pendingValue = false
		return l.lexAttrValue()
	}
	if l.pos >= len(l.input) {
		return Token{}, false
	}
	switch {
	case l.rawTextEndPending:
		return l.lexRawTextEndTag()
	case l.rawTextTag != "":
		return l.lexRawText()
	case l.inTag:
		return l.lexInTag()
	default:
		return l.lexOutside()
	}
}

// lexOutside handles the OUTSIDE state: plain text, tag opens, comments,
// CDATA, directives, and server code.
func (l *Lexer) lexOutside() (Token, bool) {
	if l.input[l.pos] != '<' {
		return l.lexText()
	}

	switch tagOpenKind(l.input, l.pos) {
	case tagOpenStart, tagOpenEnd:
		return l.lexTagBegin()
	case tagOpenComment:
		return l.lexComment()
	case tagOpenCDATA:
		return l.lexCDATA()
	case tagOpenDirective:
		return l.lexDirective()
	case tagOpenServerCode:
		return l.lexServerCode()
	default:
		return l.lexText()
	}
}

type tagOpenClass int

const (
	tagOpenNone tagOpenClass = iota
	tagOpenStart
	tagOpenEnd
	tagOpenComment
	tagOpenCDATA
	tagOpenDirective
	tagOpenServerCode
)

// tagOpenKind classifies the '<' at input[pos] per the §4.2 state
// transitions. Anything that doesn't match a recognized form is
// tagOpenNone: such a '<' is ordinary text (see the "</>" non-goal).
func tagOpenKind(input string, pos int) tagOpenClass {
	rest := input[pos:]
	if len(rest) < 2 {
		return tagOpenNone
	}
	switch rest[1] {
	case '!':
		if strings.HasPrefix(rest, "<!--") {
			return tagOpenComment
		}
		if strings.HasPrefix(rest, "<![CDATA[") {
			return tagOpenCDATA
		}
		return tagOpenDirective
	case '?':
		return tagOpenServerCode
	case '%':
		return tagOpenServerCode
	case '/':
		if len(rest) >= 3 && charclass.IsASCIIAlpha(rune(rest[2])) {
			return tagOpenEnd
		}
		return tagOpenNone
	default:
		if charclass.IsASCIIAlpha(rune(rest[1])) {
			return tagOpenStart
		}
		return tagOpenNone
	}
}

// lexText consumes text up to (but not including) the next '<' that opens
// a recognized construct; a '<' that doesn't is literal text and scanning
// continues past it.
func (l *Lexer) lexText() (Token, bool) {
	start := l.pos
	for l.pos < len(l.input) {
		if l.input[l.pos] == '<' && tagOpenKind(l.input, l.pos) != tagOpenNone {
			break
		}
		l.pos++
	}
	return Token{Type: TEXT, Start: start, End: l.pos}, true
}

// lexTagBegin reads a start-tag or end-tag name, stopping at whitespace,
// '/', '>', a further '<' (the short-tag quirk: a following '<' begins the
// next ATTRNAME rather than extending this tag's name), or EOF.
func (l *Lexer) lexTagBegin() (Token, bool) {
	start := l.pos
	isEnd := false
	l.pos++ // consume '<'
	if l.pos < len(l.input) && l.input[l.pos] == '/' {
		isEnd = true
		l.pos++
	}
	nameStart := l.pos
	for l.pos < len(l.input) && !isTagBoundary(l.input[l.pos]) {
		l.pos++
	}
	l.inTag = true
	l.lastTagName = charclass.LowerASCII(l.input[nameStart:l.pos])
	l.lastTagWasEnd = isEnd
	return Token{Type: TAGBEGIN, Start: start, End: l.pos}, true
}

func isTagBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '/', '>', '<':
		return true
	}
	return false
}

// lexInTag handles the IN_TAG / IN_ATTR_NAME / AFTER_ATTR_NAME states: it
// emits exactly one ATTRNAME per call (leaving pendingValue set if an '='
// follows) or the tag's TAGEND.
func (l *Lexer) lexInTag() (Token, bool) {
	for l.pos < len(l.input) && charclass.IsHTMLSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		l.inTag = false
		return Token{}, false // EOF inside an open tag: no synthetic TAGEND
	}

	if l.input[l.pos] == '>' {
		start := l.pos
		l.pos++
		l.inTag = false
		l.maybeEnterRawText()
		return Token{Type: TAGEND, Start: start, End: l.pos}, true
	}

	if l.input[l.pos] == '=' {
		// An '=' with no attribute name before it (e.g. a repeated or
		// leading '='): nothing to attach it to, so it is dropped as a
		// no-op separator rather than emitted as a degenerate empty name.
		log.Debug("htmltok: dropped stray '=' with no preceding attribute name")
		l.pos++
		return l.lexInTag()
	}

	start := l.pos
	for l.pos < len(l.input) && !isAttrNameBoundary(l.input[l.pos]) {
		l.pos++
	}
	name := Token{Type: ATTRNAME, Start: start, End: l.pos}

	save := l.pos
	for l.pos < len(l.input) && charclass.IsHTMLSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '=' {
		l.pos++
		for l.pos < len(l.input) && charclass.IsHTMLSpace(rune(l.input[l.pos])) {
			l.pos++
		}
		l.pendingValue = true
		return name, true
	}
	l.pos = save
	return name, true
}

func isAttrNameBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '=', '>':
		return true
	}
	return false
}

// lexAttrValue reads the value following an attribute name and '=': a
// single- or double-quoted span (quotes included), or an unquoted run
// terminated by whitespace or '>'.
func (l *Lexer) lexAttrValue() (Token, bool) {
	start := l.pos
	if l.pos < len(l.input) && (l.input[l.pos] == '"' || l.input[l.pos] == '\'') {
		quote := l.input[l.pos]
		l.pos++
		for l.pos < len(l.input) && l.input[l.pos] != quote {
			l.pos++
		}
		if l.pos < len(l.input) {
			l.pos++ // consume closing quote
		}
		return Token{Type: ATTRVALUE, Start: start, End: l.pos}, true
	}
	for l.pos < len(l.input) && l.input[l.pos] != '>' && !charclass.IsHTMLSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	return Token{Type: ATTRVALUE, Start: start, End: l.pos}, true
}

// maybeEnterRawText transitions into IN_RAWTEXT after a start tag whose
// name is in rawTextElements; end tags and unrecognized names never do.
func (l *Lexer) maybeEnterRawText() {
	if l.lastTagName != "" && !l.lastTagWasEnd && rawTextElements[l.lastTagName] {
		l.rawTextTag = l.lastTagName
	}
}

// lexRawText scans for the matching end-tag boundary; everything before it
// is UNESCAPED. Unterminated raw text runs to EOF.
func (l *Lexer) lexRawText() (Token, bool) {
	idx := findRawTextEnd(l.input, l.pos, l.rawTextTag)
	if idx < 0 {
		start := l.pos
		l.pos = len(l.input)
		l.rawTextTag = ""
		log.Debug("htmltok: unterminated raw-text element ran to EOF")
		if start == l.pos {
			return Token{}, false
		}
		return Token{Type: UNESCAPED, Start: start, End: l.pos}, true
	}
	if idx > l.pos {
		start := l.pos
		l.pos = idx
		return Token{Type: UNESCAPED, Start: start, End: l.pos}, true
	}
	l.rawTextEndPending = true
	return l.lexRawTextEndTag()
}

// lexRawTextEndTag emits the TAGBEGIN for the raw-text element's matching
// end tag, then hands control back to the normal IN_TAG attribute scanner.
func (l *Lexer) lexRawTextEndTag() (Token, bool) {
	l.rawTextEndPending = false
	l.rawTextTag = ""
	return l.lexTagBegin()
}

// findRawTextEnd returns the index of the '<' beginning "</tag" (case
// insensitive, followed by whitespace, '/', '>', or EOF) at or after from,
// or -1 if no such boundary exists before EOF.
func findRawTextEnd(input string, from int, tag string) int {
	lower := strings.ToLower(input[from:])
	needle := "</" + tag
	offset := 0
	for {
		idx := strings.Index(lower[offset:], needle)
		if idx < 0 {
			return -1
		}
		abs := offset + idx
		after := abs + len(needle)
		if after >= len(lower) || charclass.IsHTMLSpace(rune(lower[after])) || lower[after] == '>' || lower[after] == '/' {
			return from + abs
		}
		offset = abs + 1
	}
}

func (l *Lexer) lexComment() (Token, bool) {
	start := l.pos
	idx := strings.Index(l.input[l.pos:], "-->")
	if idx < 0 {
		l.pos = len(l.input)
		log.Debug("htmltok: unterminated comment ran to EOF")
		return Token{Type: COMMENT, Start: start, End: l.pos}, true
	}
	l.pos += idx + len("-->")
	return Token{Type: COMMENT, Start: start, End: l.pos}, true
}

func (l *Lexer) lexCDATA() (Token, bool) {
	start := l.pos
	idx := strings.Index(l.input[l.pos:], "]]>")
	if idx < 0 {
		l.pos = len(l.input)
		log.Debug("htmltok: unterminated CDATA section ran to EOF")
		return Token{Type: CDATA, Start: start, End: l.pos}, true
	}
	l.pos += idx + len("]]>")
	return Token{Type: CDATA, Start: start, End: l.pos}, true
}

func (l *Lexer) lexDirective() (Token, bool) {
	start := l.pos
	idx := strings.IndexByte(l.input[l.pos:], '>')
	if idx < 0 {
		l.pos = len(l.input)
		return Token{Type: DIRECTIVE, Start: start, End: l.pos}, true
	}
	l.pos += idx + 1
	return Token{Type: DIRECTIVE, Start: start, End: l.pos}, true
}

func (l *Lexer) lexServerCode() (Token, bool) {
	start := l.pos
	closer := "?>"
	if l.input[l.pos+1] == '%' {
		closer = "%>"
	}
	idx := strings.Index(l.input[l.pos:], closer)
	if idx < 0 {
		l.pos = len(l.input)
		return Token{Type: SERVERCODE, Start: start, End: l.pos}, true
	}
	l.pos += idx + len(closer)
	return Token{Type: SERVERCODE, Start: start, End: l.pos}, true
}
