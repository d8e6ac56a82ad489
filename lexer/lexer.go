package lexer

import (
	"fmt"
	"strings"
)

// Error represents a tokenization error.
type Error struct {
	Detail string
	Line   uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d)", e.Detail, e.Line)
}

// Lexer tokenizes template source code.
type Lexer struct {
	source    string
	pos       int
	line      uint32 // current line (1-indexed)
	col       uint32 // current column (0-indexed at line start)
	startPos  int
	startLine uint32
	startCol  uint32
	syntax    SyntaxConfig

	state                 lexerState
	trimLeadingWhitespace bool
	pendingMarker         *pendingMarker
}

type lexerState int

const (
	stateTemplate lexerState = iota
	stateVariable
	stateBlock
)

type startMarker int

const (
	markerVariable startMarker = iota
	markerBlock
	markerComment
)

type pendingMarker struct {
	marker startMarker
	length int // marker plus an optional trim sign
}

// New creates a new Lexer for the given input.
func New(input string, syntax SyntaxConfig) *Lexer {
	return &Lexer{
		source: input,
		line:   1,
		syntax: syntax,
	}
}

// Tokenize returns all tokens from the input.
func Tokenize(input string, syntax SyntaxConfig) ([]Token, error) {
	l := New(input, syntax)
	return l.All()
}

// All collects all tokens into a slice.
func (l *Lexer) All() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			break
		}
		tokens = append(tokens, *tok)
	}
	return tokens, nil
}

// Next returns the next token, or nil at end of input.
func (l *Lexer) Next() (*Token, error) {
	for {
		if l.atEnd() && l.pendingMarker == nil {
			if l.state != stateTemplate {
				return nil, l.errorf("unexpected end of template, tag is never closed")
			}
			return nil, nil
		}

		var tok *Token
		var err error
		var cont bool

		switch l.state {
		case stateTemplate:
			tok, cont, err = l.tokenizeRoot()
		default:
			tok, cont, err = l.tokenizeTag()
		}

		if err != nil {
			return nil, err
		}
		if cont {
			continue
		}
		if tok != nil {
			return tok, nil
		}
	}
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) errorf(format string, args ...any) error {
	return &Error{Detail: fmt.Sprintf(format, args...), Line: l.line}
}

func (l *Lexer) markStart() {
	l.startPos = l.pos
	l.startLine = l.line
	l.startCol = l.col
}

// advance consumes n bytes, tracking line and column, and returns them.
func (l *Lexer) advance(n int) string {
	text := l.source[l.pos : l.pos+n]
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
	}
	l.pos += n
	return text
}

func (l *Lexer) makeToken(typ TokenType, value string) Token {
	return Token{
		Type:  typ,
		Value: value,
		Span: Span{
			StartLine:   l.startLine,
			StartCol:    l.startCol,
			StartOffset: l.startPos,
			EndLine:     l.line,
			EndCol:      l.col,
			EndOffset:   l.pos,
		},
	}
}

type markerMatch struct {
	marker startMarker
	offset int // offset into source where the marker begins
	length int // marker plus an optional trim sign
	trim   bool
}

// findStartMarker locates the earliest tag start from the current position.
func (l *Lexer) findStartMarker() *markerMatch {
	rest := l.source[l.pos:]
	best := -1
	var match markerMatch
	candidates := []struct {
		marker startMarker
		start  string
	}{
		{markerVariable, l.syntax.VarStart},
		{markerBlock, l.syntax.BlockStart},
		{markerComment, l.syntax.CommentStart},
	}
	for _, c := range candidates {
		idx := strings.Index(rest, c.start)
		if idx < 0 || (best >= 0 && idx >= best) {
			continue
		}
		best = idx
		match = markerMatch{marker: c.marker, offset: l.pos + idx, length: len(c.start)}
		if after := match.offset + match.length; after < len(l.source) && l.source[after] == '-' {
			match.length++
			match.trim = true
		}
	}
	if best < 0 {
		return nil
	}
	return &match
}

// tokenizeRoot handles the template data state.
func (l *Lexer) tokenizeRoot() (*Token, bool, error) {
	if l.pendingMarker != nil {
		pm := l.pendingMarker
		l.pendingMarker = nil
		return l.handleStartMarker(pm.marker, pm.length)
	}

	if l.trimLeadingWhitespace {
		l.trimLeadingWhitespace = false
		l.skipWhitespace()
		if l.atEnd() {
			return nil, false, nil
		}
	}

	l.markStart()

	match := l.findStartMarker()
	if match == nil {
		text := l.advance(len(l.source) - l.pos)
		tok := l.makeToken(TokenTemplateData, text)
		return &tok, false, nil
	}

	if match.offset > l.pos {
		lead := l.advance(match.offset - l.pos)
		if match.trim {
			lead = strings.TrimRight(lead, " \t\r\n")
		}
		l.pendingMarker = &pendingMarker{marker: match.marker, length: match.length}
		if lead == "" {
			return nil, true, nil
		}
		tok := l.makeToken(TokenTemplateData, lead)
		return &tok, false, nil
	}

	return l.handleStartMarker(match.marker, match.length)
}

func (l *Lexer) handleStartMarker(marker startMarker, length int) (*Token, bool, error) {
	l.markStart()
	l.advance(length)

	switch marker {
	case markerVariable:
		l.state = stateVariable
		tok := l.makeToken(TokenVariableStart, "")
		return &tok, false, nil
	case markerBlock:
		l.state = stateBlock
		tok := l.makeToken(TokenBlockStart, "")
		return &tok, false, nil
	default:
		return nil, true, l.skipComment()
	}
}

// skipComment consumes a comment body and its end marker without
// emitting tokens.
func (l *Lexer) skipComment() error {
	idx := strings.Index(l.source[l.pos:], l.syntax.CommentEnd)
	if idx < 0 {
		return l.errorf("unterminated comment")
	}
	body := l.source[l.pos : l.pos+idx]
	l.advance(idx + len(l.syntax.CommentEnd))
	if strings.HasSuffix(body, "-") {
		l.trimLeadingWhitespace = true
	}
	return nil
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		c := l.source[l.pos]
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
		l.advance(1)
	}
}

// tokenizeTag handles the inside of a variable or block tag.
func (l *Lexer) tokenizeTag() (*Token, bool, error) {
	l.skipWhitespace()
	if l.atEnd() {
		return nil, false, l.errorf("unexpected end of template, tag is never closed")
	}

	end := l.syntax.VarEnd
	endType := TokenVariableEnd
	if l.state == stateBlock {
		end = l.syntax.BlockEnd
		endType = TokenBlockEnd
	}

	l.markStart()
	rest := l.source[l.pos:]

	// End delimiter, with optional whitespace trim sign.
	if strings.HasPrefix(rest, end) {
		l.advance(len(end))
		l.state = stateTemplate
		tok := l.makeToken(endType, "")
		return &tok, false, nil
	}
	if rest[0] == '-' && strings.HasPrefix(rest[1:], end) {
		l.advance(len(end) + 1)
		l.state = stateTemplate
		l.trimLeadingWhitespace = true
		tok := l.makeToken(endType, "")
		return &tok, false, nil
	}

	c := rest[0]
	switch {
	case isIdentStart(c):
		return l.tokenizeIdent()
	case c >= '0' && c <= '9':
		return l.tokenizeNumber(false)
	case c == '-' && len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9':
		return l.tokenizeNumber(true)
	case c == '"' || c == '\'':
		return l.tokenizeString(c)
	}

	// Operators and punctuation.
	two := ""
	if len(rest) >= 2 {
		two = rest[:2]
	}
	switch two {
	case "==":
		return l.op(TokenEq, 2)
	case "!=":
		return l.op(TokenNe, 2)
	case "<=":
		return l.op(TokenLe, 2)
	case ">=":
		return l.op(TokenGe, 2)
	}
	switch c {
	case '<':
		return l.op(TokenLt, 1)
	case '>':
		return l.op(TokenGt, 1)
	case '=':
		return l.op(TokenAssign, 1)
	case '.':
		return l.op(TokenDot, 1)
	case ',':
		return l.op(TokenComma, 1)
	case '(':
		return l.op(TokenParenOpen, 1)
	case ')':
		return l.op(TokenParenClose, 1)
	case '[':
		return l.op(TokenBracketOpen, 1)
	case ']':
		return l.op(TokenBracketClose, 1)
	}

	return nil, false, l.errorf("unexpected character %q", rune(c))
}

func (l *Lexer) op(typ TokenType, n int) (*Token, bool, error) {
	l.advance(n)
	tok := l.makeToken(typ, "")
	return &tok, false, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *Lexer) tokenizeIdent() (*Token, bool, error) {
	n := 1
	for l.pos+n < len(l.source) && isIdentCont(l.source[l.pos+n]) {
		n++
	}
	text := l.advance(n)
	tok := l.makeToken(TokenIdent, text)
	return &tok, false, nil
}

func (l *Lexer) tokenizeNumber(negative bool) (*Token, bool, error) {
	n := 0
	if negative {
		n = 1
	}
	isFloat := false
	for l.pos+n < len(l.source) {
		c := l.source[l.pos+n]
		if c >= '0' && c <= '9' {
			n++
			continue
		}
		if c == '.' && !isFloat && l.pos+n+1 < len(l.source) &&
			l.source[l.pos+n+1] >= '0' && l.source[l.pos+n+1] <= '9' {
			isFloat = true
			n++
			continue
		}
		break
	}
	text := l.advance(n)
	typ := TokenInteger
	if isFloat {
		typ = TokenFloat
	}
	tok := l.makeToken(typ, text)
	return &tok, false, nil
}

func (l *Lexer) tokenizeString(quote byte) (*Token, bool, error) {
	var b strings.Builder
	n := 1
	for {
		if l.pos+n >= len(l.source) {
			return nil, false, l.errorf("unterminated string")
		}
		c := l.source[l.pos+n]
		if c == quote {
			n++
			break
		}
		if c == '\\' {
			if l.pos+n+1 >= len(l.source) {
				return nil, false, l.errorf("unterminated string")
			}
			esc := l.source[l.pos+n+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteByte(esc)
			default:
				return nil, false, l.errorf("invalid string escape \\%c", esc)
			}
			n += 2
			continue
		}
		b.WriteByte(c)
		n++
	}
	l.advance(n)
	tok := l.makeToken(TokenString, b.String())
	return &tok, false, nil
}
