package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-pastiche/pastiche/lexer"
)

const (
	maxRecursion = 150
	maxLoadDepth = 16
)

// Error represents a parse error.
type Error struct {
	Kind   string
	Detail string
	Name   string
	Line   uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (in %s, line %d)", e.Kind, e.Detail, e.Name, e.Line)
}

// Config carries everything a parse pass needs besides the source
// itself: the tag delimiters and an optional loader used by the
// loadmacros tag to pull in secondary sources.
type Config struct {
	Syntax lexer.SyntaxConfig
	Loader func(name string) (string, error)

	// loadDepth counts nested loadmacros parses so a circular load
	// fails with a syntax error instead of overflowing the stack.
	loadDepth int
}

// DefaultConfig returns a Config with the default syntax and no loader.
func DefaultConfig() Config {
	return Config{Syntax: lexer.DefaultSyntax()}
}

// tagFunc parses the body of a single tag. The tag keyword has already
// been consumed; span is its location.
type tagFunc func(p *Parser, span Span) (Stmt, *Error)

// tagTable maps tag keywords to their parse handlers. It is built once
// at package initialization; tag dispatch is a plain map lookup. The
// table is populated in init rather than declared with a composite
// literal: the handlers reach back into the table through parseStmt,
// and a literal would form an initialization cycle.
var tagTable map[string]tagFunc

func init() {
	tagTable = map[string]tagFunc{
		"if":      parseIfTag,
		"for":     parseForTag,
		"block":   parseBlockTag,
		"extends": parseExtendsTag,
		"include": parseIncludeTag,

		"macro":       parseMacroTag,
		"use_macro":   parseUseMacroTag,
		"macro_block": parseMacroBlockTag,
		"macro_arg":   parseMacroArgTag,
		"macro_kwarg": parseMacroKwargTag,
		"loadmacros":  parseLoadMacrosTag,

		"repeatedblock": parseRepeatedBlockTag,
		"repeat":        parseRepeatTag,
	}
}

// Parser parses pastiche templates.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	filename string
	cfg      Config

	// Macros holds every macro definition seen (or loaded) so far in
	// this parse pass, keyed by name. Later definitions overwrite
	// earlier ones.
	Macros map[string]*Macro

	// RepeatedBlocks holds every repeatedblock definition seen so far
	// in this parse pass, keyed by name.
	RepeatedBlocks map[string]*Block

	blocks       map[string]bool
	inMacroBlock bool
	depth        int
	lastSpan     Span
}

// NewParser creates a parser over a token stream. The macro and
// repeated-block registries are initialized upfront and live exactly
// as long as the parser.
func NewParser(tokens []lexer.Token, filename string, cfg Config) *Parser {
	return &Parser{
		tokens:         tokens,
		filename:       filename,
		cfg:            cfg,
		Macros:         make(map[string]*Macro),
		RepeatedBlocks: make(map[string]*Block),
		blocks:         make(map[string]bool),
	}
}

// Parse parses a template string and returns the AST or an error.
func Parse(source, filename string, cfg Config) (*Template, error) {
	tmpl, _, perr := parseSource(source, filename, cfg)
	if perr != nil {
		return nil, perr
	}
	return tmpl, nil
}

// parseSource parses and also exposes the parser, so callers can read
// the registries it accumulated (used by loadmacros).
func parseSource(source, filename string, cfg Config) (*Template, *Parser, *Error) {
	tokens, err := lexer.Tokenize(source, cfg.Syntax)
	if err != nil {
		perr := &Error{Kind: "SyntaxError", Detail: err.Error(), Name: filename, Line: 1}
		var lexErr *lexer.Error
		if errors.As(err, &lexErr) {
			perr.Detail = lexErr.Detail
			perr.Line = lexErr.Line
		}
		return nil, nil, perr
	}

	p := NewParser(tokens, filename, cfg)
	tmpl, perr := p.parse()
	if perr != nil {
		return nil, nil, perr
	}
	return tmpl, p, nil
}

func (p *Parser) parse() (*Template, *Error) {
	span := Span{StartLine: 1}
	children, err := p.subparse(func(tok lexer.Token) bool { return false })
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok != nil {
		return nil, p.syntaxError(fmt.Sprintf("unexpected %s", tokenDescription(tok)))
	}
	return &Template{
		Children: children,
		span:     p.expandSpan(span),
	}, nil
}

func (p *Parser) current() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) peek(n int) *lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos+n]
}

func (p *Parser) advance() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	tok := &p.tokens[p.pos]
	p.lastSpan = tok.Span
	p.pos++
	return tok
}

func (p *Parser) currentSpan() Span {
	if tok := p.current(); tok != nil {
		return tok.Span
	}
	return p.lastSpan
}

func (p *Parser) expandSpan(start Span) Span {
	return Span{
		StartLine:   start.StartLine,
		StartCol:    start.StartCol,
		StartOffset: start.StartOffset,
		EndLine:     p.lastSpan.EndLine,
		EndCol:      p.lastSpan.EndCol,
		EndOffset:   p.lastSpan.EndOffset,
	}
}

func (p *Parser) syntaxError(msg string) *Error {
	span := p.currentSpan()
	return &Error{
		Kind:   "SyntaxError",
		Detail: msg,
		Name:   p.filename,
		Line:   span.StartLine,
	}
}

func (p *Parser) unexpected(got string, expected string) *Error {
	return p.syntaxError(fmt.Sprintf("unexpected %s, expected %s", got, expected))
}

func (p *Parser) unexpectedEOF(expected string) *Error {
	return p.syntaxError(fmt.Sprintf("unexpected end of input, expected %s", expected))
}

func (p *Parser) expect(typ lexer.TokenType, expected string) (*lexer.Token, *Error) {
	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF(expected)
	}
	if tok.Type != typ {
		return nil, p.unexpected(tokenDescription(tok), expected)
	}
	return tok, nil
}

func (p *Parser) expectIdent(expected string) (string, Span, *Error) {
	tok, err := p.expect(lexer.TokenIdent, expected)
	if err != nil {
		return "", Span{}, err
	}
	return tok.Value, tok.Span, nil
}

func (p *Parser) expectKeyword(kw string, expected string) *Error {
	tok := p.advance()
	if tok == nil {
		return p.unexpectedEOF(expected)
	}
	if tok.Type != lexer.TokenIdent || tok.Value != kw {
		return p.unexpected(tokenDescription(tok), expected)
	}
	return nil
}

func (p *Parser) skip(typ lexer.TokenType) bool {
	if p.matches(typ) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipKeyword(kw string) bool {
	if p.matchesKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matches(typ lexer.TokenType) bool {
	tok := p.current()
	return tok != nil && tok.Type == typ
}

func (p *Parser) matchesKeyword(kw string) bool {
	tok := p.current()
	return tok != nil && tok.Type == lexer.TokenIdent && tok.Value == kw
}

func tokenDescription(tok *lexer.Token) string {
	if tok == nil {
		return "end of input"
	}
	switch tok.Type {
	case lexer.TokenIdent:
		return fmt.Sprintf("`%s`", tok.Value)
	case lexer.TokenString:
		return fmt.Sprintf("string %q", tok.Value)
	case lexer.TokenInteger, lexer.TokenFloat:
		return fmt.Sprintf("number %s", tok.Value)
	default:
		return tok.Type.String()
	}
}

// subparse consumes statements until endCheck matches the tag keyword
// of a block. It leaves the parser positioned at the matched keyword,
// with its BlockStart already consumed.
func (p *Parser) subparse(endCheck func(lexer.Token) bool) ([]Stmt, *Error) {
	var stmts []Stmt

	for {
		tok := p.advance()
		if tok == nil {
			break
		}

		switch tok.Type {
		case lexer.TokenTemplateData:
			stmts = append(stmts, &EmitRaw{Raw: tok.Value, span: tok.Span})

		case lexer.TokenVariableStart:
			span := tok.Span
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, &EmitExpr{Expr: expr, span: p.expandSpan(span)})
			if _, err := p.expect(lexer.TokenVariableEnd, "end of variable block"); err != nil {
				return nil, err
			}

		case lexer.TokenBlockStart:
			if current := p.current(); current == nil {
				return nil, p.syntaxError("unexpected end of input, expected keyword")
			} else if endCheck(*current) {
				return stmts, nil
			}
			stmt, err := p.parseStmt()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, stmt)
			if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
				return nil, err
			}

		default:
			// This shouldn't happen with well-formed lexer output
			return nil, p.syntaxError(fmt.Sprintf("unexpected token %s", tok.Type))
		}
	}

	return stmts, nil
}

// endKeyword builds an endCheck for subparse matching a single keyword.
func endKeyword(kw string) func(lexer.Token) bool {
	return func(tok lexer.Token) bool {
		return tok.Type == lexer.TokenIdent && tok.Value == kw
	}
}

func endKeywords(kws ...string) func(lexer.Token) bool {
	return func(tok lexer.Token) bool {
		if tok.Type != lexer.TokenIdent {
			return false
		}
		for _, kw := range kws {
			if tok.Value == kw {
				return true
			}
		}
		return false
	}
}

// parseStmt dispatches a tag keyword through the tag table.
func (p *Parser) parseStmt() (Stmt, *Error) {
	p.depth++
	if p.depth > maxRecursion {
		return nil, p.syntaxError("template exceeds maximum recursion limits")
	}
	defer func() { p.depth-- }()

	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF("block keyword")
	}
	if tok.Type != lexer.TokenIdent {
		return nil, p.unexpected(tokenDescription(tok), "statement")
	}

	handler, ok := tagTable[tok.Value]
	if !ok {
		return nil, p.syntaxError(fmt.Sprintf("unknown statement %s", tok.Value))
	}
	return handler(p, tok.Span)
}

// --- Core tag handlers ---

func parseIfTag(p *Parser, span Span) (Stmt, *Error) {
	return p.parseIfBody(span)
}

func (p *Parser) parseIfBody(span Span) (*IfCond, *Error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	trueBody, err := p.subparse(endKeywords("elif", "else", "endif"))
	if err != nil {
		return nil, err
	}

	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF("`endif`")
	}

	var falseBody []Stmt
	switch tok.Value {
	case "elif":
		nested, err := p.parseIfBody(tok.Span)
		if err != nil {
			return nil, err
		}
		falseBody = []Stmt{nested}
	case "else":
		if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
			return nil, err
		}
		falseBody, err = p.subparse(endKeyword("endif"))
		if err != nil {
			return nil, err
		}
		if tok := p.advance(); tok == nil {
			return nil, p.unexpectedEOF("`endif`")
		}
	}

	return &IfCond{
		Expr:      expr,
		TrueBody:  trueBody,
		FalseBody: falseBody,
		span:      p.expandSpan(span),
	}, nil
}

func parseForTag(p *Parser, span Span) (Stmt, *Error) {
	target, _, err := p.expectIdent("identifier")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in", "`in`"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endKeyword("endfor"))
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endfor`")
	}
	return &ForLoop{
		Target: target,
		Iter:   iter,
		Body:   body,
		span:   p.expandSpan(span),
	}, nil
}

func parseBlockTag(p *Parser, span Span) (Stmt, *Error) {
	return p.parseBlockBody("block", span, true)
}

// parseBlockBody parses `NAME %} ... {% endblock [NAME] %}`. Plain
// block tags reject duplicate names; repeatedblock definitions may
// overwrite an earlier definition of the same name.
func (p *Parser) parseBlockBody(tagName string, span Span, checkDuplicate bool) (*Block, *Error) {
	name, _, err := p.expectIdent("identifier")
	if err != nil {
		return nil, err
	}
	if !p.matches(lexer.TokenBlockEnd) {
		return nil, p.syntaxError(fmt.Sprintf("'%s' tag takes only one argument", tagName))
	}

	if checkDuplicate && p.blocks[name] {
		return nil, p.syntaxError(fmt.Sprintf("block '%s' defined twice", name))
	}
	p.blocks[name] = true

	p.advance() // consume block end

	body, err := p.subparse(endKeyword("endblock"))
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endblock`")
	}

	// Optional trailing block name
	if tok := p.current(); tok != nil && tok.Type == lexer.TokenIdent {
		if tok.Value != name {
			return nil, p.syntaxError(fmt.Sprintf("mismatching name on block. Got `%s`, expected `%s`", tok.Value, name))
		}
		p.advance()
	}

	return &Block{Name: name, Body: body, span: p.expandSpan(span)}, nil
}

func parseExtendsTag(p *Parser, span Span) (Stmt, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Extends{Name: name, span: p.expandSpan(span)}, nil
}

func parseIncludeTag(p *Parser, span Span) (Stmt, *Error) {
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Include{Name: name, span: p.expandSpan(span)}, nil
}

// --- Expressions ---

func (p *Parser) parseExpr() (Expr, *Error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, *Error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchesKeyword("or") {
		span := p.currentSpan()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: OpOr, Left: left, Right: right, span: p.expandSpan(span)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, *Error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchesKeyword("and") {
		span := p.currentSpan()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Op: OpAnd, Left: left, Right: right, span: p.expandSpan(span)}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, *Error) {
	if p.matchesKeyword("not") {
		span := p.currentSpan()
		p.advance()
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: expr, span: p.expandSpan(span)}, nil
	}
	return p.parseCompare()
}

var compareOps = map[lexer.TokenType]BinOpKind{
	lexer.TokenEq: OpEq,
	lexer.TokenNe: OpNe,
	lexer.TokenLt: OpLt,
	lexer.TokenLe: OpLe,
	lexer.TokenGt: OpGt,
	lexer.TokenGe: OpGe,
}

func (p *Parser) parseCompare() (Expr, *Error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok := p.current()
	if tok == nil {
		return left, nil
	}
	op, ok := compareOps[tok.Type]
	if !ok {
		return left, nil
	}
	span := tok.Span
	p.advance()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &BinOp{Op: op, Left: left, Right: right, span: p.expandSpan(span)}, nil
}

func (p *Parser) parseOperand() (Expr, *Error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(expr)
}

func (p *Parser) parsePostfix(expr Expr) (Expr, *Error) {
	for {
		switch {
		case p.matches(lexer.TokenDot):
			span := p.currentSpan()
			p.advance()
			name, _, err := p.expectIdent("identifier")
			if err != nil {
				return nil, err
			}
			expr = &GetAttr{Expr: expr, Name: name, span: p.expandSpan(span)}

		case p.matches(lexer.TokenBracketOpen):
			span := p.currentSpan()
			p.advance()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenBracketClose, "`]`"); err != nil {
				return nil, err
			}
			expr = &GetItem{Expr: expr, Index: index, span: p.expandSpan(span)}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, *Error) {
	tok := p.advance()
	if tok == nil {
		return nil, p.unexpectedEOF("expression")
	}
	span := tok.Span

	switch tok.Type {
	case lexer.TokenString:
		return &Const{Value: tok.Value, span: span}, nil

	case lexer.TokenInteger:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.syntaxError(fmt.Sprintf("invalid integer %q", tok.Value))
		}
		return &Const{Value: n, span: span}, nil

	case lexer.TokenFloat:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.syntaxError(fmt.Sprintf("invalid float %q", tok.Value))
		}
		return &Const{Value: f, span: span}, nil

	case lexer.TokenIdent:
		switch tok.Value {
		case "true", "True":
			return &Const{Value: true, span: span}, nil
		case "false", "False":
			return &Const{Value: false, span: span}, nil
		case "none", "None":
			return &Const{Value: nil, span: span}, nil
		}
		return &Var{ID: tok.Value, span: span}, nil

	case lexer.TokenParenOpen:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenParenClose, "`)`"); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.unexpected(tokenDescription(tok), "expression")
	}
}
