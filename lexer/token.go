// Package lexer provides tokenization for pastiche templates.
package lexer

import "fmt"

// TokenType represents the type of a token.
type TokenType int

const (
	// Template data (raw text between tags)
	TokenTemplateData TokenType = iota

	// Delimiters
	TokenVariableStart // {{
	TokenVariableEnd   // }}
	TokenBlockStart    // {%
	TokenBlockEnd      // %}

	// Literals
	TokenIdent   // identifier
	TokenString  // "string" or 'string'
	TokenInteger // 123
	TokenFloat   // 123.45

	// Comparison
	TokenEq // ==
	TokenNe // !=
	TokenLt // <
	TokenLe // <=
	TokenGt // >
	TokenGe // >=

	// Assignment
	TokenAssign // =

	// Punctuation
	TokenDot          // .
	TokenComma        // ,
	TokenParenOpen    // (
	TokenParenClose   // )
	TokenBracketOpen  // [
	TokenBracketClose // ]
)

func (t TokenType) String() string {
	switch t {
	case TokenTemplateData:
		return "template data"
	case TokenVariableStart:
		return "start of variable block"
	case TokenVariableEnd:
		return "end of variable block"
	case TokenBlockStart:
		return "start of block"
	case TokenBlockEnd:
		return "end of block"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenInteger:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenEq:
		return "`==`"
	case TokenNe:
		return "`!=`"
	case TokenLt:
		return "`<`"
	case TokenLe:
		return "`<=`"
	case TokenGt:
		return "`>`"
	case TokenGe:
		return "`>=`"
	case TokenAssign:
		return "`=`"
	case TokenDot:
		return "`.`"
	case TokenComma:
		return "`,`"
	case TokenParenOpen:
		return "`(`"
	case TokenParenClose:
		return "`)`"
	case TokenBracketOpen:
		return "`[`"
	case TokenBracketClose:
		return "`]`"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token represents a single token from the lexer.
type Token struct {
	Type  TokenType
	Value string // the token value (for idents, strings, numbers, template data)
	Span  Span   // source location
}

// Span represents a location range in source code.
type Span struct {
	StartLine   uint32
	StartCol    uint32
	StartOffset int
	EndLine     uint32
	EndCol      uint32
	EndOffset   int
}
