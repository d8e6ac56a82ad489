package parser

import (
	"fmt"

	"github.com/go-pastiche/pastiche/lexer"
)

// parseRepeatedBlockTag parses `{% repeatedblock NAME %} ... {% endblock %}`.
// The content parses as an ordinary block, so inheritance and overrides
// apply to it exactly as they would to a block tag; in addition the
// block node is stored in the parser's repeated-block registry so that
// later repeat tags can replay it. Redefining a name overwrites the
// registry entry: references parsed after the redefinition use the new
// content.
func parseRepeatedBlockTag(p *Parser, span Span) (Stmt, *Error) {
	block, err := p.parseBlockBody("repeatedblock", span, false)
	if err != nil {
		return nil, err
	}
	p.RepeatedBlocks[block.Name] = block
	return block, nil
}

// parseRepeatTag parses `{% repeat NAME %}`. The name must have been
// defined by a repeatedblock tag earlier in the same parse pass;
// otherwise this is a fatal syntax error.
func parseRepeatTag(p *Parser, span Span) (Stmt, *Error) {
	name, _, err := p.expectIdent("block name")
	if err != nil {
		return nil, err
	}
	if !p.matches(lexer.TokenBlockEnd) {
		return nil, p.syntaxError("'repeat' tag takes only one argument")
	}

	block, ok := p.RepeatedBlocks[name]
	if !ok {
		return nil, p.syntaxError(fmt.Sprintf("no repeated block '%s' was found before the 'repeat' tag", name))
	}
	return &Repeat{Name: name, Block: block, span: p.expandSpan(span)}, nil
}
