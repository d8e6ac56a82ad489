package parser

import (
	"fmt"

	"github.com/go-pastiche/pastiche/lexer"
)

// parseMacroTag parses `{% macro NAME p1 p2 k1="d1" %} ... {% endmacro %}`
// and registers the definition in the parser's macro registry.
// Redefining a name silently overwrites the earlier definition.
func parseMacroTag(p *Parser, span Span) (Stmt, *Error) {
	name, _, err := p.expectIdent("macro name")
	if err != nil {
		return nil, err
	}

	var params []string
	var kwargs []KwargDefault
	for !p.matches(lexer.TokenBlockEnd) {
		param, _, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		if p.skip(lexer.TokenAssign) {
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			kwargs = append(kwargs, KwargDefault{Name: param, Default: def})
		} else {
			params = append(params, param)
		}
	}

	p.advance() // consume block end

	body, err := p.subparse(endKeyword("endmacro"))
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endmacro`")
	}

	macro := &Macro{
		Name:   name,
		Params: params,
		Kwargs: kwargs,
		Body:   body,
		span:   p.expandSpan(span),
	}
	p.Macros[name] = macro
	return macro, nil
}

// lookupMacro resolves a macro name at parse time. An unknown name is
// a fatal syntax error, never an empty render.
func (p *Parser) lookupMacro(name string) (*Macro, *Error) {
	macro, ok := p.Macros[name]
	if !ok {
		return nil, p.syntaxError(fmt.Sprintf("macro '%s' is not defined", name))
	}
	return macro, nil
}

// parseUseMacroTag parses `{% use_macro NAME a1 a2 k1="v1" %}`.
func parseUseMacroTag(p *Parser, span Span) (Stmt, *Error) {
	name, _, err := p.expectIdent("macro name")
	if err != nil {
		return nil, err
	}
	macro, err := p.lookupMacro(name)
	if err != nil {
		return nil, err
	}

	var args []Expr
	var kwargs []PassedKwarg
	for !p.matches(lexer.TokenBlockEnd) {
		// An identifier directly followed by `=` starts a keyword
		// argument; anything else is a positional expression.
		if cur, next := p.current(), p.peek(1); cur != nil && next != nil &&
			cur.Type == lexer.TokenIdent && next.Type == lexer.TokenAssign {
			p.advance()
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			kwargs = append(kwargs, PassedKwarg{Name: cur.Value, Value: val})
			continue
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	return &UseMacro{
		Name:   name,
		Macro:  macro,
		Args:   args,
		Kwargs: kwargs,
		span:   p.expandSpan(span),
	}, nil
}

// parseMacroBlockTag parses the block-style invocation:
//
//	{% macro_block NAME %}
//	  {% macro_arg %}...{% endmacro_arg %}
//	  {% macro_kwarg KEY %}...{% endmacro_kwarg %}
//	{% endmacro_block %}
//
// Argument values are whole template fragments, rendered at call time.
// Template data between the argument blocks is ignored.
func parseMacroBlockTag(p *Parser, span Span) (Stmt, *Error) {
	name, _, err := p.expectIdent("macro name")
	if err != nil {
		return nil, err
	}
	macro, err := p.lookupMacro(name)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}

	wasInMacroBlock := p.inMacroBlock
	p.inMacroBlock = true
	children, err := p.subparse(endKeyword("endmacro_block"))
	p.inMacroBlock = wasInMacroBlock
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endmacro_block`")
	}

	block := &MacroBlock{
		Name:  name,
		Macro: macro,
		span:  p.expandSpan(span),
	}
	for _, child := range children {
		switch st := child.(type) {
		case *MacroArg:
			block.Args = append(block.Args, st)
		case *MacroKwarg:
			block.Kwargs = append(block.Kwargs, st)
		case *EmitRaw:
			// filler between argument blocks
		default:
			return nil, &Error{
				Kind:   "SyntaxError",
				Detail: "only macro_arg and macro_kwarg tags may appear inside a macro_block",
				Name:   p.filename,
				Line:   child.Span().StartLine,
			}
		}
	}
	return block, nil
}

// parseMacroArgTag parses one positional block-style argument. Valid
// only inside a macro_block container.
func parseMacroArgTag(p *Parser, span Span) (Stmt, *Error) {
	if !p.inMacroBlock {
		return nil, p.syntaxError("macro_arg may only appear inside a macro_block tag")
	}
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endKeyword("endmacro_arg"))
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endmacro_arg`")
	}
	return &MacroArg{Body: body, span: p.expandSpan(span)}, nil
}

// parseMacroKwargTag parses one keyword block-style argument. Valid
// only inside a macro_block container.
func parseMacroKwargTag(p *Parser, span Span) (Stmt, *Error) {
	if !p.inMacroBlock {
		return nil, p.syntaxError("macro_kwarg may only appear inside a macro_block tag")
	}
	key, _, err := p.expectIdent("keyword name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenBlockEnd, "end of block"); err != nil {
		return nil, err
	}
	body, err := p.subparse(endKeyword("endmacro_kwarg"))
	if err != nil {
		return nil, err
	}
	if tok := p.advance(); tok == nil {
		return nil, p.unexpectedEOF("`endmacro_kwarg`")
	}
	return &MacroKwarg{Name: key, Body: body, span: p.expandSpan(span)}, nil
}

// parseLoadMacrosTag parses `{% loadmacros "file" %}`: the referenced
// source is fetched through the configured loader, parsed with the
// same config, and its macro definitions are merged into this parse's
// registry. Nothing else from the loaded source is kept.
func parseLoadMacrosTag(p *Parser, span Span) (Stmt, *Error) {
	tok := p.advance()
	if tok == nil || tok.Type != lexer.TokenString {
		return nil, p.syntaxError("malformed arguments to the loadmacros tag, argument must be in quotes")
	}
	path := tok.Value
	if !p.matches(lexer.TokenBlockEnd) {
		return nil, p.syntaxError("'loadmacros' tag takes only one argument")
	}

	if p.cfg.Loader == nil {
		return nil, p.syntaxError(fmt.Sprintf("cannot load macros from %q, no template loader configured", path))
	}
	if p.cfg.loadDepth >= maxLoadDepth {
		return nil, p.syntaxError(fmt.Sprintf("macro loads nest too deeply at %q, possible circular loadmacros", path))
	}
	source, err := p.cfg.Loader(path)
	if err != nil {
		return nil, p.syntaxError(fmt.Sprintf("could not load macros from %q: %s", path, err))
	}

	subCfg := p.cfg
	subCfg.loadDepth++
	_, sub, perr := parseSource(source, path, subCfg)
	if perr != nil {
		return nil, perr
	}
	for name, macro := range sub.Macros {
		p.Macros[name] = macro
	}

	return &LoadMacros{Path: path, span: p.expandSpan(span)}, nil
}
