package pastiche

import (
	"fmt"
	"strings"

	"github.com/go-pastiche/pastiche/parser"
)

const maxRecursion = 100

// State holds the evaluation state during template rendering.
type State struct {
	env    *Environment
	name   string
	ctx    any
	scopes []map[string]any
	blocks map[string]*blockStack
	out    *strings.Builder
	depth  int
}

// blockStack manages the inheritance chain for a single block
type blockStack struct {
	layers [][]parser.Stmt // stack of block implementations (child first)
}

func newState(env *Environment, name string, ctx any) *State {
	return &State{
		env:    env,
		name:   name,
		ctx:    ctx,
		scopes: []map[string]any{make(map[string]any)},
		blocks: make(map[string]*blockStack),
		out:    &strings.Builder{},
	}
}

// Lookup resolves a name against the scope stack, then the render
// context, then the environment globals. Unknown names resolve to nil,
// which renders as the empty string.
func (s *State) Lookup(name string) any {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if val, ok := s.scopes[i][name]; ok {
			return val
		}
	}
	if val, ok := attrLookup(s.ctx, name); ok {
		return val
	}
	if val, ok := s.env.getGlobal(name); ok {
		return val
	}
	return nil
}

// Set binds a name in the innermost scope.
func (s *State) Set(name string, val any) {
	s.scopes[len(s.scopes)-1][name] = val
}

func (s *State) pushScope() {
	s.scopes = append(s.scopes, make(map[string]any))
}

func (s *State) popScope() {
	if len(s.scopes) > 1 {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

func (s *State) eval(tmpl *parser.Template) (string, error) {
	// If this template extends another, collect its block overrides
	// first, then hand rendering over to the parent chain.
	var extendsStmt *parser.Extends
	for _, stmt := range tmpl.Children {
		if ext, ok := stmt.(*parser.Extends); ok {
			extendsStmt = ext
			break
		}
	}

	if extendsStmt != nil {
		for _, stmt := range tmpl.Children {
			if block, ok := stmt.(*parser.Block); ok {
				s.blocks[block.Name] = &blockStack{
					layers: [][]parser.Stmt{block.Body},
				}
			}
		}
		if err := s.evalExtends(extendsStmt); err != nil && err != errExtendsExecuted {
			return "", err
		}
		return s.out.String(), nil
	}

	for _, stmt := range tmpl.Children {
		if err := s.evalStmt(stmt); err != nil {
			return "", err
		}
	}
	return s.out.String(), nil
}

func (s *State) evalStmt(stmt parser.Stmt) error {
	switch st := stmt.(type) {
	case *parser.EmitRaw:
		s.out.WriteString(st.Raw)
		return nil

	case *parser.EmitExpr:
		val, err := s.evalExpr(st.Expr)
		if err != nil {
			return err
		}
		s.out.WriteString(stringify(val))
		return nil

	case *parser.IfCond:
		return s.evalIfCond(st)

	case *parser.ForLoop:
		return s.evalForLoop(st)

	case *parser.Block:
		return s.evalBlock(st)

	case *parser.Extends:
		return s.evalExtends(st)

	case *parser.Include:
		return s.evalInclude(st)

	case *parser.Macro:
		// definitions render as the empty string
		return nil

	case *parser.LoadMacros:
		// the merge happened at parse time
		return nil

	case *parser.UseMacro:
		return s.evalUseMacro(st)

	case *parser.MacroBlock:
		return s.evalMacroBlock(st)

	case *parser.Repeat:
		return s.evalBlock(st.Block)

	default:
		return fmt.Errorf("unsupported statement type: %T", stmt)
	}
}

// errExtendsExecuted signals that extends was executed
var errExtendsExecuted = fmt.Errorf("extends executed")

func (s *State) evalExtends(ext *parser.Extends) error {
	nameVal, err := s.evalExpr(ext.Name)
	if err != nil {
		return err
	}
	name, ok := nameVal.(string)
	if !ok {
		return NewError(ErrInvalidOperation, "extends name must be a string").WithName(s.name)
	}

	parentTmpl, err := s.env.GetTemplate(name)
	if err != nil {
		return err
	}

	s.depth++
	if s.depth > maxRecursion {
		return NewError(ErrInvalidOperation, "recursion limit exceeded").WithName(s.name)
	}
	defer func() { s.depth-- }()

	// Collect parent blocks as fallback layers (child layers come
	// first), and check whether the parent extends further up.
	var parentExtendsStmt *parser.Extends
	for _, stmt := range parentTmpl.compiled.ast.Children {
		switch st := stmt.(type) {
		case *parser.Extends:
			if parentExtendsStmt == nil {
				parentExtendsStmt = st
			}
		case *parser.Block:
			if bs, exists := s.blocks[st.Name]; exists {
				bs.layers = append(bs.layers, st.Body)
			} else {
				s.blocks[st.Name] = &blockStack{
					layers: [][]parser.Stmt{st.Body},
				}
			}
		}
	}

	if parentExtendsStmt != nil {
		if err := s.evalExtends(parentExtendsStmt); err != nil && err != errExtendsExecuted {
			return err
		}
		return errExtendsExecuted
	}

	// Render the root parent template
	for _, stmt := range parentTmpl.compiled.ast.Children {
		if _, isExtends := stmt.(*parser.Extends); isExtends {
			continue
		}
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return errExtendsExecuted
}

// evalBlock renders a block, preferring the child-most override layer
// collected from the inheritance chain. A repeat tag funnels through
// here as well, so overrides apply to repeats identically.
func (s *State) evalBlock(block *parser.Block) error {
	body := block.Body
	if bs := s.blocks[block.Name]; bs != nil && len(bs.layers) > 0 {
		body = bs.layers[0]
	}

	s.pushScope()
	defer s.popScope()
	for _, stmt := range body {
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalInclude(inc *parser.Include) error {
	nameVal, err := s.evalExpr(inc.Name)
	if err != nil {
		return err
	}
	name, ok := nameVal.(string)
	if !ok {
		return NewError(ErrInvalidOperation, "include name must be a string").WithName(s.name)
	}

	tmpl, err := s.env.GetTemplate(name)
	if err != nil {
		return err
	}

	s.depth++
	if s.depth > maxRecursion {
		return NewError(ErrInvalidOperation, "recursion limit exceeded").WithName(s.name)
	}
	defer func() { s.depth-- }()

	childState := &State{
		env:    s.env,
		name:   tmpl.compiled.name,
		ctx:    s.ctx,
		scopes: s.scopes, // share scopes
		blocks: make(map[string]*blockStack),
		out:    s.out, // share output
		depth:  s.depth,
	}
	_, err = childState.eval(tmpl.compiled.ast)
	return err
}

func (s *State) evalIfCond(cond *parser.IfCond) error {
	val, err := s.evalExpr(cond.Expr)
	if err != nil {
		return err
	}
	body := cond.FalseBody
	if truthy(val) {
		body = cond.TrueBody
	}
	s.pushScope()
	defer s.popScope()
	for _, stmt := range body {
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalForLoop(loop *parser.ForLoop) error {
	iterVal, err := s.evalExpr(loop.Iter)
	if err != nil {
		return err
	}
	items, ok := iterate(iterVal)
	if !ok {
		return NewError(ErrInvalidOperation, fmt.Sprintf("%T is not iterable", iterVal)).
			WithSpan(loop.Span()).WithName(s.name)
	}

	for i, item := range items {
		s.pushScope()
		s.Set(loop.Target, item)
		s.Set("loop", map[string]any{
			"index":  i + 1,
			"index0": i,
			"first":  i == 0,
			"last":   i == len(items)-1,
			"length": len(items),
		})
		for _, stmt := range loop.Body {
			if err := s.evalStmt(stmt); err != nil {
				s.popScope()
				return err
			}
		}
		s.popScope()
	}
	return nil
}

// renderFragment evaluates statements into a separate buffer and
// returns the produced text.
func (s *State) renderFragment(stmts []parser.Stmt) (string, error) {
	oldOut := s.out
	s.out = &strings.Builder{}
	for _, stmt := range stmts {
		if err := s.evalStmt(stmt); err != nil {
			s.out = oldOut
			return "", err
		}
	}
	result := s.out.String()
	s.out = oldOut
	return result, nil
}

func (s *State) evalUseMacro(use *parser.UseMacro) error {
	args := make([]any, len(use.Args))
	for i, argExpr := range use.Args {
		val, err := s.evalExpr(argExpr)
		if err != nil {
			return err
		}
		args[i] = val
	}
	kwargs := make(map[string]any, len(use.Kwargs))
	for _, kw := range use.Kwargs {
		val, err := s.evalExpr(kw.Value)
		if err != nil {
			return err
		}
		kwargs[kw.Name] = val
	}
	return s.invokeMacro(use.Macro, args, kwargs)
}

func (s *State) evalMacroBlock(block *parser.MacroBlock) error {
	args := make([]any, len(block.Args))
	for i, arg := range block.Args {
		text, err := s.renderFragment(arg.Body)
		if err != nil {
			return err
		}
		args[i] = text
	}
	kwargs := make(map[string]any, len(block.Kwargs))
	for _, kw := range block.Kwargs {
		text, err := s.renderFragment(kw.Body)
		if err != nil {
			return err
		}
		kwargs[kw.Name] = text
	}
	return s.invokeMacro(block.Macro, args, kwargs)
}

// invokeMacro binds arguments and renders the macro body in a child
// scope of the invocation context. Binding never fails on arity
// mismatch: missing positional parameters become empty strings, extra
// arguments fill keyword parameters that were not passed by name (in
// declaration order), and anything left over is dropped.
func (s *State) invokeMacro(macro *parser.Macro, args []any, kwargs map[string]any) error {
	s.pushScope()
	defer s.popScope()

	for i, param := range macro.Params {
		if i < len(args) {
			s.Set(param, args[i])
		} else {
			s.Set(param, "")
		}
	}

	var extra []any
	if len(args) > len(macro.Params) {
		extra = args[len(macro.Params):]
	}
	for _, kw := range macro.Kwargs {
		if val, ok := kwargs[kw.Name]; ok {
			s.Set(kw.Name, val)
			continue
		}
		if len(extra) > 0 {
			s.Set(kw.Name, extra[0])
			extra = extra[1:]
			continue
		}
		def, err := s.evalExpr(kw.Default)
		if err != nil {
			return err
		}
		s.Set(kw.Name, def)
	}

	for _, stmt := range macro.Body {
		if err := s.evalStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) evalExpr(expr parser.Expr) (any, error) {
	switch e := expr.(type) {
	case *parser.Const:
		return e.Value, nil

	case *parser.Var:
		return s.Lookup(e.ID), nil

	case *parser.GetAttr:
		val, err := s.evalExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		attr, _ := attrLookup(val, e.Name)
		return attr, nil

	case *parser.GetItem:
		val, err := s.evalExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		index, err := s.evalExpr(e.Index)
		if err != nil {
			return nil, err
		}
		item, _ := itemLookup(val, index)
		return item, nil

	case *parser.Not:
		val, err := s.evalExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		return !truthy(val), nil

	case *parser.BinOp:
		return s.evalBinOp(e)

	default:
		return nil, fmt.Errorf("unsupported expression type: %T", expr)
	}
}

func (s *State) evalBinOp(op *parser.BinOp) (any, error) {
	left, err := s.evalExpr(op.Left)
	if err != nil {
		return nil, err
	}

	// and/or short-circuit and yield an operand, not a bool
	switch op.Op {
	case parser.OpAnd:
		if !truthy(left) {
			return left, nil
		}
		return s.evalExpr(op.Right)
	case parser.OpOr:
		if truthy(left) {
			return left, nil
		}
		return s.evalExpr(op.Right)
	}

	right, err := s.evalExpr(op.Right)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case parser.OpEq:
		return valuesEqual(left, right), nil
	case parser.OpNe:
		return !valuesEqual(left, right), nil
	}

	cmp, ok := compareValues(left, right)
	if !ok {
		return nil, NewError(ErrInvalidOperation,
			fmt.Sprintf("cannot compare %T with %T", left, right)).
			WithSpan(op.Span()).WithName(s.name)
	}
	switch op.Op {
	case parser.OpLt:
		return cmp < 0, nil
	case parser.OpLe:
		return cmp <= 0, nil
	case parser.OpGt:
		return cmp > 0, nil
	case parser.OpGe:
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unsupported binary operator: %d", op.Op)
}
