// Package parser provides parsing for pastiche templates.
package parser

import (
	"github.com/go-pastiche/pastiche/lexer"
)

// Span represents a location range in source code.
type Span = lexer.Span

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
	Span() Span
}

// Stmt represents a statement node.
type Stmt interface {
	Node
	stmt()
}

// Expr represents an expression node.
type Expr interface {
	Node
	expr()
}

// --- Statement Types ---

// Template is the root node of a parsed template.
type Template struct {
	Children []Stmt
	span     Span
}

func (t *Template) node()      {}
func (t *Template) stmt()      {}
func (t *Template) Span() Span { return t.span }

// EmitRaw outputs raw template text.
type EmitRaw struct {
	Raw  string
	span Span
}

func (e *EmitRaw) node()      {}
func (e *EmitRaw) stmt()      {}
func (e *EmitRaw) Span() Span { return e.span }

// EmitExpr outputs an expression result.
type EmitExpr struct {
	Expr Expr
	span Span
}

func (e *EmitExpr) node()      {}
func (e *EmitExpr) stmt()      {}
func (e *EmitExpr) Span() Span { return e.span }

// IfCond represents an if/elif/else condition.
type IfCond struct {
	Expr      Expr
	TrueBody  []Stmt
	FalseBody []Stmt
	span      Span
}

func (i *IfCond) node()      {}
func (i *IfCond) stmt()      {}
func (i *IfCond) Span() Span { return i.span }

// ForLoop represents a for loop over a sequence or mapping.
type ForLoop struct {
	Target string
	Iter   Expr
	Body   []Stmt
	span   Span
}

func (f *ForLoop) node()      {}
func (f *ForLoop) stmt()      {}
func (f *ForLoop) Span() Span { return f.span }

// Block represents a named block participating in inheritance.
type Block struct {
	Name string
	Body []Stmt
	span Span
}

func (b *Block) node()      {}
func (b *Block) stmt()      {}
func (b *Block) Span() Span { return b.span }

// Extends declares the parent template.
type Extends struct {
	Name Expr
	span Span
}

func (e *Extends) node()      {}
func (e *Extends) stmt()      {}
func (e *Extends) Span() Span { return e.span }

// Include renders another template in place.
type Include struct {
	Name Expr
	span Span
}

func (i *Include) node()      {}
func (i *Include) stmt()      {}
func (i *Include) Span() Span { return i.span }

// KwargDefault is a declared keyword parameter with its default
// expression. Defaults are deferred: they are evaluated against the
// render context at call time.
type KwargDefault struct {
	Name    string
	Default Expr
}

// Macro is a named, parametrized template fragment. The definition
// itself renders as the empty string; invocations render the body.
type Macro struct {
	Name   string
	Params []string
	Kwargs []KwargDefault // in declaration order
	Body   []Stmt
	span   Span
}

func (m *Macro) node()      {}
func (m *Macro) stmt()      {}
func (m *Macro) Span() Span { return m.span }

// PassedKwarg is an explicit keyword argument at a call site.
type PassedKwarg struct {
	Name  string
	Value Expr
}

// UseMacro invokes a macro with inline arguments. The macro reference
// is resolved at parse time.
type UseMacro struct {
	Name   string
	Macro  *Macro
	Args   []Expr
	Kwargs []PassedKwarg
	span   Span
}

func (u *UseMacro) node()      {}
func (u *UseMacro) stmt()      {}
func (u *UseMacro) Span() Span { return u.span }

// MacroArg is one positional block-style argument. It only appears
// nested inside a MacroBlock.
type MacroArg struct {
	Body []Stmt
	span Span
}

func (m *MacroArg) node()      {}
func (m *MacroArg) stmt()      {}
func (m *MacroArg) Span() Span { return m.span }

// MacroKwarg is one keyword block-style argument. It only appears
// nested inside a MacroBlock.
type MacroKwarg struct {
	Name string
	Body []Stmt
	span Span
}

func (m *MacroKwarg) node()      {}
func (m *MacroKwarg) stmt()      {}
func (m *MacroKwarg) Span() Span { return m.span }

// MacroBlock invokes a macro with block-style arguments: each
// argument's value is a nested template fragment rendered at call
// time.
type MacroBlock struct {
	Name   string
	Macro  *Macro
	Args   []*MacroArg
	Kwargs []*MacroKwarg
	span   Span
}

func (m *MacroBlock) node()      {}
func (m *MacroBlock) stmt()      {}
func (m *MacroBlock) Span() Span { return m.span }

// LoadMacros records a cross-file macro import. The merge happens at
// parse time; the node renders as the empty string.
type LoadMacros struct {
	Path string
	span Span
}

func (l *LoadMacros) node()      {}
func (l *LoadMacros) stmt()      {}
func (l *LoadMacros) Span() Span { return l.span }

// Repeat re-renders a previously defined repeated block. The block
// reference is resolved at parse time.
type Repeat struct {
	Name  string
	Block *Block
	span  Span
}

func (r *Repeat) node()      {}
func (r *Repeat) stmt()      {}
func (r *Repeat) Span() Span { return r.span }

// --- Expression Types ---

// Var is a variable reference.
type Var struct {
	ID   string
	span Span
}

func (v *Var) node()      {}
func (v *Var) expr()      {}
func (v *Var) Span() Span { return v.span }

// Const is a literal constant.
type Const struct {
	Value any
	span  Span
}

func (c *Const) node()      {}
func (c *Const) expr()      {}
func (c *Const) Span() Span { return c.span }

// GetAttr is attribute access (a.b).
type GetAttr struct {
	Expr Expr
	Name string
	span Span
}

func (g *GetAttr) node()      {}
func (g *GetAttr) expr()      {}
func (g *GetAttr) Span() Span { return g.span }

// GetItem is subscript access (a[b]).
type GetItem struct {
	Expr  Expr
	Index Expr
	span  Span
}

func (g *GetItem) node()      {}
func (g *GetItem) expr()      {}
func (g *GetItem) Span() Span { return g.span }

// Not is logical negation.
type Not struct {
	Expr Expr
	span Span
}

func (n *Not) node()      {}
func (n *Not) expr()      {}
func (n *Not) Span() Span { return n.span }

// BinOpKind enumerates binary operators.
type BinOpKind int

const (
	OpAnd BinOpKind = iota
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// BinOp is a binary operation.
type BinOp struct {
	Op    BinOpKind
	Left  Expr
	Right Expr
	span  Span
}

func (b *BinOp) node()      {}
func (b *BinOp) expr()      {}
func (b *BinOp) Span() Span { return b.span }
