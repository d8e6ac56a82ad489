package pastiche

import (
	"github.com/alphadose/haxmap"

	"github.com/go-pastiche/pastiche/lexer"
	"github.com/go-pastiche/pastiche/parser"
)

// LoaderFunc is a function that loads template source by name.
type LoaderFunc func(name string) (string, error)

// Environment holds the configuration and templates. Templates are
// kept in a lock-free concurrent map so parallel renders can resolve
// extends/include targets without coordination; each render owns its
// own state, so sharing compiled templates is safe.
type Environment struct {
	templates *haxmap.Map[string, *compiledTemplate]
	globals   map[string]any
	loader    LoaderFunc
	syntax    lexer.SyntaxConfig
}

type compiledTemplate struct {
	name   string
	source string
	ast    *parser.Template
}

// NewEnvironment creates a new environment with default settings.
func NewEnvironment() *Environment {
	return &Environment{
		templates: haxmap.New[string, *compiledTemplate](),
		globals:   make(map[string]any),
		syntax:    lexer.DefaultSyntax(),
	}
}

// parserConfig builds the per-parse configuration. The loader handed
// to the parser (for loadmacros) resolves against already-added
// templates first, then the environment loader.
func (e *Environment) parserConfig() parser.Config {
	return parser.Config{
		Syntax: e.syntax,
		Loader: e.sourceFor,
	}
}

func (e *Environment) sourceFor(name string) (string, error) {
	if compiled, ok := e.templates.Get(name); ok {
		return compiled.source, nil
	}
	if e.loader != nil {
		return e.loader(name)
	}
	return "", NewError(ErrTemplateNotFound, name)
}

// AddTemplate adds a template from source.
func (e *Environment) AddTemplate(name, source string) error {
	ast, err := parser.Parse(source, name, e.parserConfig())
	if err != nil {
		return err
	}
	e.templates.Set(name, &compiledTemplate{
		name:   name,
		source: source,
		ast:    ast,
	})
	return nil
}

// GetTemplate retrieves a template by name, consulting the loader for
// names that were never added.
func (e *Environment) GetTemplate(name string) (*Template, error) {
	if compiled, ok := e.templates.Get(name); ok {
		return &Template{env: e, compiled: compiled}, nil
	}

	if e.loader != nil {
		source, err := e.loader(name)
		if err != nil {
			return nil, NewError(ErrTemplateNotFound, name)
		}
		if err := e.AddTemplate(name, source); err != nil {
			return nil, err
		}
		compiled, _ := e.templates.Get(name)
		return &Template{env: e, compiled: compiled}, nil
	}

	return nil, NewError(ErrTemplateNotFound, name)
}

// TemplateFromString creates a template from source without storing it.
func (e *Environment) TemplateFromString(source string) (*Template, error) {
	return e.TemplateFromNamedString("<string>", source)
}

// TemplateFromNamedString creates a template from source with a name
// without storing it.
func (e *Environment) TemplateFromNamedString(name, source string) (*Template, error) {
	ast, err := parser.Parse(source, name, e.parserConfig())
	if err != nil {
		return nil, err
	}
	return &Template{
		env:      e,
		compiled: &compiledTemplate{name: name, source: source, ast: ast},
	}, nil
}

// Templates returns the names of all stored templates.
func (e *Environment) Templates() []string {
	names := make([]string, 0, int(e.templates.Len()))
	e.templates.ForEach(func(name string, _ *compiledTemplate) bool {
		names = append(names, name)
		return true
	})
	return names
}

// RemoveTemplate removes a stored template.
func (e *Environment) RemoveTemplate(name string) {
	e.templates.Del(name)
}

// ClearTemplates removes all stored templates.
func (e *Environment) ClearTemplates() {
	e.templates.ForEach(func(name string, _ *compiledTemplate) bool {
		e.templates.Del(name)
		return true
	})
}

// SetLoader sets the template loader function.
func (e *Environment) SetLoader(loader LoaderFunc) {
	e.loader = loader
}

// SetSyntax sets the syntax configuration. It only affects templates
// parsed afterwards.
func (e *Environment) SetSyntax(config lexer.SyntaxConfig) {
	e.syntax = config
}

// AddGlobal registers a global variable visible to every render.
func (e *Environment) AddGlobal(name string, v any) {
	e.globals[name] = v
}

func (e *Environment) getGlobal(name string) (any, bool) {
	v, ok := e.globals[name]
	return v, ok
}

// Template represents a compiled template.
type Template struct {
	env      *Environment
	compiled *compiledTemplate
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.compiled.name
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.compiled.source
}

// Render renders the template with the given context. The context may
// be a map, a struct, or nil.
func (t *Template) Render(ctx any) (string, error) {
	state := newState(t.env, t.compiled.name, ctx)
	return state.eval(t.compiled.ast)
}
