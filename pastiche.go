// Package pastiche provides a small template engine whose signature
// feature is reuse: parametrized macros and repeatable named blocks.
//
// # Quick Start
//
//	env := pastiche.NewEnvironment()
//	env.AddTemplate("hello", "Hello {{ name }}!")
//	tmpl, _ := env.GetTemplate("hello")
//	result, _ := tmpl.Render(map[string]any{"name": "World"})
//	fmt.Println(result) // Output: Hello World!
//
// # Template Syntax
//
// Key syntax elements:
//   - Variables: {{ variable }}
//   - Tags: {% if condition %}...{% endif %}
//   - Comments: {# comment #}
//
// # Macros
//
// A macro is a named, parametrized template fragment. Define it once,
// render it as often as needed:
//
//	{% macro greet name greeting="Hello" %}
//	  {{ greeting }}, {{ name }}!
//	{% endmacro %}
//
//	{% use_macro greet "World" %}
//	{% use_macro greet "World" greeting="Goodbye" %}
//
// Positional parameters bind left to right; missing ones render as
// empty strings and extra arguments fill keyword parameters that were
// not passed by name. Keyword defaults may reference context
// variables; they are resolved at render time.
//
// For arguments that span multiple lines or contain tags, use the
// block form:
//
//	{% macro_block greet %}
//	  {% macro_arg %}{{ user.name }}{% endmacro_arg %}
//	  {% macro_kwarg greeting %}Dear{% endmacro_kwarg %}
//	{% endmacro_block %}
//
// Macros defined in another file can be imported with
// {% loadmacros "shared.html" %}; only the definitions are taken, the
// rest of that file is not rendered.
//
// # Repeated Blocks
//
// A repeated block is authored once and replayed verbatim later in the
// same document:
//
//	{% repeatedblock title %}Quarterly Report{% endblock %}
//	...
//	{% repeat title %}
//
// The repeat tag must come after its repeatedblock definition.
// Repeated blocks behave as ordinary blocks for inheritance: a child
// template overriding the block changes every repetition.
//
// # Template Inheritance
//
// Templates support inheritance via extends and blocks:
//
//	{% extends "base.html" %}
//	{% block title %}My Page{% endblock %}
//
// # Error Handling
//
// Template errors provide detailed information:
//
//	tmpl, err := env.GetTemplate("example.html")
//	if err != nil {
//	    if e, ok := err.(*pastiche.Error); ok {
//	        fmt.Printf("%s: %s\n", e.Kind, e.Message)
//	    }
//	}
//
// Unknown macro names and repeat tags without a preceding definition
// are compile-time syntax errors. Argument arity mismatches are not:
// the binding rules above apply instead.
package pastiche
