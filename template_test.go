package pastiche

import (
	"strings"
	"testing"

	"github.com/go-pastiche/pastiche/lexer"
)

func renderString(t *testing.T, source string, ctx any) string {
	t.Helper()
	env := NewEnvironment()
	return renderStringEnv(t, env, source, ctx)
}

func renderStringEnv(t *testing.T, env *Environment, source string, ctx any) string {
	t.Helper()
	tmpl, err := env.TemplateFromString(source)
	if err != nil {
		t.Fatalf("template error: %v", err)
	}
	result, err := tmpl.Render(ctx)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	return result
}

func TestRenderVariable(t *testing.T) {
	result := renderString(t, "Hello {{ name }}!", map[string]any{"name": "World"})
	if result != "Hello World!" {
		t.Errorf("expected 'Hello World!', got %q", result)
	}
}

func TestRenderNumber(t *testing.T) {
	result := renderString(t, "{{ n }}", map[string]any{"n": 42})
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestUndefinedRendersEmpty(t *testing.T) {
	result := renderString(t, "[{{ missing }}]", nil)
	if result != "[]" {
		t.Errorf("expected '[]', got %q", result)
	}
}

func TestStructContext(t *testing.T) {
	type User struct {
		Name string
	}
	result := renderString(t, "{{ user.Name }}", map[string]any{"user": User{Name: "Ann"}})
	if result != "Ann" {
		t.Errorf("expected 'Ann', got %q", result)
	}
}

func TestItemAccess(t *testing.T) {
	ctx := map[string]any{
		"items": []string{"a", "b", "c"},
		"dict":  map[string]any{"key": "value"},
	}
	result := renderString(t, `{{ items[0] }}{{ items[-1] }}{{ dict["key"] }}`, ctx)
	if result != "acvalue" {
		t.Errorf("expected 'acvalue', got %q", result)
	}
}

func TestCommentsNotRendered(t *testing.T) {
	result := renderString(t, "a{# hidden #}b", nil)
	if result != "ab" {
		t.Errorf("expected 'ab', got %q", result)
	}
}

func TestIfElifElseRendering(t *testing.T) {
	source := "{% if n == 1 %}one{% elif n == 2 %}two{% else %}many{% endif %}"
	for n, expected := range map[int]string{1: "one", 2: "two", 3: "many"} {
		result := renderString(t, source, map[string]any{"n": n})
		if result != expected {
			t.Errorf("n=%d: expected %q, got %q", n, expected, result)
		}
	}
}

func TestComparisons(t *testing.T) {
	result := renderString(t, "{% if n >= 2 %}big{% endif %}{% if n < 2 %}small{% endif %}",
		map[string]any{"n": 3})
	if result != "big" {
		t.Errorf("expected 'big', got %q", result)
	}
}

func TestTruthiness(t *testing.T) {
	source := "{% if v %}t{% else %}f{% endif %}"
	cases := map[string]struct {
		value    any
		expected string
	}{
		"empty string": {"", "f"},
		"string":       {"x", "t"},
		"zero":         {0, "f"},
		"number":       {7, "t"},
		"empty slice":  {[]int{}, "f"},
		"slice":        {[]int{1}, "t"},
		"nil":          {nil, "f"},
	}
	for name, tc := range cases {
		result := renderString(t, source, map[string]any{"v": tc.value})
		if result != tc.expected {
			t.Errorf("%s: expected %q, got %q", name, tc.expected, result)
		}
	}
}

func TestAndOrYieldOperands(t *testing.T) {
	result := renderString(t, `{{ missing or "fallback" }}`, nil)
	if result != "fallback" {
		t.Errorf("expected 'fallback', got %q", result)
	}
	result = renderString(t, `{{ name and "set" }}`, map[string]any{"name": "x"})
	if result != "set" {
		t.Errorf("expected 'set', got %q", result)
	}
}

func TestForLoopVariables(t *testing.T) {
	source := "{% for x in items %}{{ loop.index }}:{{ x }}{% if not loop.last %},{% endif %}{% endfor %}"
	result := renderString(t, source, map[string]any{"items": []string{"a", "b", "c"}})
	if result != "1:a,2:b,3:c" {
		t.Errorf("unexpected loop output %q", result)
	}
}

func TestForLoopOverMapIsSorted(t *testing.T) {
	source := "{% for k in m %}{{ k }}{% endfor %}"
	result := renderString(t, source, map[string]any{"m": map[string]int{"b": 2, "a": 1, "c": 3}})
	if result != "abc" {
		t.Errorf("expected sorted keys 'abc', got %q", result)
	}
}

func TestForLoopNotIterable(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromString("{% for x in n %}{% endfor %}")
	if err != nil {
		t.Fatalf("template error: %v", err)
	}
	_, err = tmpl.Render(map[string]any{"n": 5})
	if err == nil {
		t.Fatal("expected error for non-iterable")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrInvalidOperation {
		t.Errorf("expected invalid operation error, got %v", err)
	}
}

func TestIncomparableValues(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromString("{{ a < b }}")
	if err != nil {
		t.Fatalf("template error: %v", err)
	}
	_, err = tmpl.Render(map[string]any{"a": []int{1}, "b": "x"})
	if err == nil {
		t.Fatal("expected error for incomparable values")
	}
	if !strings.Contains(err.Error(), "cannot compare") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExtends(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("base.html", "A{% block content %}base{% endblock %}B"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env,
		`{% extends "base.html" %}{% block content %}child{% endblock %}`, nil)
	if result != "AchildB" {
		t.Errorf("expected 'AchildB', got %q", result)
	}
}

func TestExtendsChain(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("grand.html", "G[{% block a %}g{% endblock %}]"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	if err := env.AddTemplate("parent.html",
		`{% extends "grand.html" %}{% block a %}p{% endblock %}`); err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env,
		`{% extends "parent.html" %}{% block a %}c{% endblock %}`, nil)
	if result != "G[c]" {
		t.Errorf("expected 'G[c]', got %q", result)
	}
}

func TestExtendsWithoutOverrideKeepsParent(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("base.html", "A{% block content %}base{% endblock %}B"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env, `{% extends "base.html" %}`, nil)
	if result != "AbaseB" {
		t.Errorf("expected 'AbaseB', got %q", result)
	}
}

func TestInclude(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("partial.html", "({{ name }})"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env, `X{% include "partial.html" %}Y`,
		map[string]any{"name": "Ann"})
	if result != "X(Ann)Y" {
		t.Errorf("expected 'X(Ann)Y', got %q", result)
	}
}

func TestGlobals(t *testing.T) {
	env := NewEnvironment()
	env.AddGlobal("site", "example.com")
	result := renderStringEnv(t, env, "{{ site }}", nil)
	if result != "example.com" {
		t.Errorf("expected 'example.com', got %q", result)
	}

	// context wins over globals
	result = renderStringEnv(t, env, "{{ site }}", map[string]any{"site": "other.org"})
	if result != "other.org" {
		t.Errorf("expected 'other.org', got %q", result)
	}
}

func TestCustomDelimitersRender(t *testing.T) {
	env := NewEnvironment()
	env.SetSyntax(lexer.SyntaxConfig{
		BlockStart:   "<%",
		BlockEnd:     "%>",
		VarStart:     "<<",
		VarEnd:       ">>",
		CommentStart: "<#",
		CommentEnd:   "#>",
	})
	result := renderStringEnv(t, env, "<% if x %><< x >><% endif %>",
		map[string]any{"x": "ok"})
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
}
