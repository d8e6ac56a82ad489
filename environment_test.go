package pastiche

import (
	"fmt"
	"sort"
	"testing"
)

func TestAddAndGetTemplate(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("hello.html", "Hello {{ name }}!"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	tmpl, err := env.GetTemplate("hello.html")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if tmpl.Name() != "hello.html" {
		t.Errorf("unexpected name %q", tmpl.Name())
	}
	if tmpl.Source() != "Hello {{ name }}!" {
		t.Errorf("unexpected source %q", tmpl.Source())
	}
	result, err := tmpl.Render(map[string]any{"name": "World"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if result != "Hello World!" {
		t.Errorf("expected 'Hello World!', got %q", result)
	}
}

func TestAddTemplateSyntaxError(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("bad.html", "{% bogus %}"); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	env := NewEnvironment()
	_, err := env.GetTemplate("missing.html")
	if err == nil {
		t.Fatal("expected error for unknown template")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != ErrTemplateNotFound {
		t.Errorf("expected template not found error, got %v", err)
	}
}

func TestLoaderFallback(t *testing.T) {
	env := NewEnvironment()
	calls := 0
	env.SetLoader(func(name string) (string, error) {
		calls++
		if name != "lazy.html" {
			return "", fmt.Errorf("no such template %s", name)
		}
		return "lazy {{ n }}", nil
	})

	tmpl, err := env.GetTemplate("lazy.html")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	result, err := tmpl.Render(map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if result != "lazy 1" {
		t.Errorf("expected 'lazy 1', got %q", result)
	}

	// the loaded template is cached
	if _, err := env.GetTemplate("lazy.html"); err != nil {
		t.Fatalf("get error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single loader call, got %d", calls)
	}

	if _, err := env.GetTemplate("other.html"); err == nil {
		t.Fatal("expected error for template the loader rejects")
	}
}

func TestTemplateManagement(t *testing.T) {
	env := NewEnvironment()
	for _, name := range []string{"a.html", "b.html", "c.html"} {
		if err := env.AddTemplate(name, name); err != nil {
			t.Fatalf("add error: %v", err)
		}
	}

	names := env.Templates()
	sort.Strings(names)
	if len(names) != 3 || names[0] != "a.html" || names[2] != "c.html" {
		t.Errorf("unexpected template list %v", names)
	}

	env.RemoveTemplate("b.html")
	if _, err := env.GetTemplate("b.html"); err == nil {
		t.Error("removed template must not resolve")
	}
	if len(env.Templates()) != 2 {
		t.Errorf("expected 2 templates, got %v", env.Templates())
	}

	env.ClearTemplates()
	if len(env.Templates()) != 0 {
		t.Errorf("expected empty environment, got %v", env.Templates())
	}
}

func TestTemplateFromStringNotStored(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromString("x")
	if err != nil {
		t.Fatalf("template error: %v", err)
	}
	if tmpl.Name() != "<string>" {
		t.Errorf("unexpected name %q", tmpl.Name())
	}
	if len(env.Templates()) != 0 {
		t.Error("TemplateFromString must not store the template")
	}
}

func TestTemplateFromNamedString(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.TemplateFromNamedString("inline.html", "y")
	if err != nil {
		t.Fatalf("template error: %v", err)
	}
	if tmpl.Name() != "inline.html" {
		t.Errorf("unexpected name %q", tmpl.Name())
	}
}

func TestConcurrentRenders(t *testing.T) {
	env := NewEnvironment()
	if err := env.AddTemplate("t.html", "{{ n }}"); err != nil {
		t.Fatalf("add error: %v", err)
	}
	tmpl, err := env.GetTemplate("t.html")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			result, err := tmpl.Render(map[string]any{"n": n})
			if err == nil && result != fmt.Sprintf("%d", n) {
				err = fmt.Errorf("expected %d, got %q", n, result)
			}
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
}
