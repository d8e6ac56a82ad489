package pastiche

import (
	"strings"
	"testing"
)

func TestRepeatedBlockRendersAtDefinition(t *testing.T) {
	result := renderString(t, `{% repeatedblock title %}Report{% endblock %}`, nil)
	if result != "Report" {
		t.Errorf("expected 'Report', got %q", result)
	}
}

func TestRepeatReplaysBlock(t *testing.T) {
	result := renderString(t,
		`{% repeatedblock title %}Report{% endblock %} and {% repeat title %}`, nil)
	if result != "Report and Report" {
		t.Errorf("expected 'Report and Report', got %q", result)
	}
}

func TestRepeatManyTimes(t *testing.T) {
	result := renderString(t,
		`{% repeatedblock x %}a{% endblock %}{% repeat x %}{% repeat x %}{% repeat x %}`, nil)
	if result != "aaaa" {
		t.Errorf("expected 'aaaa', got %q", result)
	}
}

func TestInterleavedRepeatedBlocks(t *testing.T) {
	source := `{% repeatedblock b1 %}string1{% endblock %}{% repeat b1 %}` +
		`{% repeatedblock b2 %}string2{% endblock %}` +
		`{% repeat b1 %}{% repeat b2 %}{% repeat b1 %}`
	result := renderString(t, source, nil)
	if result != "string1string1string2string1string2string1" {
		t.Errorf("unexpected interleaved output %q", result)
	}
}

func TestRepeatWithDynamicContent(t *testing.T) {
	result := renderString(t,
		`{% repeatedblock row %}{{ user }};{% endblock %}{% repeat row %}`,
		map[string]any{"user": "Ann"})
	if result != "Ann;Ann;" {
		t.Errorf("expected 'Ann;Ann;', got %q", result)
	}
}

func TestRepeatInsideForLoop(t *testing.T) {
	result := renderString(t,
		`{% repeatedblock mark %}#{% endblock %}{% for i in items %}{% repeat mark %}{% endfor %}`,
		map[string]any{"items": []int{1, 2, 3}})
	if result != "####" {
		t.Errorf("expected '####', got %q", result)
	}
}

func TestRepeatedBlockRedefinitionRendering(t *testing.T) {
	source := `{% repeatedblock t %}one{% endblock %}` +
		`{% repeatedblock t %}two{% endblock %}{% repeat t %}`
	result := renderString(t, source, nil)
	if result != "onetwotwo" {
		t.Errorf("repeats after a redefinition use the new content, got %q", result)
	}
}

func TestRepeatWithoutDefinitionIsError(t *testing.T) {
	env := NewEnvironment()
	_, err := env.TemplateFromString(`{% repeat title %}`)
	if err == nil {
		t.Fatal("expected error for repeat without a definition")
	}
	if !strings.Contains(err.Error(), "no repeated block 'title' was found before the 'repeat' tag") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRepeatBeforeDefinitionIsError(t *testing.T) {
	env := NewEnvironment()
	_, err := env.TemplateFromString(
		`{% repeat title %}{% repeatedblock title %}x{% endblock %}`)
	if err == nil {
		t.Fatal("expected error for repeat preceding its definition")
	}
}

func TestInheritanceOverridesRepeats(t *testing.T) {
	env := NewEnvironment()
	err := env.AddTemplate("base.html",
		`{% repeatedblock greeting %}Base{% endblock %}-{% repeat greeting %}`)
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env,
		`{% extends "base.html" %}{% block greeting %}Override{% endblock %}`, nil)
	if result != "Override-Override" {
		t.Errorf("an override must apply to every repetition, got %q", result)
	}
}

func TestInheritanceWithoutOverrideRepeatsParent(t *testing.T) {
	env := NewEnvironment()
	err := env.AddTemplate("base.html",
		`{% repeatedblock greeting %}Base{% endblock %}-{% repeat greeting %}`)
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	result := renderStringEnv(t, env, `{% extends "base.html" %}`, nil)
	if result != "Base-Base" {
		t.Errorf("expected 'Base-Base', got %q", result)
	}
}

func TestRepeatedBlockWithNestedTags(t *testing.T) {
	source := `{% repeatedblock list %}{% for x in items %}{{ x }}{% endfor %}{% endblock %}|{% repeat list %}`
	result := renderString(t, source, map[string]any{"items": []string{"a", "b"}})
	if result != "ab|ab" {
		t.Errorf("expected 'ab|ab', got %q", result)
	}
}
