package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPromptRender(t *testing.T) {
	out, err := DefaultPromptTemplate().Render([]string{"Pizzas", "Hair"}, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{`"Pizzas", "Hair"`, `use "Other"`, "Title Case", "ONE SEPARATE record", "proofreader"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered instruction missing %q", want)
		}
	}
	if strings.Contains(out, "{{") {
		t.Error("rendered instruction still has template actions")
	}
}

func TestLoadPromptTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.yaml")
	body := "instruction: |\n  Categories: {{.Categories}}; fallback {{.Fallback}}.\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPromptTemplate(path)
	if err != nil {
		t.Fatalf("LoadPromptTemplate: %v", err)
	}
	out, err := p.Render([]string{"A"}, "Misc")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.TrimSpace(out) != `Categories: "A"; fallback Misc.` {
		t.Fatalf("out = %q", out)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("other: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPromptTemplate(empty); err == nil {
		t.Fatal("expected error for file without instruction")
	}
	if _, err := NewPromptTemplate("{{.Nope"); err == nil {
		t.Fatal("expected parse error")
	}
}
