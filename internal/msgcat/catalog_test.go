package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogRendersPly(t *testing.T) {
	c := Default()
	out, err := c.Render("review.ply_black", map[string]any{
		"MoveNumber": 1, "SAN": "e5", "Quality": "Best", "Eval": "+0.30",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "1... e5 (Black): Best (eval: +0.30)" {
		t.Fatalf("render = %q", out)
	}
}

func TestRenderMissingField(t *testing.T) {
	if _, err := Default().Render("review.best_hint", map[string]any{}); err == nil {
		t.Fatal("missing field rendered without error")
	}
	if got := Default().RenderOr("review.nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "review:\n  best_hint: \"-> {{.BestSAN}}\"\n")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Render("review.best_hint", map[string]string{"BestSAN": "Nf3"})
	if err != nil || out != "-> Nf3" {
		t.Fatalf("render = %q, %v", out, err)
	}

	write("b.yml", "review:\n  best_hint: \"again\"\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("duplicate keys: err = %v", err)
	}
}
