package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelect_Builtin(t *testing.T) {
	p, err := Select("assistant", "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !strings.HasPrefix(p.Prompt, "You are an AI assistant with a unique personality.") {
		t.Errorf("Unexpected assistant prompt: %q", p.Prompt)
	}

	p, err = Select("plain", "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if p.Prompt != "You are a helpful AI assistant." {
		t.Errorf("Unexpected plain prompt: %q", p.Prompt)
	}
}

func TestSelect_Unknown(t *testing.T) {
	_, err := Select("pirate", "")
	if err == nil {
		t.Fatal("Expected error for unknown persona")
	}
	if !strings.Contains(err.Error(), "assistant, plain") {
		t.Errorf("Expected available names in error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("BOT_NAME", "Polly")
	dir := t.TempDir()
	path := filepath.Join(dir, "personas.yaml")
	content := `personas:
  - name: pirate
    prompt: You are ${BOT_NAME}, and you answer like a pirate.
  - name: plain
    prompt: Be brief.
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	p, err := cat.Lookup("pirate")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p.Prompt != "You are Polly, and you answer like a pirate." {
		t.Errorf("Expected expanded prompt, got %q", p.Prompt)
	}
	if cat["plain"].Prompt != "Be brief." {
		t.Errorf("Expected file to override built-in plain persona, got %q", cat["plain"].Prompt)
	}
	if _, err := cat.Lookup("assistant"); err != nil {
		t.Errorf("Expected built-in assistant to survive merge: %v", err)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "personas:\n  - prompt: hi\n"},
		{"missing prompt", "personas:\n  - name: quiet\n"},
		{"bad yaml", "personas: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			if _, err := LoadFile(path); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
