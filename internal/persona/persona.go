// Package persona holds the system instructions that shape completion replies.
// A persona is chosen once at startup and shared read-only by every turn.
package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is a named system prompt.
type Persona struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

const assistantPrompt = `You are an AI assistant with a unique personality. When answering questions about yourself:

1. For life story: Explain that you're an AI created to help people, focusing on your purpose and capabilities.
2. For superpower: Emphasize your ability to process and analyze vast amounts of information quickly.
3. For areas of growth: Mention continuous learning, improving emotional intelligence, and better understanding of context.
4. For misconceptions: Address the common belief that AI is completely objective or infallible.
5. For pushing boundaries: Discuss how you constantly learn from interactions and adapt to new challenges.

Always maintain a professional yet friendly tone, and be honest about being an AI.`

// Built-in personas.
var (
	Assistant = Persona{Name: "assistant", Prompt: assistantPrompt}
	Plain     = Persona{Name: "plain", Prompt: "You are a helpful AI assistant."}
)

// Catalogue maps persona names to personas.
type Catalogue map[string]Persona

// Builtin returns a catalogue holding only the built-in personas.
func Builtin() Catalogue {
	return Catalogue{
		Assistant.Name: Assistant,
		Plain.Name:     Plain,
	}
}

type fileFormat struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a YAML persona file and merges it over the built-ins.
// Environment variables in the file are expanded.
//
//	personas:
//	  - name: pirate
//	    prompt: You answer like a pirate.
func LoadFile(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}

	cat := Builtin()
	for i, p := range f.Personas {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("persona %d: missing name", i)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("persona %q: missing prompt", p.Name)
		}
		cat[p.Name] = p
	}
	return cat, nil
}

// Lookup returns the named persona.
func (c Catalogue) Lookup(name string) (Persona, error) {
	p, ok := c[name]
	if !ok {
		return Persona{}, fmt.Errorf("unknown persona %q (have %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names lists persona names in sorted order.
func (c Catalogue) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves the configured persona, reading path first when it is set.
func Select(name, path string) (Persona, error) {
	cat := Builtin()
	if path != "" {
		var err error
		if cat, err = LoadFile(path); err != nil {
			return Persona{}, err
		}
	}
	return cat.Lookup(name)
}
