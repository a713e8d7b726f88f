package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SVAnbarasan/ZeroByX/domain"
)

//go:embed personas.yaml
var defaultPersonas []byte

type personaFile struct {
	Default  string           `yaml:"default"`
	Personas []domain.Persona `yaml:"personas"`
}

// PersonaSet is an immutable persona registry.
type PersonaSet struct {
	byID     map[string]domain.Persona
	ordered  []domain.Persona
	fallback string
}

// LoadPersonas reads persona definitions from path, or the embedded
// defaults when path is empty. defaultID overrides the file's default.
func LoadPersonas(path, defaultID string) (*PersonaSet, error) {
	data := defaultPersonas
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading personas file: %w", err)
		}
		data = b
	}
	return ParsePersonas(data, defaultID)
}

// ParsePersonas builds a PersonaSet from YAML.
func ParsePersonas(data []byte, defaultID string) (*PersonaSet, error) {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding personas: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("no personas defined")
	}

	set := &PersonaSet{byID: make(map[string]domain.Persona, len(f.Personas))}
	for _, p := range f.Personas {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			return nil, fmt.Errorf("persona without id")
		}
		if _, dup := set.byID[id]; dup {
			return nil, fmt.Errorf("duplicate persona %q", id)
		}
		p.ID = id
		set.byID[id] = p
		set.ordered = append(set.ordered, p)
	}

	set.fallback = strings.ToLower(defaultID)
	if set.fallback == "" {
		set.fallback = strings.ToLower(f.Default)
	}
	if set.fallback == "" {
		set.fallback = set.ordered[0].ID
	}
	if _, ok := set.byID[set.fallback]; !ok {
		return nil, fmt.Errorf("default persona %q is not defined", set.fallback)
	}
	return set, nil
}

func (s *PersonaSet) Lookup(id string) (domain.Persona, bool) {
	p, ok := s.byID[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// Resolve returns the persona for id, or the default persona.
func (s *PersonaSet) Resolve(id string) domain.Persona {
	if p, ok := s.Lookup(id); ok {
		return p
	}
	return s.byID[s.fallback]
}

func (s *PersonaSet) List() []domain.Persona {
	out := make([]domain.Persona, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s *PersonaSet) Default() string {
	return s.fallback
}
