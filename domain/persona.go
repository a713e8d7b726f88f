package domain

// Persona is a named system prompt plus the label shown in front of its replies.
type Persona struct {
	ID           string  `yaml:"id" json:"id"`
	Label        string  `yaml:"label" json:"label"`
	Model        string  `yaml:"model" json:"model"`
	Temperature  float64 `yaml:"temperature" json:"-"`
	NumCtx       int     `yaml:"num_ctx" json:"-"`
	NumThread    int     `yaml:"num_thread" json:"-"`
	SystemPrompt string  `yaml:"system_prompt" json:"-"`
}

// Personas resolves persona definitions. Lookup never fails: unknown
// identifiers resolve to the default persona.
type Personas interface {
	Resolve(id string) Persona
	Lookup(id string) (Persona, bool)
	List() []Persona
}
