package usecase

import (
	"context"
	"strings"
	"sync"

	"github.com/SVAnbarasan/ZeroByX/domain"
)

type fakePersonas struct{}

var testPersonas = map[string]domain.Persona{
	"theta":   {ID: "theta", Label: "Agent Theta θ", Model: "m-theta", SystemPrompt: "defend", Temperature: 0.3},
	"epsilon": {ID: "epsilon", Label: "Agent Epsilon ε", Model: "m-eps", SystemPrompt: "intel"},
}

func (fakePersonas) Lookup(id string) (domain.Persona, bool) {
	p, ok := testPersonas[strings.ToLower(id)]
	return p, ok
}

func (f fakePersonas) Resolve(id string) domain.Persona {
	if p, ok := f.Lookup(id); ok {
		return p
	}
	return testPersonas["theta"]
}

func (fakePersonas) List() []domain.Persona {
	return []domain.Persona{testPersonas["theta"], testPersonas["epsilon"]}
}

// fakeLlm replays chunks then returns err. When block is set it waits for
// the context instead.
type fakeLlm struct {
	mu       sync.Mutex
	chunks   []string
	err      error
	block    bool
	reply    string
	requests []domain.LlmRequest
}

func (f *fakeLlm) record(req domain.LlmRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeLlm) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLlm) Generate(ctx context.Context, req domain.LlmRequest) (string, error) {
	f.record(req)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLlm) Stream(ctx context.Context, req domain.LlmRequest, onChunk func(string) error) error {
	f.record(req)
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type mapCache struct {
	m map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: map[string]string{}} }

func (c *mapCache) Get(k string) (string, bool) { v, ok := c.m[k]; return v, ok }
func (c *mapCache) Add(k, v string)             { c.m[k] = v }
func (c *mapCache) Len() int                    { return len(c.m) }

// scriptRunner emits fixed lines then returns err.
type scriptRunner struct {
	lines []string
	err   error
	calls int
}

func (r *scriptRunner) Run(ctx context.Context, personaID, message string, emit func(string) error) error {
	r.calls++
	for _, l := range r.lines {
		if err := emit(l); err != nil {
			return err
		}
	}
	return r.err
}

type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	panics  bool
}

func (s fakeSearcher) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if s.panics {
		panic("boom")
	}
	return s.results, s.err
}
