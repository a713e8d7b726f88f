package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/SVAnbarasan/ZeroByX/domain"
)

const defaultGeminiModel = "gemini-2.0-flash-001"

type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a Gemini-backed domain.Llm. Persona model tags are
// Ollama names, so every request uses the configured Gemini model instead.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			APIKey:      apiKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, req domain.LlmRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, userContent(req), generateConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (g *GeminiClient) Stream(ctx context.Context, req domain.LlmRequest, onChunk func(string) error) error {
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, userContent(req), generateConfig(req)) {
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: context.DeadlineExceeded}
			}
			return fmt.Errorf("generate content stream: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := onChunk(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func userContent(req domain.LlmRequest) []*genai.Content {
	return []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}
}

func generateConfig(req domain.LlmRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}
