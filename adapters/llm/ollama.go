package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/SVAnbarasan/ZeroByX/domain"
)

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
)

// ClientError represents an error from a model service.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches on Type so wrapped copies compare equal to the sentinels.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type
}

var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "model service is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumThread   int     `json:"num_thread,omitempty"`
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  *ollamaOptions       `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string             `json:"model"`
	Message domain.ChatMessage `json:"message"`
	Done    bool               `json:"done"`
	Error   string             `json:"error,omitempty"`
}

// OllamaClient talks to a local Ollama server over /api/chat.
// It is safe for concurrent use.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Deadlines come from the caller's context.
		httpClient: &http.Client{},
	}
}

func (c *OllamaClient) Generate(ctx context.Context, req domain.LlmRequest) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if result.Error != "" {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: result.Error}
	}
	return result.Message.Content, nil
}

// Stream reads the NDJSON stream line by line and calls onChunk for every
// non-empty content fragment.
func (c *OllamaClient) Stream(ctx context.Context, req domain.LlmRequest, onChunk func(string) error) error {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err == nil {
				if chunk.Error != "" {
					return &ClientError{Type: ErrTypeInvalidResponse, Message: chunk.Error}
				}
				if chunk.Message.Content != "" {
					if err := onChunk(chunk.Message.Content); err != nil {
						return err
					}
				}
				if chunk.Done {
					return nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return classify(ctx, readErr)
		}
	}
}

func (c *OllamaClient) post(ctx context.Context, req domain.LlmRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: messages(req),
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: req.Temperature,
			NumCtx:      req.NumCtx,
			NumThread:   req.NumThread,
		},
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeNotRunning, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrModelNotFound
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: apiErr.Error}
		}
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "chat request failed: " + resp.Status}
	}
	return resp, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: context.DeadlineExceeded}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "model service is not running", Cause: err}
}

func messages(req domain.LlmRequest) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, 2)
	if req.System != "" {
		out = append(out, domain.ChatMessage{Role: domain.SystemRole, Content: req.System})
	}
	return append(out, domain.ChatMessage{Role: domain.UserRole, Content: req.Prompt})
}
