package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const briefPrefix = "Brief response: "

var (
	ErrNoInput    = errors.New("no input provided")
	ErrNoResponse = errors.New("no response generated from model")
)

// AgentService answers one prompt as one persona.
type AgentService struct {
	llm      domain.Llm
	personas domain.Personas
	cache    domain.PromptCache
	timeout  time.Duration
}

func NewAgentService(gen domain.Llm, personas domain.Personas, cache domain.PromptCache, timeout time.Duration) *AgentService {
	return &AgentService{llm: gen, personas: personas, cache: cache, timeout: timeout}
}

// writeError marks failures of the caller's writer, which end the turn,
// as opposed to model failures, which are reported in-band.
type writeError struct{ err error }

func (e writeError) Error() string { return e.err.Error() }
func (e writeError) Unwrap() error { return e.err }

// Respond streams the reply to w chunk by chunk as it arrives, then writes
// the persona label followed by the full reply, and returns that final text.
// Model timeouts and failures are written to w as a closing fragment.
func (s *AgentService) Respond(ctx context.Context, personaID, prompt string, w io.Writer) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrNoInput
	}

	persona := s.personas.Resolve(personaID)
	ctx = context.WithValue(ctx, log.PersonaKey, persona.ID)
	logger := log.WithCtx(ctx)
	start := time.Now()
	logger.Info("Processing request", zap.String("prompt", truncate(prompt, 100)))

	key := persona.ID + "\x00" + prompt
	if cached, ok := s.cache.Get(key); ok {
		logger.Info("Returning cached response")
		final := persona.Label + "\n" + cached
		if _, err := io.WriteString(w, final+"\n"); err != nil {
			return "", err
		}
		return final, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reply strings.Builder
	emit := func(chunk string) error {
		reply.WriteString(chunk)
		if _, err := io.WriteString(w, chunk); err != nil {
			return writeError{err}
		}
		return nil
	}

	logger.Info("Sending request to model", zap.String("model", persona.Model))
	err := s.llm.Stream(callCtx, domain.LlmRequest{
		Model:       persona.Model,
		System:      persona.SystemPrompt,
		Prompt:      briefPrefix + prompt,
		Temperature: persona.Temperature,
		NumCtx:      persona.NumCtx,
		NumThread:   persona.NumThread,
	}, emit)

	var we writeError
	switch {
	case err == nil:
		logger.Info("Received response from model")
	case errors.As(err, &we):
		return "", we.err
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		logger.Warn("Model call timed out", zap.Duration("timeout", s.timeout))
		if werr := emit(fmt.Sprintf("\n[Response timed out after %s]", humanDuration(s.timeout))); werr != nil {
			return "", errors.Unwrap(werr)
		}
	default:
		logger.Error("Model call failed", zap.Error(err))
		if werr := emit(fmt.Sprintf("\n[Error: %s]", err)); werr != nil {
			return "", errors.Unwrap(werr)
		}
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", ErrNoResponse
	}
	if err == nil {
		s.cache.Add(key, reply.String())
	}

	final := persona.Label + "\n" + reply.String()
	if _, err := io.WriteString(w, "\n"+final+"\n"); err != nil {
		return "", err
	}
	logger.Info("Request processed", zap.Duration("elapsed", time.Since(start)))
	return final, nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	return d.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
