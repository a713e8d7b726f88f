package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
	"github.com/SVAnbarasan/ZeroByX/utils/markup"
)

// ChatService turns a runner's raw output into chat events.
type ChatService struct {
	runner  domain.Runner
	timeout time.Duration
}

func NewChatService(runner domain.Runner, timeout time.Duration) *ChatService {
	return &ChatService{runner: runner, timeout: timeout}
}

// Stream runs one agent turn and calls send for every payload line, already
// rendered to HTML. Log lines and blank lines are dropped. A failed run ends
// with one error event. The returned error is non-nil only when send fails.
func (s *ChatService) Stream(ctx context.Context, personaID, message string, send func(domain.Event) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	logger := log.WithCtx(ctx)

	var sendErr error
	lines := 0
	err := s.runner.Run(ctx, personaID, message, func(raw string) error {
		line := strings.TrimSpace(raw)
		if line == "" || domain.IsLogLine(line) {
			return nil
		}
		lines++
		if err := send(domain.Event{Data: markup.Render(line)}); err != nil {
			sendErr = err
			return err
		}
		return nil
	})
	if sendErr != nil {
		logger.Info("Client went away mid-stream", zap.Error(sendErr))
		return sendErr
	}
	if err == nil {
		logger.Debug("Stream complete", zap.Int("lines", lines))
		return nil
	}

	text := s.errorText(ctx, err)
	logger.Warn("Agent run failed", zap.Error(err), zap.Int("lines", lines))
	if text == "" {
		return nil
	}
	return send(domain.ErrorEvent(text))
}

func (s *ChatService) errorText(ctx context.Context, err error) string {
	var exitErr *domain.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Stderr
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("agent did not finish within %s", s.timeout)
	case errors.Is(err, context.Canceled):
		return ""
	}
	return err.Error()
}

// SendText renders a complete text reply through the same line pipeline.
func SendText(text string, send func(domain.Event) error) error {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if err := send(domain.Event{Data: markup.Render(line)}); err != nil {
			return err
		}
	}
	return nil
}
