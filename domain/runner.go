package domain

import (
	"context"
	"fmt"
	"strings"
)

// Runner executes one agent turn and hands every raw output line to emit.
type Runner interface {
	Run(ctx context.Context, personaID, message string, emit func(line string) error) error
}

// Event is one frame of a chat stream.
type Event struct {
	Data string
	Err  bool
}

// ErrorEvent builds an error-tagged frame.
func ErrorEvent(text string) Event {
	return Event{Data: text, Err: true}
}

// ExitError reports an agent run that finished unsuccessfully. Stderr holds
// only the diagnostic text worth showing to a user, never log lines.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("agent exited with status %d", e.Code)
}

var logMarkers = []string{" - INFO - ", " - ERROR - ", " - WARNING - ", " - DEBUG - ", " - CRITICAL - "}

// IsLogLine reports whether line is agent log output rather than payload.
func IsLogLine(line string) bool {
	for _, m := range logMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}
