package usecase

import (
	"bytes"
	"context"
)

// InProcessRunner runs the agent inside the server process, feeding its
// output through the same line pipeline a child process would.
type InProcessRunner struct {
	agent *AgentService
}

func NewInProcessRunner(agent *AgentService) *InProcessRunner {
	return &InProcessRunner{agent: agent}
}

func (r *InProcessRunner) Run(ctx context.Context, personaID, message string, emit func(string) error) error {
	lw := &lineWriter{emit: emit}
	_, err := r.agent.Respond(ctx, personaID, message, lw)
	if ferr := lw.Flush(); err == nil {
		err = ferr
	}
	return err
}

// lineWriter splits writes into newline-terminated lines.
type lineWriter struct {
	buf  bytes.Buffer
	emit func(string) error
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := string(w.buf.Next(idx + 1))
		if err := w.emit(line[:idx]); err != nil {
			return 0, err
		}
	}
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	line := w.buf.String()
	w.buf.Reset()
	return w.emit(line)
}
