// Package process runs one agent child process per chat turn.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	AgentTypeEnv = "AGENT_TYPE"

	agentSubcommand = "agent"
	maxStderr       = 64 * 1024
	waitDelay       = 2 * time.Second
	errorPrefix     = "Error:"
)

// Relay starts the agent command for every Run and relays its stdout line by
// line. It is safe for concurrent use; each Run owns its own child.
type Relay struct {
	command []string
}

// NewRelay returns a relay for command. An empty command re-executes the
// running binary with the agent subcommand.
func NewRelay(command []string) (*Relay, error) {
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		command = []string{self, agentSubcommand}
	}
	return &Relay{command: command}, nil
}

// Run writes message to the child's stdin, closes it, and calls emit for
// every stdout line as soon as it is read. The child is killed when ctx ends
// or emit fails. A non-zero exit is reported as *domain.ExitError carrying the
// child's stderr minus log lines.
func (r *Relay) Run(ctx context.Context, personaID, message string, emit func(string) error) error {
	logger := log.WithCtx(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.command[0], r.command[1:]...)
	cmd.Env = append(os.Environ(), AgentTypeEnv+"="+personaID)
	cmd.Stdin = strings.NewReader(message)
	stderr := &tailBuffer{max: maxStderr}
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	logger.Debug("Agent started", zap.Int("pid", cmd.Process.Pid), zap.String("agent_type", personaID))

	emitErr := readLines(stdout, emit)
	if emitErr != nil {
		cancel()
	}
	waitErr := cmd.Wait()

	switch {
	case emitErr != nil:
		return emitErr
	case ctx.Err() != nil:
		logger.Info("Agent stopped", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		logger.Warn("Agent exited with error", zap.Int("code", exitErr.ExitCode()))
		return &domain.ExitError{Code: exitErr.ExitCode(), Stderr: diagnostics(stderr.String())}
	}
	if waitErr != nil {
		return fmt.Errorf("wait agent: %w", waitErr)
	}
	return nil
}

// readLines hands every line of rd to emit. It stops at EOF, at a read
// error once the pipe is closed, or at the first emit error, which it returns.
func readLines(rd io.Reader, emit func(string) error) error {
	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if eerr := emit(strings.TrimRight(line, "\r\n")); eerr != nil {
				return eerr
			}
		}
		if err != nil {
			return nil
		}
	}
}

// diagnostics keeps the stderr lines worth showing a user. A leading
// "Error:" is dropped since error events are framed with their own prefix.
func diagnostics(stderr string) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || domain.IsLogLine(line) {
			continue
		}
		if rest, ok := strings.CutPrefix(line, errorPrefix); ok {
			if line = strings.TrimSpace(rest); line == "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
