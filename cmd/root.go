// Package cmd holds the zerobyx command line: the HTTP server, the agent
// child process, a one-shot search, and an interactive chat client.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SVAnbarasan/ZeroByX/adapters/cache"
	"github.com/SVAnbarasan/ZeroByX/adapters/llm"
	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

var rootCmd = &cobra.Command{
	Use:   "zerobyx",
	Short: "Multi-persona security chat backend",
	Long: `zerobyx serves one chat endpoint per security persona (defensive
educator, red-team assistant, threat-intel analyst) and streams model output
back as server-sent events.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// exitCode ends the process with a status once the command has already
// reported the problem itself.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// newLlm builds the model client selected by LLM_PROVIDER.
func newLlm(ctx context.Context, cfg *config.Config) (domain.Llm, error) {
	switch cfg.LlmProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for LLM_PROVIDER=gemini")
		}
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return llm.NewOllamaClient(cfg.OllamaURL), nil
	}
}

func newPromptCache(cfg *config.Config) domain.PromptCache {
	if !cfg.PromptCacheEnabled {
		return cache.Nop{}
	}
	return cache.NewLRU(cfg.PromptCacheSize)
}

// newAgent wires the persona registry, model client, and prompt cache.
func newAgent(ctx context.Context, cfg *config.Config) (*usecase.AgentService, *config.PersonaSet, domain.Llm, error) {
	personas, err := config.LoadPersonas(cfg.PersonasFile, cfg.DefaultPersona)
	if err != nil {
		return nil, nil, nil, err
	}
	gen, err := newLlm(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	agent := usecase.NewAgentService(gen, personas, newPromptCache(cfg), cfg.ModelTimeout)
	return agent, personas, gen, nil
}
