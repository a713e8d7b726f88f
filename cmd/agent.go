package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SVAnbarasan/ZeroByX/adapters/process"
	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Answer one prompt read from stdin as the persona named by AGENT_TYPE",
	Long: `agent is the child process started by the server for every chat turn.
It reads the whole prompt from stdin, streams the model reply to stdout, and
then prints the persona label followed by the full reply. Logs go to stderr.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, _ []string) error {
	log.UseAgentOutput()
	ctx := cmd.Context()
	logger := log.WithCtx(ctx)
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	agent, _, _, err := newAgent(ctx, cfg)
	if err != nil {
		return err
	}

	in, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	_, err = agent.Respond(ctx, os.Getenv(process.AgentTypeEnv), string(in), out)
	switch {
	case errors.Is(err, usecase.ErrNoInput):
		logger.Error("No input provided")
		fmt.Fprintln(out, "Error: No input provided")
		return exitCode(1)
	case errors.Is(err, usecase.ErrNoResponse):
		logger.Error("No response generated")
		fmt.Fprintln(out, "Error: No response generated from model")
		return exitCode(1)
	}
	return err
}
