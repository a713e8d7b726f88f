package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SVAnbarasan/ZeroByX/adapters/search"
	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/usecase"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the web and print a summarized answer",
	Long: `search queries SerpAPI and asks the summarizer model for an answer.
The query is taken from the arguments, or from stdin when it is piped.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if query == "" && stdinIsPipe() {
		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		query = string(in)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	gen, err := newLlm(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	searcher := search.NewSerpAPI(cfg.SerpAPIKey, search.WithTimeout(cfg.SearchTimeout))
	answer := usecase.NewSearchService(searcher, gen, cfg.SearchModel, cfg.ModelTimeout).Summarize(cmd.Context(), query)
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func stdinIsPipe() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice == 0
}
