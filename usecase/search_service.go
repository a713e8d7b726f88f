package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	searchCommand = "/search"
	minQueryLen   = 2
)

const (
	GuidanceShortQuery = "Please provide a more detailed search query."

	GuidanceNoResults = `I couldn't find any relevant information for your search. This could be due to:
1. The search query being too specific or complex
2. Network or API limitations
3. No available information on the topic

Please try:
- Simplifying your search terms
- Using different keywords
- Checking your internet connection
- Trying again in a few moments`

	GuidanceFailure = `I encountered an error while processing your search. This could be due to:
1. Temporary service interruption
2. Network connectivity issues
3. High server load

Please try:
1. Checking your internet connection
2. Waiting a few moments and trying again
3. Using simpler search terms
4. Contacting support if the issue persists`
)

const summarizerPrompt = `You are an AI assistant that provides concise and insightful summaries based on real-time search results.
Your response should:
1. Start with a brief overview of what you found
2. Highlight the most relevant information
3. Include key insights or interesting findings
4. End with a helpful suggestion or next step
Format your response in clear paragraphs with proper spacing.`

// SearchService answers a query from web search results and a summarizer.
type SearchService struct {
	searcher    domain.Searcher
	llm         domain.Llm
	model       string
	temperature float64
	timeout     time.Duration
}

// NewSearchService returns a service whose summarizer call is bounded by
// timeout. A timed out summary falls back to the raw results.
func NewSearchService(searcher domain.Searcher, gen domain.Llm, model string, timeout time.Duration) *SearchService {
	return &SearchService{searcher: searcher, llm: gen, model: model, temperature: 0.7, timeout: timeout}
}

// Summarize never fails: every problem becomes user-facing guidance text.
func (s *SearchService) Summarize(ctx context.Context, query string) (answer string) {
	logger := log.WithCtx(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Search panicked", zap.Any("panic", r))
			answer = GuidanceFailure
		}
	}()

	query = StripSearchCommand(query)
	if len([]rune(query)) < minQueryLen {
		return GuidanceShortQuery
	}

	results, err := s.searcher.Search(ctx, query)
	if err != nil {
		logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		return GuidanceNoResults
	}
	if len(results) == 0 {
		logger.Info("No search results", zap.String("query", query))
		return GuidanceNoResults
	}

	formatted := FormatResults(results)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	summary, err := s.llm.Generate(callCtx, domain.LlmRequest{
		Model:       s.model,
		System:      summarizerPrompt,
		Prompt:      fmt.Sprintf("User asked: %s\n\nHere are the search results:\n%s\n\nPlease provide a well-structured, engaging summary that helps the user understand the topic better.", query, formatted),
		Temperature: s.temperature,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		logger.Warn("Summarizer failed, returning raw results", zap.Error(err))
		return fmt.Sprintf("Here are the search results I found:\n\n%s\n\nPlease review these results and let me know if you'd like more information on any specific aspect.", formatted)
	}
	return summary
}

// FormatResults renders results as Title/Snippet/Link blocks.
func FormatResults(results []domain.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nSnippet: %s\nLink: %s",
			orDefault(r.Title, "No title"),
			orDefault(r.Snippet, "No description"),
			orDefault(r.Link, "No link"),
		))
	}
	return strings.Join(blocks, "\n\n")
}

// StripSearchCommand removes a leading "/search" command and surrounding space.
func StripSearchCommand(query string) string {
	query = strings.TrimSpace(query)
	if rest, ok := strings.CutPrefix(query, searchCommand); ok && (rest == "" || rest[0] == ' ') {
		query = strings.TrimSpace(rest)
	}
	return query
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
