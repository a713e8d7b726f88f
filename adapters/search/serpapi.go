package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	DefaultEndpoint = "https://serpapi.com/search"
	DefaultTimeout  = 10 * time.Second

	maxResults = 5
	maxBody    = 4 << 20
)

var ErrMissingAPIKey = errors.New("serpapi: missing api key")

// SerpAPI is a domain.Searcher backed by SerpAPI's Google engine.
type SerpAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type Option func(*SerpAPI)

func WithEndpoint(endpoint string) Option {
	return func(s *SerpAPI) { s.endpoint = endpoint }
}

func WithTimeout(d time.Duration) Option {
	return func(s *SerpAPI) { s.client.Timeout = d }
}

// WithRateLimit caps outgoing queries per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *SerpAPI) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func NewSerpAPI(apiKey string, opts ...Option) *SerpAPI {
	s := &SerpAPI{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SerpAPI) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("serpapi: rate limit: %w", err)
	}

	params := url.Values{
		"q":       {query},
		"api_key": {s.apiKey},
		"engine":  {"google"},
		"num":     {fmt.Sprint(maxResults)},
		"gl":      {"us"},
		"hl":      {"en"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi: build request: %w", err)
	}

	log.WithCtx(ctx).Debug("Searching", zap.String("query", query))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("serpapi: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("serpapi: status %d: invalid json", resp.StatusCode)
	}

	doc := gjson.ParseBytes(body)
	if msg := doc.Get("error"); msg.Exists() {
		return nil, fmt.Errorf("serpapi: %s", msg.String())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi: unexpected status %d", resp.StatusCode)
	}
	return parseResults(doc), nil
}

// parseResults takes the top organic results, falling back to the answer box
// and then the knowledge graph.
func parseResults(doc gjson.Result) []domain.SearchResult {
	var results []domain.SearchResult
	doc.Get("organic_results").ForEach(func(_, item gjson.Result) bool {
		results = append(results, domain.SearchResult{
			Title:   item.Get("title").String(),
			Snippet: item.Get("snippet").String(),
			Link:    item.Get("link").String(),
		})
		return len(results) < maxResults
	})
	if len(results) > 0 {
		return results
	}

	if box := doc.Get("answer_box"); box.IsObject() {
		snippet := box.Get("answer").String()
		if snippet == "" {
			snippet = box.Get("snippet").String()
		}
		return []domain.SearchResult{{
			Title:   firstNonEmpty(box.Get("title").String(), "Answer Box"),
			Snippet: snippet,
			Link:    box.Get("link").String(),
		}}
	}

	if kg := doc.Get("knowledge_graph"); kg.IsObject() {
		return []domain.SearchResult{{
			Title:   firstNonEmpty(kg.Get("title").String(), "Knowledge Graph"),
			Snippet: kg.Get("description").String(),
			Link:    firstNonEmpty(kg.Get("website").String(), kg.Get("source.link").String()),
		}}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
