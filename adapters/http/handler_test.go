package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SVAnbarasan/ZeroByX/config"
	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

type fakeRunner struct {
	mu       sync.Mutex
	lines    []string
	err      error
	personas []string
	messages []string
}

func (r *fakeRunner) Run(ctx context.Context, personaID, message string, emit func(string) error) error {
	r.mu.Lock()
	r.personas = append(r.personas, personaID)
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	for _, l := range r.lines {
		if err := emit(l); err != nil {
			return err
		}
	}
	return r.err
}

func (r *fakeRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.personas)
}

type noResults struct{}

func (noResults) Search(context.Context, string) ([]domain.SearchResult, error) { return nil, nil }

type unusedLlm struct{}

func (unusedLlm) Generate(context.Context, domain.LlmRequest) (string, error) { return "", nil }
func (unusedLlm) Stream(context.Context, domain.LlmRequest, func(string) error) error {
	return nil
}

func newTestServer(t *testing.T, runner domain.Runner, auth *Auth) *echo.Echo {
	t.Helper()
	personas, err := config.LoadPersonas("", "")
	require.NoError(t, err)

	h := NewHandler(
		usecase.NewChatService(runner, time.Minute),
		usecase.NewSearchService(noResults{}, unusedLlm{}, "m", time.Minute),
		personas,
		func() int { return 3 },
	)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	h.Register(e, auth, func(c echo.Context) error { return c.String(http.StatusOK, "ws") }, 10)
	return e
}

func do(e *echo.Echo, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChat_StreamsFilteredRenderedLines(t *testing.T) {
	runner := &fakeRunner{lines: []string{
		"2024-01-01 10:00:00,000 - INFO - Processing request",
		"",
		"## Defense",
		"- Use **MFA**",
		"Agent Theta θ",
	}}
	e := newTestServer(t, runner, nil)

	rec := do(e, http.MethodPost, "/theta", `{"message":"How do I stop phishing?","model":"theta"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"data: <h2 class=\"section-header\">Defense</h2>\n\n"+
			"data: <div class=\"bullet-item\"><span class=\"bullet\">•</span> Use <strong>MFA</strong></div>\n\n"+
			"data: Agent Theta θ\n\n",
		rec.Body.String())
	assert.Equal(t, []string{"theta"}, runner.personas)
	assert.Equal(t, []string{"How do I stop phishing?"}, runner.messages)
}

func TestChat_ModelCheck(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "mismatch", path: "/theta", body: `{"message":"hi","model":"seneca"}`, status: http.StatusBadRequest},
		{name: "case insensitive", path: "/epsilon", body: `{"message":"hi","model":"Epsilon"}`, status: http.StatusOK},
		{name: "missing model uses route", path: "/seneca", body: `{"message":"hi"}`, status: http.StatusOK},
		{name: "bad json", path: "/theta", body: `{"message":`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{lines: []string{"ok"}}
			e := newTestServer(t, runner, nil)

			rec := do(e, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				assert.Zero(t, runner.calls())
				var body errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestChat_MismatchMessage(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)
	rec := do(e, http.MethodPost, "/theta", `{"message":"hi","model":"epsilon"}`)
	assert.JSONEq(t, `{"error":"Incorrect endpoint for model type"}`, rec.Body.String())
}

func TestChat_ErrorFrame(t *testing.T) {
	runner := &fakeRunner{
		lines: []string{"partial"},
		err:   &domain.ExitError{Code: 1, Stderr: "Traceback\nValueError: boom"},
	}
	e := newTestServer(t, runner, nil)

	rec := do(e, http.MethodPost, "/theta", `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: partial\n\ndata: Error: Traceback ValueError: boom\n\n", rec.Body.String())
}

func TestPreflight(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)
	for _, path := range []string{"/theta", "/seneca", "/epsilon", "/search"} {
		rec := do(e, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
	}
}

func TestPreflight_BrowserPreflightThroughCORS(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)
	e.Use(PreflightStatus)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	for _, path := range []string{"/theta", "/search"} {
		rec := do(e, http.MethodOptions, path, "",
			echo.HeaderOrigin, "http://localhost:3000",
			echo.HeaderAccessControlRequestMethod, http.MethodPost,
		)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Body.String(), path)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin), path)
	}
}

func TestSearch_StreamsGuidance(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)

	rec := do(e, http.MethodPost, "/search", `{"message":"/search x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: "+usecase.GuidanceShortQuery+"\n\n", rec.Body.String())

	rec = do(e, http.MethodPost, "/search", `{"message":"zero day"}`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "data: I couldn't find any relevant information"))
	assert.Contains(t, rec.Body.String(), "data: <div class=\"numbered-item\"><span class=\"number\">1.</span> The search query")
}

func TestListPersonasAndHealth(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)

	rec := do(e, http.MethodGet, "/personas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var personas []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &personas))
	require.Len(t, personas, 3)
	assert.Equal(t, "theta", personas[0]["id"])
	assert.Equal(t, "Agent Theta θ", personas[0]["label"])
	assert.NotContains(t, rec.Body.String(), "system_prompt")

	rec = do(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(3), health["websocket_clients"])
}

func TestErrorHandler_NotFound(t *testing.T) {
	e := newTestServer(t, &fakeRunner{}, nil)
	rec := do(e, http.MethodPost, "/lily", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

func TestConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	e := echo.New()
	e.GET("/slow", func(c echo.Context) error {
		close(entered)
		<-release
		return c.NoContent(http.StatusOK)
	}, ConcurrencyLimit(1))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestRequestContext(t *testing.T) {
	e := echo.New()
	var got interface{}
	e.GET("/", func(c echo.Context) error {
		got = c.Request().Context().Value(log.RequestIDKey)
		return nil
	}, RequestContext)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc")
	e.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", got)
}
