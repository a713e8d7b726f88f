package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const serviceName = "zerobyx"

type Handler struct {
	chat     *usecase.ChatService
	search   *usecase.SearchService
	personas domain.Personas
	clients  func() int
}

type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type SearchRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler wires the HTTP surface. clients, when set, reports connected
// websocket clients on /health.
func NewHandler(chat *usecase.ChatService, search *usecase.SearchService, personas domain.Personas, clients func() int) *Handler {
	return &Handler{chat: chat, search: search, personas: personas, clients: clients}
}

// Register mounts every route on e. A nil auth leaves all routes open; ws is
// mounted on /ws when set.
func (h *Handler) Register(e *echo.Echo, auth *Auth, ws echo.HandlerFunc, maxConcurrent int) {
	var protected []echo.MiddlewareFunc
	if auth != nil {
		e.POST("/auth/token", auth.GenerateJWT)
		protected = append(protected, auth.JWTMiddleware)
	}
	limited := append(append([]echo.MiddlewareFunc{}, protected...), ConcurrencyLimit(maxConcurrent))

	e.GET("/health", h.HealthCheck)
	e.GET("/personas", h.ListPersonas)

	for _, p := range h.personas.List() {
		e.POST("/"+p.ID, h.Chat(p.ID), limited...)
		e.OPTIONS("/"+p.ID, h.Preflight)
	}
	e.POST("/search", h.Search, limited...)
	e.OPTIONS("/search", h.Preflight)

	if ws != nil {
		e.GET("/ws", ws, protected...)
	}
}

// Chat streams one agent turn for personaID as server-sent events. Once the
// stream has started every failure is reported in-band and the status stays 200.
func (h *Handler) Chat(personaID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ChatRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		}
		if req.Model != "" && !strings.EqualFold(strings.TrimSpace(req.Model), personaID) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Incorrect endpoint for model type"})
		}

		ctx := context.WithValue(c.Request().Context(), log.PersonaKey, personaID)
		logger := log.WithCtx(ctx)
		logger.Info("Chat request", zap.Int("message_len", len(req.Message)))

		sse := startSSE(c)
		if err := h.chat.Stream(ctx, personaID, req.Message, sse.Send); err != nil {
			logger.Info("Stream ended early", zap.Error(err))
		}
		return nil
	}
}

// Search answers a web-search query as a stream of rendered lines.
func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	ctx := c.Request().Context()
	answer := h.search.Summarize(ctx, req.Message)

	sse := startSSE(c)
	if err := usecase.SendText(answer, sse.Send); err != nil {
		log.WithCtx(ctx).Info("Search stream ended early", zap.Error(err))
	}
	return nil
}

func (h *Handler) ListPersonas(c echo.Context) error {
	return c.JSON(http.StatusOK, h.personas.List())
}

func (h *Handler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *Handler) HealthCheck(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
		"personas":  len(h.personas.List()),
	}
	if h.clients != nil {
		body["websocket_clients"] = h.clients()
	}
	return c.JSON(http.StatusOK, body)
}

// ErrorHandler renders every echo error as {"error": "..."}. Errors that are
// not *echo.HTTPError become a 500 without leaking their text.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		log.WithCtx(c.Request().Context()).Error("Unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}
