package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/domain"
	"github.com/SVAnbarasan/ZeroByX/usecase"
	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	FrameChunk = "chunk"
	FrameError = "error"
	FrameDone  = "done"
)

// Inbound is a chat request sent by a websocket client.
type Inbound struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// Frame is one message sent to a websocket client.
type Frame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// Server streams chat turns over websocket connections.
type Server struct {
	upgrader websocket.Upgrader
	chat     *usecase.ChatService
	personas domain.Personas
	hub      *Hub
}

// NewServer accepts connections from origins; "*" allows any origin.
func NewServer(chat *usecase.ChatService, personas domain.Personas, origins []string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(origins)},
		chat:     chat,
		personas: personas,
		hub:      NewHub(),
	}
}

// RunHub blocks until ctx ends.
func (s *Server) RunHub(ctx context.Context) {
	s.hub.Run(ctx)
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// handle runs one chat turn for a raw client message and reports whether the
// turn completed.
func (s *Server) handle(c *Client, raw []byte) bool {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.WithCtx(c.ctx).Info("Invalid websocket message", zap.Error(err))
		c.CloseWith(websocket.CloseUnsupportedData, "invalid message")
		return false
	}

	persona := s.personas.Resolve("")
	if model := strings.TrimSpace(in.Model); model != "" {
		p, ok := s.personas.Lookup(model)
		if !ok {
			_ = c.SendJSON(Frame{Type: FrameError, Data: "unknown model " + model})
			return true
		}
		persona = p
	}

	ctx := context.WithValue(c.ctx, log.PersonaKey, persona.ID)
	err := s.chat.Stream(ctx, persona.ID, in.Message, func(e domain.Event) error {
		if e.Err {
			return c.SendJSON(Frame{Type: FrameError, Data: e.Data})
		}
		return c.SendJSON(Frame{Type: FrameChunk, Data: e.Data})
	})
	if err != nil {
		log.WithCtx(ctx).Info("Websocket stream ended early", zap.Error(err))
		return false
	}
	return true
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
