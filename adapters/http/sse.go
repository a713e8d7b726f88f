package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SVAnbarasan/ZeroByX/domain"
)

// sseWriter frames events as server-sent events on an echo response.
type sseWriter struct {
	res *echo.Response
}

func startSSE(c echo.Context) *sseWriter {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()
	return &sseWriter{res: c.Response()}
}

// Send writes one data frame and flushes it. Error events are prefixed with
// "Error: " and folded onto a single line so they stay one frame.
func (w *sseWriter) Send(e domain.Event) error {
	data := e.Data
	if e.Err {
		data = "Error: " + strings.Join(strings.Fields(data), " ")
	}
	if _, err := fmt.Fprintf(w.res, "data: %s\n\n", data); err != nil {
		return err
	}
	w.res.Flush()
	return nil
}
