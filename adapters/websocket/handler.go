package websocket

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

// Handler upgrades the request and serves the connection until it closes.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.WithCtx(c.Request().Context()).Info("Websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := NewClient(context.WithoutCancel(c.Request().Context()), conn, s.handle)
	s.hub.Register(client)
	client.Run()

	<-client.Done()
	s.hub.Unregister(client)
	client.Wait()
	return nil
}
