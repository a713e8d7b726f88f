package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

// ConcurrencyLimit caps in-flight requests at max and answers 429 beyond it.
func ConcurrencyLimit(max int) echo.MiddlewareFunc {
	semaphore := make(chan struct{}, max)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
				return next(c)
			default:
				return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "Too many concurrent requests"})
			}
		}
	}
}

// RequestContext copies the request id assigned by echo's RequestID
// middleware into the request context so log.WithCtx picks it up.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			id = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if id != "" {
			ctx := context.WithValue(c.Request().Context(), log.RequestIDKey, id)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

// PreflightStatus answers OPTIONS requests with 200 instead of the 204 echo's
// CORS middleware writes for browser preflights. It must run before CORS.
func PreflightStatus(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodOptions {
			res := c.Response()
			res.Before(func() {
				if res.Status == http.StatusNoContent {
					res.Status = http.StatusOK
				}
			})
		}
		return next(c)
	}
}
