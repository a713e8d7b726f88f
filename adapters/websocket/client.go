package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one websocket connection. Reads and writes run on their own
// goroutines; each inbound message is handed to handle on a third, one at a
// time. When handle reports a finished turn the client sends a done frame.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	handle func(*Client, []byte) bool

	busy      atomic.Bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewClient(ctx context.Context, conn *websocket.Conn, handle func(*Client, []byte) bool) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		handle: handle,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close stops the pumps and closes the connection. It is safe to call more
// than once.
func (c *Client) Close() {
	c.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith closes the connection with the given close code and reason.
func (c *Client) CloseWith(code int, reason string) {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.cancel()
		c.conn.Close()
	})
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Wait blocks until every goroutine of the client has returned.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) readPump() {
	defer c.wg.Done()
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}

		if !c.busy.CompareAndSwap(false, true) {
			_ = c.SendJSON(Frame{Type: FrameError, Data: "a reply is already in progress"})
			continue
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			finished := c.handle(c, message)
			c.busy.Store(false)
			if finished {
				_ = c.SendJSON(Frame{Type: FrameDone})
			}
		}()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.wg.Done()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Info("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Info("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendMessage queues message for the write pump. A client that cannot keep
// up is closed.
func (c *Client) SendMessage(message []byte) error {
	select {
	case <-c.ctx.Done():
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return websocket.ErrCloseSent
	default:
		c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Client) SendJSON(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.SendMessage(b)
}
