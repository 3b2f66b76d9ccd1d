// File: internal/server/ws.go
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/command"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback; cross-origin pages cannot reach it
	// without the user deliberately exposing it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
	// Send buffer size.
	sendChannelSize = 64
)

// wsClient is one active command connection. Envelopes arrive on the read
// pump, queue into a single dispatch worker so commands run in submission
// order, and results flow back through the write pump, which is the only
// goroutine that writes to the connection.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	queue  chan command.Envelope
	send   chan command.Result

	// closed once the read pump exits, releasing in-flight dispatches.
	done     chan struct{}
	doneOnce sync.Once

	// tracks the dispatch worker.
	wg sync.WaitGroup
}

// handleCommandSocket upgrades the connection and runs the pumps. It blocks
// until the peer disconnects.
func (s *Server) handleCommandSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed.", zap.Error(err))
		return
	}
	s.log.Info("Command socket connected.", zap.String("remote", r.RemoteAddr))

	client := &wsClient{
		server: s,
		conn:   conn,
		queue:  make(chan command.Envelope, sendChannelSize),
		send:   make(chan command.Result, sendChannelSize),
		done:   make(chan struct{}),
	}

	go client.writePump()
	client.wg.Add(1)
	go client.dispatchLoop()
	client.readPump()

	close(client.queue)
	client.wg.Wait()
	close(client.send)
	s.log.Debug("Command socket closed.", zap.String("remote", r.RemoteAddr))
}

// readPump decodes envelopes off the connection until it closes. Dispatch
// happens on the worker so a slow page interaction does not stall pong
// handling, and a message that is not valid JSON answers with a failed
// result instead of dropping the connection.
func (c *wsClient) readPump() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.log.Error("Failed to set read deadline.", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("Command socket closed unexpectedly.", zap.Error(err))
			}
			return
		}

		var env command.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.reply(command.Result{
				Success:   false,
				Message:   "malformed command envelope: " + err.Error(),
				ErrorKind: command.KindInvalidArgument,
			})
			continue
		}

		select {
		case c.queue <- env:
		case <-c.done:
			return
		}
	}
}

// dispatchLoop runs queued envelopes one at a time, preserving the order the
// peer submitted them in.
func (c *wsClient) dispatchLoop() {
	defer c.wg.Done()
	for env := range c.queue {
		c.dispatch(env)
	}
}

func (c *wsClient) dispatch(env command.Envelope) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.reply(c.server.dispatcher.Dispatch(ctx, env))
}

func (c *wsClient) reply(result command.Result) {
	select {
	case c.send <- result:
	case <-c.done:
	}
}

// writePump serializes all writes to the connection and keeps it alive with
// periodic pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case result, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(result); err != nil {
				c.server.log.Warn("Failed to write result to socket.", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
