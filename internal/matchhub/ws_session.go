package matchhub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pairgogo/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// WebSocketSession implements Session over a gorilla/websocket connection.
// The read pump parses commands and calls the matchmaking service; the
// write pump drains the send channel into the socket.
type WebSocketSession struct {
	UserID  string
	Conn    *websocket.Conn
	Service *Service
	Send    chan models.Event
	Logger  *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketSession wraps an upgraded connection.
func NewWebSocketSession(userID string, conn *websocket.Conn, svc *Service, logger *zap.Logger) *WebSocketSession {
	return &WebSocketSession{
		UserID:  userID,
		Conn:    conn,
		Service: svc,
		Send:    make(chan models.Event, 256),
		Logger:  logger,
		done:    make(chan struct{}),
	}
}

func (c *WebSocketSession) GetUserID() string                   { return c.UserID }
func (c *WebSocketSession) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts both pumps.
func (c *WebSocketSession) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals the write pump to stop. The send channel itself is never
// closed so concurrent deliveries can never hit a closed channel; buffered
// events are simply abandoned. Safe to call from both the disconnect path
// and a superseding registration.
func (c *WebSocketSession) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketSession) readPump() {
	defer func() {
		c.Service.HandleDisconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn("websocket read error",
					zap.String("user_id", c.UserID), zap.Error(err))
			}
			break
		}

		var cmd models.Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.Logger.Warn("malformed command",
				zap.String("user_id", c.UserID), zap.Error(err))
			c.sendError("malformed command")
			continue
		}

		c.dispatch(cmd)
	}
}

// dispatch routes one inbound command into the facade. Errors are reported
// back on the session, never escalated.
func (c *WebSocketSession) dispatch(cmd models.Command) {
	switch cmd.Action {
	case models.ActionStartSearch:
		criteria := models.SearchCriteria{
			Interests:    cmd.Interests,
			Gender:       cmd.Gender,
			TargetGender: cmd.TargetGender,
		}
		if err := c.Service.StartSearch(c.UserID, criteria); err != nil {
			c.sendError(err.Error())
		}
	case models.ActionCancelSearch:
		c.Service.CancelSearch(c.UserID)
	case models.ActionDecision:
		if err := c.Service.SubmitDecision(cmd.ProposalID, c.UserID, cmd.Accept); err != nil {
			c.sendError(err.Error())
		}
	default:
		c.sendError("unknown action: " + cmd.Action)
	}
}

func (c *WebSocketSession) sendError(content string) {
	select {
	case c.Send <- models.Event{Type: models.EventError, Content: content}:
	default:
	}
}

func (c *WebSocketSession) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(ev)
			if err != nil {
				c.Logger.Warn("failed to encode event",
					zap.String("user_id", c.UserID), zap.Error(err))
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush whatever else is already buffered into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next := <-c.Send
				extra, _ := json.Marshal(next)
				w.Write([]byte("\n"))
				w.Write(extra)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
