package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
)

const (
	MessageState = "state"
	MessageEvent = "event"
	MessageError = "error"

	CommandSwing   = "swing"
	CommandReset   = "reset"
	CommandDevMode = "devmode"
)

const (
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Message is pushed from the server to a renderer.
type Message struct {
	Type  string          `json:"type"`
	State *state.Snapshot `json:"state,omitempty"`
	Event *EventPayload   `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

type EventPayload struct {
	Name   string    `json:"name"`
	Source string    `json:"source"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Command is sent from a renderer to the server.
type Command struct {
	Type      string            `json:"type"`
	Overrides *launch.Overrides `json:"overrides,omitempty"`
	ZeroScore bool              `json:"zeroScore,omitempty"`
}

// client owns one websocket. Only its write pump writes to conn.
type client struct {
	id   string
	conn *websocket.Conn

	// dirty holds at most one pending snapshot signal; the pump reads the
	// latest snapshot when it gets to it.
	dirty chan struct{}
	send  chan []byte
	done  chan struct{}
	once  sync.Once

	lastDigest uint64
	hasDigest  bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:    uuid.NewString(),
		conn:  conn,
		dirty: make(chan struct{}, 1),
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
}

func (c *client) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	cl := newClient(conn)
	s.clientsMu.Lock()
	s.clients[cl.id] = cl
	s.clientsMu.Unlock()
	s.logger.Info("Client connected",
		log.String("client", cl.id),
		log.String("remote", conn.RemoteAddr().String()))

	cl.markDirty()
	go s.writePump(cl)
	s.readPump(cl)
}

func (s *Server) removeClient(cl *client) {
	s.clientsMu.Lock()
	delete(s.clients, cl.id)
	s.clientsMu.Unlock()
	cl.close()
	s.logger.Info("Client disconnected", log.String("client", cl.id))
}

func (s *Server) readPump(cl *client) {
	defer s.removeClient(cl)

	pongWait := 2 * s.config.PingInterval
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", log.String("client", cl.id), log.Error(err))
			}
			return
		}
		if err = s.dispatch(data); err != nil {
			s.sendError(cl, err)
		}
	}
}

func (s *Server) dispatch(data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch cmd.Type {
	case CommandSwing:
		return s.ctrl.RequestSwing(cmd.Overrides)
	case CommandReset:
		return s.ctrl.RequestReset(cmd.ZeroScore)
	case CommandDevMode:
		return s.ctrl.ToggleDevMode()
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidMessage, cmd.Type)
	}
}

func (s *Server) sendError(cl *client, err error) {
	data, mErr := json.Marshal(Message{Type: MessageError, Error: err.Error()})
	if mErr != nil {
		return
	}
	if !cl.enqueue(data) {
		s.logger.Warn("client send buffer full, dropping error", log.String("client", cl.id))
	}
}

func (s *Server) writePump(cl *client) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case <-cl.done:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			_ = cl.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-cl.dirty:
			snap := s.ctrl.Snapshot()
			digest := state.Digest(snap)
			if cl.hasDigest && digest == cl.lastDigest {
				continue
			}
			data, err := json.Marshal(Message{Type: MessageState, State: &snap})
			if err != nil {
				s.logger.Error("snapshot encode failed", log.Error(err))
				continue
			}
			if err = s.write(cl, websocket.TextMessage, data); err != nil {
				return
			}
			cl.lastDigest, cl.hasDigest = digest, true

		case data := <-cl.send:
			if err := s.write(cl, websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.write(cl, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(cl *client, messageType int, data []byte) error {
	_ = cl.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := cl.conn.WriteMessage(messageType, data); err != nil {
		s.logger.Warn("websocket write failed", log.String("client", cl.id), log.Error(err))
		return err
	}
	return nil
}

// notifyState runs on the tick goroutine and never blocks.
func (s *Server) notifyState() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, cl := range s.clients {
		cl.markDirty()
	}
}

func (s *Server) forwardEvent(e bus.Event) error {
	data, err := json.Marshal(Message{
		Type:  MessageEvent,
		Event: &EventPayload{Name: e.Type(), Source: e.Source(), Data: e.Data(), At: e.Timestamp()},
	})
	if err != nil {
		return err
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, cl := range s.clients {
		if !cl.enqueue(data) {
			s.logger.Warn("client send buffer full, dropping event",
				log.String("client", cl.id),
				log.String("event", e.Type()))
		}
	}
	return nil
}
