package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

// DefaultCommandTimeout bounds a command round trip to the extension.
const DefaultCommandTimeout = 5 * time.Second

// IncomingMsg is a message from the extension: either a tab lifecycle event
// or the response to a command (matched by ID).
type IncomingMsg struct {
	Type   string          `json:"type,omitempty"`
	TabID  int             `json:"tabId,omitempty"`
	Status string          `json:"status,omitempty"`
	Tab    json.RawMessage `json:"tab,omitempty"`
	Tabs   json.RawMessage `json:"tabs,omitempty"`
	Group  json.RawMessage `json:"group,omitempty"`
	Groups json.RawMessage `json:"groups,omitempty"`
	// Command response fields
	ID      string `json:"id,omitempty"`
	OK      *bool  `json:"ok,omitempty"`
	Error   string `json:"error,omitempty"`
	GroupID *int   `json:"groupId,omitempty"`
}

// OutgoingMsg is a command from the daemon to the extension.
type OutgoingMsg struct {
	ID            string  `json:"id"`
	Action        string  `json:"action"`
	TabID         int     `json:"tabId,omitempty"`
	TabIDs        []int   `json:"tabIds,omitempty"`
	GroupID       *int    `json:"groupId,omitempty"`
	CurrentWindow bool    `json:"currentWindow,omitempty"`
	Title         *string `json:"title,omitempty"`
	Color         *string `json:"color,omitempty"`
	Collapsed     *bool   `json:"collapsed,omitempty"`
}

// Server manages the WebSocket connection to the extension and implements
// host.Host on top of it.
type Server struct {
	port    int
	timeout time.Duration
	events  *eventQueue

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	calls   map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		timeout: DefaultCommandTimeout,
		events:  newEventQueue(),
		calls:   make(map[string]chan IncomingMsg),
	}
}

// SetCommandTimeout changes how long Call waits for a response.
func (s *Server) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Events returns the channel of tab lifecycle events from the extension,
// in arrival order.
func (s *Server) Events() <-chan types.Event {
	return s.events.out
}

// Close stops event delivery. Events not yet received are discarded.
func (s *Server) Close() {
	s.events.close()
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes a command to the connected extension without waiting for a
// response.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn, ctx := s.conn, s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return host.ErrNotConnected
	}
	return write(ctx, conn, msg)
}

func write(ctx context.Context, conn *websocket.Conn, msg OutgoingMsg) error {
	applog.Debug("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Call sends a command and waits for the response carrying the same ID.
// A response with ok=false is returned as a *host.Error. The call fails
// with host.ErrNotConnected as soon as the connection it was sent on
// closes or is replaced.
func (s *Server) Call(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	msg.ID = uuid.NewString()
	ch := make(chan IncomingMsg, 1)

	s.mu.Lock()
	conn, connCtx := s.conn, s.connCtx
	if conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, host.ErrNotConnected
	}
	s.calls[msg.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.calls, msg.ID)
		s.mu.Unlock()
	}()

	if err := write(connCtx, conn, msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return IncomingMsg{}, host.ErrNotConnected
		}
		if resp.OK != nil && !*resp.OK {
			return resp, &host.Error{Action: msg.Action, Message: resp.Error}
		}
		return resp, nil
	case <-timer.C:
		return IncomingMsg{}, fmt.Errorf("%s: timed out after %s", msg.Action, s.timeout)
	case <-ctx.Done():
		return IncomingMsg{}, ctx.Err()
	}
}

// failCalls closes every pending call channel. Requires s.mu.
func (s *Server) failCalls() {
	for id, ch := range s.calls {
		close(ch)
		delete(s.calls, id)
	}
}

// Handler returns an http.Handler that accepts the extension's WebSocket.
// A new connection replaces the previous one.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // large sessions send big tab listings

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			// Every pending call went out on the old socket.
			applog.Info("ws.replaced", "failed_calls", len(s.calls))
			s.failCalls()
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
				s.failCalls()
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			s.dispatch(msg)
		}
	})
}

// dispatch routes responses to their waiting Call and queues events for
// Events. It never blocks.
func (s *Server) dispatch(msg IncomingMsg) {
	if msg.ID != "" {
		s.mu.Lock()
		ch, ok := s.calls[msg.ID]
		if ok {
			delete(s.calls, msg.ID)
		}
		s.mu.Unlock()
		if ok {
			ch <- msg
			return
		}
	}

	ev, isEvent, err := ParseEvent(msg)
	if err != nil {
		applog.Error("ws.event", err, "type", msg.Type)
		return
	}
	if !isEvent {
		applog.Debug("ws.recv.unknown", "type", msg.Type, "id", msg.ID)
		return
	}
	applog.Debug("ws.recv", "type", msg.Type, "tab", ev.TabID)
	s.events.push(ev)
}

// ListenAndServe serves the extension bridge, the popup endpoint and the
// JSON API on the configured port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, req Requests) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: s.Router(req)}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
