package web

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const clientBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Message is one websocket frame sent to clients.
type Message struct {
	Type  string `json:"type"` // "session", "value" or "error"
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

type client struct {
	id  string
	out chan []byte
}

// send queues msg for the client. A client that cannot keep up misses values.
func (c *client) send(msg []byte) bool {
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (s *Server) broadcast(name string, v any) {
	data, err := json.Marshal(Message{Type: "value", Name: name, Value: v})
	if err != nil {
		s.logger.Warn("interface value is not JSON encodable", "interface", name, "error", err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if c.send(data) {
			s.metrics.pushed.WithLabelValues(name).Inc()
		} else {
			s.logger.Warn("websocket client too slow, value dropped", "session", c.id, "interface", name)
		}
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	cl := &client{id: uuid.NewString(), out: make(chan []byte, clientBuffer)}
	s.logger.Info("websocket session started", "session", cl.id)

	// Registered before the current values are queued, under the lock that
	// broadcast reads with, so a value set meanwhile is never missed and
	// never overtaken by an older one.
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	cl.send(mustJSON(Message{Type: "session", Value: cl.id}))
	for _, name := range sortedNames(s.streams) {
		if data, err := json.Marshal(Message{Type: "value", Name: name, Value: s.streams[name].Get()}); err == nil {
			cl.send(data)
		}
	}
	s.mu.Unlock()
	s.metrics.wsClients.Inc()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range cl.out {
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warn("failed to write websocket message", "session", cl.id, "error", err)
				return
			}
		}
	}()

	s.readLoop(ws, cl)

	s.mu.Lock()
	delete(s.clients, cl)
	s.mu.Unlock()
	s.metrics.wsClients.Dec()
	close(cl.out)
	<-done
	s.logger.Info("websocket session closed", "session", cl.id)
}

func (s *Server) readLoop(ws *websocket.Conn, cl *client) {
	limiter := rate.NewLimiter(s.cfg.WSRate, s.cfg.WSBurst)
	for {
		var req DispatchRequest
		if err := ws.ReadJSON(&req); err != nil {
			s.logger.Debug("websocket client disconnected", "session", cl.id, "error", err)
			return
		}
		if !limiter.Allow() {
			cl.send(mustJSON(Message{Type: "error", Error: "rate limit exceeded"}))
			continue
		}
		if err := s.validate.Struct(req); err != nil {
			cl.send(mustJSON(Message{Type: "error", Error: err.Error()}))
			continue
		}
		if err := s.dispatch(req); err != nil {
			cl.send(mustJSON(Message{Type: "error", Error: err.Error()}))
		}
	}
}

func mustJSON(m Message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return data
}
