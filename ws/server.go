// Package ws is the websocket transport of the chat core: one reader and
// one writer goroutine per connection, JSON envelopes in both directions.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sodeclick-chat/contract"
	"sodeclick-chat/errors"
	"sodeclick-chat/observability"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	AllowedOrigins []string
	BufferSize     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxFrameSize   int64
}

type Server struct {
	log      *slog.Logger
	service  contract.ChatService
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	options  Options
}

// NewServer builds the /ws handler. metrics may be nil.
func NewServer(log *slog.Logger, service contract.ChatService, metrics *observability.Metrics, options Options) *Server {
	if options.BufferSize <= 0 {
		options.BufferSize = 64
	}
	if options.PingInterval <= 0 {
		options.PingInterval = 30 * time.Second
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = 10 * time.Second
	}
	return &Server{
		log:      log,
		service:  service,
		metrics:  metrics,
		upgrader: createUpgrader(options.AllowedOrigins),
		options:  options,
	}
}

// createUpgrader only accepts origins of the allow-list.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return allowedMap[r.Header.Get("Origin")]
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", "error", err, "origin", r.Header.Get("Origin"))
		return
	}
	connectionID := uuid.NewString()
	sink := NewSink(s.options.BufferSize)
	ctx := r.Context()
	s.log.Debug("Connection opened", "connection_id", connectionID, "remote", r.RemoteAddr)

	go s.writePump(conn, sink, connectionID)
	s.readPump(ctx, conn, sink, connectionID)

	// The request context may already be canceled here
	s.service.Disconnect(context.WithoutCancel(ctx), connectionID)
	sink.Close()
	s.log.Debug("Connection closed", "connection_id", connectionID)
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sink *Sink, connectionID string) {
	pongWait := 2 * s.options.PingInterval
	if s.options.MaxFrameSize > 0 {
		conn.SetReadLimit(s.options.MaxFrameSize)
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Connection lost", "connection_id", connectionID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := parseEnvelope(frame)
		if err == nil {
			if s.metrics != nil {
				s.metrics.EventsReceived.WithLabelValues(knownEvent(env.Event)).Inc()
			}
			err = dispatch(ctx, s.service, connectionID, sink, env)
		}
		if err != nil {
			s.reply(ctx, sink, connectionID, err)
		}
	}
}

// reply sends client-facing errors back on the originating connection only.
func (s *Server) reply(ctx context.Context, sink *Sink, connectionID string, err error) {
	if !errors.IsClientFacing(err) {
		s.log.Warn("Event failed", "connection_id", connectionID, "error", err)
		return
	}
	s.log.Debug("Event rejected", "connection_id", connectionID, "error", err)
	if err := sink.Consume(ctx, s.service.ErrorEvent(err)); err != nil {
		s.log.Warn("Unable to report error", "connection_id", connectionID, "error", err)
	}
}

// writePump owns every write on the connection.
func (s *Server) writePump(conn *websocket.Conn, sink *Sink, connectionID string) {
	ticker := time.NewTicker(s.options.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case e := <-sink.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("Write failed", "connection_id", connectionID, "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.options.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-sink.Done():
			deadline := time.Now().Add(s.options.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"), deadline)
			return
		}
	}
}
