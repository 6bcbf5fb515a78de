package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"delta-hedge-bot/internal/events"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"

	defaultBuffer = 64
	writeTimeout  = 5 * time.Second
)

// Source hands out event subscriptions. The engine queues a status snapshot
// as the first event of each one.
type Source interface {
	Subscribe(buffer int) *events.Subscription
}

// Server streams engine events to websocket clients. Events are sent as
// JSON text frames, or msgpack binary frames when the client connects with
// ?format=msgpack.
type Server struct {
	source         Source
	pingInterval   time.Duration
	buffer         int
	originPatterns []string
	log            *zap.Logger
}

func NewServer(source Source, pingInterval time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{source: source, pingInterval: pingInterval, buffer: defaultBuffer, log: log}
}

// AllowOrigins permits cross-origin dashboards matching the patterns.
func (s *Server) AllowOrigins(patterns ...string) {
	s.originPatterns = append(s.originPatterns, patterns...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatMsgpack {
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.log.Warn("ws accept failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "") }()

	sub := s.source.Subscribe(s.buffer)
	defer sub.Close()

	// Clients never send data; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	go s.pingLoop(ctx, conn)

	s.log.Debug("ws client connected", zap.String("remote", r.RemoteAddr), zap.String("format", format))
	err = s.writeLoop(ctx, conn, sub, format)
	s.logWriteLoopEnd(err)
	if errors.Is(err, errSubscriptionClosed) {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *events.Subscription, format string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return errSubscriptionClosed
			}
			if err := writeEvent(ctx, conn, ev, format); err != nil {
				return err
			}
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if s.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) logWriteLoopEnd(err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		s.log.Debug("ws client disconnected", zap.Error(err))
		return
	}
	if errors.Is(err, errSubscriptionClosed) {
		s.log.Info("ws stream closed")
		return
	}
	s.log.Warn("ws write loop ended", zap.Error(err))
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event, format string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if format == FormatMsgpack {
		data, err := msgpack.Marshal(ev)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageBinary, data)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
