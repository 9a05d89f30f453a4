// Package ws is the session lifecycle layer: it turns each websocket
// connection into a relay session with an opaque uuid handle, pumps JSON
// envelopes both ways, and guarantees registry cleanup on any exit path.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"pqrelay/domain/event"
	"pqrelay/relay"
)

type Server struct {
	log        *slog.Logger
	router     *relay.Router
	bufferSize int
}

func NewServer(log *slog.Logger, router *relay.Router, bufferSize int) *Server {
	return &Server{log: log, router: router, bufferSize: bufferSize}
}

// ServeHTTP upgrades the request and runs the session until the client
// goes away. The handle it issues has no meaning after disconnect and is
// never reused while the connection is open.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	handle := uuid.NewString()
	sink := NewSink(s.bufferSize)
	s.router.Connect(handle, sink)
	// Disconnect with a fresh context: the peer-left notice and presence
	// rebroadcast must go out even though this request is already done.
	defer s.router.Disconnect(context.Background(), handle)
	defer conn.Close(websocket.StatusInternalError, "session closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writePump(ctx, cancel, conn, sink)

	for {
		var env event.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.log.Debug("session closed by client", "handle", handle)
			} else {
				s.log.Debug("session read ended", "handle", handle, "error", err)
			}
			return
		}
		s.router.Handle(ctx, handle, env)
	}
}

func (s *Server) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sink *Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-sink.Events():
			if err := wsjson.Write(ctx, conn, out); err != nil {
				// The read loop will observe the dead connection; stop the
				// session now so it does not keep queueing.
				cancel()
				return
			}
		}
	}
}
