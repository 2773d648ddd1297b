package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quiz-arena/internal/app"
)

const writeTimeout = 10 * time.Second

// Handler is the session-level surface the gateway drives.
type Handler interface {
	Connect(addr string) *app.Session
	Handle(ctx context.Context, s *app.Session, frame []byte)
	Disconnect(ctx context.Context, s *app.Session)
}

// Gateway carries the stream protocol over WebSocket, one JSON record per
// text frame, and serves the operational endpoints.
type Gateway struct {
	handler  Handler
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewGateway(handler Handler, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		handler: handler,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes mounts /ws, /healthz and /metrics.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves Routes on addr until ctx is done.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	g.log.InfoContext(ctx, "http: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	g.log.InfoContext(ctx, "http: stopped", "addr", addr)
	return nil
}

// ServeWS upgrades the request and runs the session until either side closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("ws: upgrade failed", "error", err)
		return
	}
	ctx := r.Context()
	session := g.handler.Connect(r.RemoteAddr)

	// one writer per connection; gorilla does not allow concurrent writes
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		for env := range session.Outbox() {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				g.log.Debug("ws: write failed", "addr", r.RemoteAddr, "error", err)
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		g.handler.Handle(ctx, session, data)
	}

	g.handler.Disconnect(context.WithoutCancel(ctx), session)
	<-writerDone
}
