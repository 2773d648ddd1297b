package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"quiz-arena/internal/app"
	"quiz-arena/internal/protocol"
)

const (
	maxFrameSize = 64 * 1024
	writeTimeout = 10 * time.Second
)

// Handler is the session-level surface the server drives.
type Handler interface {
	Connect(addr string) *app.Session
	Handle(ctx context.Context, s *app.Session, frame []byte)
	Disconnect(ctx context.Context, s *app.Session)
}

// Server accepts newline-delimited JSON streams. Each connection gets a reader
// goroutine feeding the handler and a writer goroutine draining the session.
type Server struct {
	addr    string
	handler Handler
	log     *slog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func NewServer(addr string, handler Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{addr: addr, handler: handler, log: log}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. It returns once every
// connection it accepted has been released.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.InfoContext(ctx, "tcp: listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.InfoContext(ctx, "tcp: listener closed", "addr", ln.Addr().String())
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr is the bound listener address, once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	addr := conn.RemoteAddr().String()
	session := s.handler.Connect(addr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		for env := range session.Outbox() {
			frame, err := protocol.Encode(env)
			if err != nil {
				s.log.Warn("tcp: encode failed", "type", env.Type, "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := conn.Write(frame); err != nil {
				s.log.Debug("tcp: write failed", "addr", addr, "error", err)
				return
			}
		}
	}()

	reader := bufio.NewReaderSize(conn, 4096)
	for {
		frame, oversize, err := readFrame(reader)
		if oversize {
			s.log.Debug("tcp: dropped oversize frame", "addr", addr, "limit", maxFrameSize)
		} else if line := bytes.TrimSpace(frame); len(line) > 0 {
			s.handler.Handle(ctx, session, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("tcp: read failed", "addr", addr, "error", err)
			}
			break
		}
	}

	s.handler.Disconnect(context.WithoutCancel(ctx), session)
	<-writerDone
}

// readFrame returns the next newline-terminated frame without its newline.
// A frame longer than maxFrameSize is consumed up to its newline and reported
// as oversize so the stream stays aligned on frame boundaries.
func readFrame(r *bufio.Reader) ([]byte, bool, error) {
	var frame []byte
	oversize := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversize {
			body := bytes.TrimSuffix(chunk, []byte{'\n'})
			if len(frame)+len(body) > maxFrameSize {
				oversize = true
				frame = nil
			} else {
				frame = append(frame, body...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return frame, oversize, err
	}
}
