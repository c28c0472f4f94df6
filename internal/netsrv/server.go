package netsrv

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/minidb-go/minidb/internal/storage"
)

// Server accepts TCP connections and hands each one to its own Session:
// a listener, one goroutine per connection, and a graceful-stop channel,
// using a plain line protocol rather than a binary wire protocol over a
// custom transport.
type Server struct {
	eng      *storage.Engine
	listener net.Listener

	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer binds addr and returns a Server ready to Serve.
func NewServer(eng *storage.Engine, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{eng: eng, listener: ln, shutdownCh: make(chan struct{})}, nil
}

// Addr reports the bound address (useful when addr was passed as
// "host:0" for an ephemeral port in tests).
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled or a client sends the
// out-of-band "shutdown" word, then waits for in-flight sessions to
// finish. It returns nil on a graceful stop and the accept error
// otherwise.
func (s *Server) Serve(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.requestShutdown()
		case <-stopped:
		}
	}()
	defer close(stopped)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s.eng, s.requestShutdown).Run()
		}()
	}
}

// requestShutdown stops accepting new connections. Sessions already
// running are not told to stop: each keeps serving its client until that
// client quits or disconnects, and the server waits for them to end.
func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		if err := s.listener.Close(); err != nil {
			logrus.WithError(err).Warn("netsrv: error closing listener during shutdown")
		}
	})
}

// Shutdown requests a graceful stop and waits for in-flight sessions.
func (s *Server) Shutdown() {
	s.requestShutdown()
	s.wg.Wait()
}
