// Package protocoltest provides an in-process lint server for tests.
package protocoltest

import (
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/teranos/lintd/protocol"
)

// Handler returns the raw bytes to write back for one decoded request.
type Handler func(req protocol.Request) string

// Echo reports one diagnostic line naming the path and content length.
func Echo(req protocol.Request) string {
	return req.Path + ":1 E100 received " + strconv.Itoa(req.ContentLength()) + " bytes\n\n"
}

// Fixed always answers raw.
func Fixed(raw string) Handler {
	return func(protocol.Request) string { return raw }
}

// Server accepts connections on 127.0.0.1 and answers each with its handler.
type Server struct {
	listener net.Listener
	handler  Handler
	hang     bool
	done     chan struct{}
	closed   sync.Once
	requests atomic.Int64
	wg       sync.WaitGroup

	mu       sync.Mutex
	received []protocol.Request
}

// NewServer starts a server on an ephemeral loopback port.
func NewServer(handler Handler) (*Server, error) {
	return newServer("127.0.0.1:0", handler, false)
}

// NewServerAt starts a server on a fixed address such as "127.0.0.1:2222".
func NewServerAt(addr string, handler Handler) (*Server, error) {
	return newServer(addr, handler, false)
}

func newServer(addr string, handler Handler, hang bool) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{listener: ln, handler: handler, hang: hang, done: make(chan struct{})}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// NewHangingServer answers with raw and then keeps every connection open
// until Close, so clients only ever finish by timing out.
func NewHangingServer(raw string) (*Server, error) {
	return newServer("127.0.0.1:0", Fixed(raw), true)
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Endpoint returns an endpoint for this server using the given timeout template.
func (s *Server) Endpoint(template protocol.Endpoint) protocol.Endpoint {
	template.Address = "127.0.0.1"
	template.Port = s.Port()
	return template
}

// Requests returns the number of requests decoded so far.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// Received returns a copy of every request decoded so far.
func (s *Server) Received() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Request(nil), s.received...)
}

// Close stops accepting and waits for in-flight connections. It may be
// called more than once.
func (s *Server) Close() error {
	var err error
	s.closed.Do(func() {
		err = s.listener.Close()
		close(s.done)
	})
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	req, err := protocol.DecodeRequest(conn)
	if err != nil {
		return
	}
	s.requests.Add(1)
	s.mu.Lock()
	s.received = append(s.received, req)
	s.mu.Unlock()

	_, _ = io.WriteString(conn, s.handler(req))
	if s.hang {
		<-s.done
	}
}

// UnusedPort returns a loopback port with nothing listening on it.
func UnusedPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return port, ln.Close()
}
