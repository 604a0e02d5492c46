// Package server accepts TLS connections and runs one supervised session
// worker per connection. Workers are tracked, not detached: the server can
// account for every live connection and a panicking worker is recovered and
// logged instead of taking the process down.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"sync"
)

// Handler runs one connection's conversation to completion. It must release
// any resources it claims before returning; the server only guarantees the
// connection itself gets closed.
type Handler func(ctx context.Context, conn net.Conn)

type Server struct {
	addr      string
	tlsConfig *tls.Config
	handler   Handler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// New builds a server. A nil tlsConfig listens on plain TCP, which is only
// meant for local development.
func New(addr string, tlsConfig *tls.Config, handler Handler) *Server {
	return &Server{
		addr:      addr,
		tlsConfig: tlsConfig,
		handler:   handler,
		conns:     make(map[net.Conn]struct{}),
	}
}

// ListenAndServe blocks accepting connections until Shutdown closes the
// listener.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var (
		ln  net.Listener
		err error
	)
	if s.tlsConfig != nil {
		ln, err = tls.Listen("tcp", s.addr, s.tlsConfig)
	} else {
		log.Printf("[SERVER] no TLS configured, listening in plaintext on %s", s.addr)
		ln, err = net.Listen("tcp", s.addr)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server already shut down")
	}
	s.listener = ln
	s.mu.Unlock()

	log.Printf("[SERVER] listening on %s", s.addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			log.Printf("[SERVER] accept failed: %v", err)
			continue
		}
		s.track(conn)
		s.wg.Add(1)
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SERVER] session worker panicked: %v", r)
			conn.Close()
		}
	}()
	s.handler(ctx, conn)
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, then waits for in-flight sessions. Sessions
// still running when ctx expires have their connections force-closed, which
// unblocks their reads and lets their cleanup run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}
