package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func startTestServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := New(addr, nil, handler)
	go s.ListenAndServe(context.Background())

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return s, addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not start on %s", addr)
	return nil, ""
}

func TestServer_ServesConnections(t *testing.T) {
	s, addr := startTestServer(t, func(ctx context.Context, conn net.Conn) {
		defer conn.Close()
		conn.Write([]byte("hello\n"))
	})
	defer s.Shutdown(context.Background())

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}

func TestServer_RecoverFromPanickingWorker(t *testing.T) {
	s, addr := startTestServer(t, func(ctx context.Context, conn net.Conn) {
		panic("worker exploded")
	})
	defer s.Shutdown(context.Background())

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	conn.Close()

	// The server must still accept after a worker panic.
	conn2, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	conn2.Close()
}

func TestServer_ShutdownForceClosesStragglers(t *testing.T) {
	started := make(chan struct{}, 4)
	s, addr := startTestServer(t, func(ctx context.Context, conn net.Conn) {
		started <- struct{}{}
		// Block on the client the way a session waiting for input does.
		buf := make([]byte, 1)
		conn.Read(buf)
	})

	// The startup probe connection also runs the handler, so wait for two
	// signals to be sure this connection is being served.
	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()
	<-started
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, s.ConnCount())
}
