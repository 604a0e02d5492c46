package session

import (
	"bufio"
	"net"
	"strings"
)

// Conn is the byte-stream a session talks over. Messages are newline-framed
// lines of text; the TLS listener hands sessions a net.Conn-backed
// implementation and tests substitute a scripted one.
type Conn interface {
	Send(msg string) error
	Receive() (string, error)
	Close() error
}

type netConn struct {
	raw net.Conn
	r   *bufio.Reader
}

// NewConn wraps a network connection in line framing.
func NewConn(raw net.Conn) Conn {
	return &netConn{raw: raw, r: bufio.NewReader(raw)}
}

func (c *netConn) Send(msg string) error {
	_, err := c.raw.Write([]byte(msg + "\n"))
	return err
}

func (c *netConn) Receive() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *netConn) Close() error {
	return c.raw.Close()
}
