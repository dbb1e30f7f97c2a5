package server

import (
	"net"
	"time"
)

// deadlineConn arms a fresh deadline before every read and write so a hung
// peer cannot pin a serving task forever. Protocol semantics are untouched;
// an expired deadline surfaces as an ordinary transport error.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
