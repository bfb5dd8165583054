package control

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Client sends requests over one control connection, one at a time.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Do sends line and waits for its reply. An "err" reply is returned as an
// error.
func (c *Client) Do(line string) (string, error) {
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := WriteFrame(c.conn, []byte(line)); err != nil {
		return "", err
	}
	payload, err := ReadFrame(c.conn)
	if err != nil {
		return "", err
	}
	reply := string(payload)
	switch {
	case reply == "ok":
		return "", nil
	case strings.HasPrefix(reply, "ok "):
		return reply[3:], nil
	case strings.HasPrefix(reply, "err "):
		return "", errors.New(reply[4:])
	}
	return "", fmt.Errorf("malformed reply %q", reply)
}

func (c *Client) Close() error { return c.conn.Close() }
