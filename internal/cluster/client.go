package cluster

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dreamware/strata/internal/wire"
)

// callTimeout bounds a single request/response exchange when the caller's
// context carries no deadline of its own.
const callTimeout = 10 * time.Second

// Client is a framed-protocol connection to one peer (the coordinator or a
// disk command server). It serializes one request/response exchange at a
// time; it is not safe for concurrent use.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader
}

// Dial connects to a peer's framed command server.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rd: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// deadline applies the context deadline (or the default call timeout) to the
// connection for the next exchange.
func (c *Client) deadline(ctx context.Context) {
	dl, ok := ctx.Deadline()
	if !ok {
		dl = time.Now().Add(callTimeout)
	}
	_ = c.conn.SetDeadline(dl)
}

// Call sends one framed request and reads one framed response.
func (c *Client) Call(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	c.deadline(ctx)
	if err := wire.WriteFrame(c.conn, wire.EncodeRequest(cmd, args...)); err != nil {
		return nil, err
	}
	return wire.ReadFrame(c.rd)
}

// CallRawOut sends a framed request followed by an unframed binary payload,
// then reads one framed response. Used by store-block.
func (c *Client) CallRawOut(ctx context.Context, payload []byte, cmd string, args ...string) ([]byte, error) {
	c.deadline(ctx)
	if err := wire.WriteFrame(c.conn, wire.EncodeRequest(cmd, args...)); err != nil {
		return nil, err
	}
	if err := wire.WriteRaw(c.conn, payload); err != nil {
		return nil, err
	}
	return wire.ReadFrame(c.rd)
}

// ReadRaw reads size unframed bytes that follow the last response. Used by
// read-block, where the success frame announces the payload length.
func (c *Client) ReadRaw(size int) ([]byte, error) {
	return wire.ReadRaw(c.rd, size)
}

// Call dials addr, performs a single request/response exchange, and closes
// the connection. Convenience for one-shot control commands.
func Call(ctx context.Context, addr, cmd string, args ...string) ([]byte, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Call(ctx, cmd, args...)
}
