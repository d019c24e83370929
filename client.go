// Package ssache implements an in-memory key-value cache server: the
// keyspace, its wire protocol, snapshot persistence, primary-to-replica
// push replication, and the TCP server tying them together.
package ssache

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client is a connection to an ssache node speaking its line-oriented wire
// protocol. The replicator uses it to push state to replicas; it is also
// exported for anything else that wants to talk to a node programmatically.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
	readMu  sync.Mutex
	closed  atomic.Bool
}

// Connect dials addr ("host:port") and returns a ready-to-use Client.
func Connect(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// execute sends a single request line and reads back one wire reply.
func (c *Client) execute(ctx context.Context, line string) (wireReply, error) {
	if c.closed.Load() {
		return wireReply{}, ErrClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return wireReply{}, fmt.Errorf("set deadline: %w", err)
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	c.writeMu.Lock()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	c.writeMu.Unlock()
	if err != nil {
		return wireReply{}, fmt.Errorf("write command: %w", err)
	}

	c.readMu.Lock()
	reply, err := readWireReply(c.reader)
	c.readMu.Unlock()
	if err != nil {
		return wireReply{}, fmt.Errorf("read reply: %w", err)
	}

	return reply, nil
}

// Get retrieves a value by key. ok is false when the key is absent or
// expired.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	reply, err := c.execute(ctx, "GET "+key)
	if err != nil {
		return "", false, err
	}
	if reply.isNull {
		return "", false, nil
	}
	s, err := reply.asBulk()
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// Set stores value at key, clearing any TTL.
func (c *Client) Set(ctx context.Context, key, value string) error {
	reply, err := c.execute(ctx, "SET "+key+" "+value)
	if err != nil {
		return err
	}
	return reply.asOK()
}

// Expire arms a millisecond TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	reply, err := c.execute(ctx, fmt.Sprintf("EXPIRE %s %d", key, ttl.Milliseconds()))
	if err != nil {
		return err
	}
	return reply.asOK()
}

// Incr increments key by 1, initializing a missing or expired key to 0.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	reply, err := c.execute(ctx, "INCR "+key)
	if err != nil {
		return 0, err
	}
	return reply.asInt()
}

// Decr decrements key by 1, initializing a missing or expired key to 0.
func (c *Client) Decr(ctx context.Context, key string) (int64, error) {
	reply, err := c.execute(ctx, "DECR "+key)
	if err != nil {
		return 0, err
	}
	return reply.asInt()
}

// Del removes key, reporting whether it was present.
func (c *Client) Del(ctx context.Context, key string) (bool, error) {
	reply, err := c.execute(ctx, "DEL "+key)
	if err != nil {
		return false, err
	}
	n, err := reply.asInt()
	return n == 1, err
}

// Exists reports whether key is present and live.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	reply, err := c.execute(ctx, "EXISTS "+key)
	if err != nil {
		return false, err
	}
	n, err := reply.asInt()
	return n == 1, err
}

// TTL returns the remaining milliseconds on key: -1 means no TTL, -2 means
// the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (int64, error) {
	reply, err := c.execute(ctx, "TTL "+key)
	if err != nil {
		return 0, err
	}
	return reply.asInt()
}

// Persist removes any TTL on key, reporting whether one was cleared.
func (c *Client) Persist(ctx context.Context, key string) (bool, error) {
	reply, err := c.execute(ctx, "PERSIST "+key)
	if err != nil {
		return false, err
	}
	n, err := reply.asInt()
	return n == 1, err
}

// DBSize returns the number of live keys on the node.
func (c *Client) DBSize(ctx context.Context) (int64, error) {
	reply, err := c.execute(ctx, "DBSIZE")
	if err != nil {
		return 0, err
	}
	return reply.asInt()
}

// Ping round-trips a liveness check.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.execute(ctx, "PING")
	if err != nil {
		return err
	}
	s, err := reply.asSimple()
	if err != nil {
		return err
	}
	if s != "PONG" {
		return fmt.Errorf("unexpected PING reply: %s", s)
	}
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
