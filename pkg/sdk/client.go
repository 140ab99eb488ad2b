// Package sdk provides the client-side library for reaching a Celerix HR
// store. It supports remote daemons over TCP/TLS and embedded backends; both
// satisfy engine.Store.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

const (
	// DefaultTimeout bounds a command whose context has no deadline.
	DefaultTimeout = 30 * time.Second
	// Attempts is how many times a command is sent over fresh connections
	// before giving up.
	Attempts = 3
)

// ErrInvalidKey is returned for keys the line protocol cannot carry.
var ErrInvalidKey = errors.New("key must be non-empty and contain no whitespace")

// errRemote carries an ERR reply. It is not retried.
type errRemote struct{ msg string }

func (e *errRemote) Error() string { return e.msg }

// ClientOptions configure Connect.
type ClientOptions struct {
	// TLS dials with TLS, accepting the daemon's self-signed certificate.
	TLS bool
	Log logging.Logger
}

// Client is a remote engine.Store. It holds one connection and serializes
// commands over it.
type Client struct {
	addr string
	opts ClientOptions
	log  logging.Logger

	mu     sync.Mutex // Protects concurrent access to the connection
	conn   net.Conn
	reader *bufio.Reader
}

var _ engine.Store = (*Client)(nil)

// Connect establishes a connection to a remote Celerix HR store daemon.
func Connect(ctx context.Context, addr string, opts ClientOptions) (*Client, error) {
	c := &Client{addr: addr, opts: opts, log: opts.Log}
	if c.log == nil {
		c.log = logging.Discard()
	}
	if err := c.reconnect(ctx); err != nil {
		return nil, engine.Unavailable("connect", addr, err)
	}
	return c, nil
}

func (c *Client) reconnect(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	var conn net.Conn
	var err error
	if c.opts.TLS {
		td := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				InsecureSkipVerify: true, // We use self-signed certs for internal traffic
			},
		}
		conn, err = td.DialContext(ctx, "tcp", c.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.addr)
	}
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// roundTrip sends one command and returns the reply line. Connection
// failures are retried over a fresh connection; ERR replies are not.
func (c *Client) roundTrip(ctx context.Context, op, key, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}

	var err error
	for i := 0; i < Attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", engine.Unavailable(op, key, ctxErr)
		}

		// Ensure we have a connection
		if c.conn == nil {
			if err = c.reconnect(ctx); err != nil {
				c.backoff(ctx, i)
				continue
			}
		}

		c.conn.SetDeadline(deadline)

		var resp string
		if _, err = fmt.Fprint(c.conn, cmd+"\n"); err == nil {
			if resp, err = c.reader.ReadString('\n'); err == nil {
				resp = strings.TrimSpace(resp)
				if msg, isErr := strings.CutPrefix(resp, "ERR"); isErr {
					return "", engine.Unavailable(op, key, &errRemote{msg: strings.TrimSpace(msg)})
				}
				return resp, nil
			}
		}

		c.log.Warn(ctx, "store command failed, reconnecting", "attempt", i+1, "addr", c.addr, "error", err)
		c.conn.Close()
		c.conn = nil
		c.backoff(ctx, i)
	}

	return "", engine.Unavailable(op, key, fmt.Errorf("failed after %d attempts: %w", Attempts, err))
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	t := time.NewTimer(time.Duration((attempt+1)*200) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func validKey(key string) error {
	if key == "" || strings.IndexFunc(key, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' }) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, "get", key, "GET "+key)
	if err != nil {
		return nil, err
	}
	if resp == "NOTFOUND" {
		return nil, engine.ErrKeyNotFound
	}
	body, ok := strings.CutPrefix(resp, "OK")
	if !ok {
		return nil, engine.Unavailable("get", key, fmt.Errorf("unexpected reply %q", resp))
	}
	val, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return nil, engine.Unavailable("get", key, err)
	}
	return val, nil
}

func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	cmd := "PUT " + key
	if len(value) > 0 {
		cmd += " " + base64.StdEncoding.EncodeToString(value)
	}
	_, err := c.roundTrip(ctx, "put", key, cmd)
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := c.roundTrip(ctx, "delete", key, "DEL "+key)
	return err
}

func (c *Client) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	cmd := "LIST " + strconv.Itoa(limit)
	if prefix != "" {
		if err := validKey(prefix); err != nil {
			return nil, err
		}
		cmd += " " + prefix
	}
	resp, err := c.roundTrip(ctx, "list", prefix, cmd)
	if err != nil {
		return nil, err
	}
	body, ok := strings.CutPrefix(resp, "OK")
	if !ok {
		return nil, engine.Unavailable("list", prefix, fmt.Errorf("unexpected reply %q", resp))
	}
	keys := make([]string, 0)
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &keys); err != nil {
		return nil, engine.Unavailable("list", prefix, err)
	}
	return keys, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, "ping", "", "PING")
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return engine.Unavailable("ping", "", fmt.Errorf("unexpected reply %q", resp))
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}
