// Package server exposes an engine.Store over the celerix line protocol.
//
// Each request is one line; each reply is one line:
//
//	PING                 -> PONG
//	GET <key>            -> OK <base64 value> | NOTFOUND | ERR <message>
//	PUT <key> [base64]   -> OK | ERR <message>   (no value stores an empty one)
//	DEL <key>            -> OK | ERR <message>
//	LIST <limit> [prefix] -> OK <json array of keys> | ERR <message>
//	QUIT                 -> connection closed
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

const (
	// MaxConnections bounds concurrently served connections.
	MaxConnections = 100
	// IdleTimeout closes connections that send nothing.
	IdleTimeout = 30 * time.Second
	// CommandTimeout bounds a single store call.
	CommandTimeout = 10 * time.Second
)

// ErrServerClosed is returned by Listen after Stop.
var ErrServerClosed = errors.New("server closed")

type Router struct {
	store engine.Store
	cert  *tls.Certificate
	log   logging.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	active   map[net.Conn]struct{}
	conns    sync.WaitGroup
}

func NewRouter(s engine.Store, log logging.Logger) *Router {
	if log == nil {
		log = logging.Discard()
	}
	return &Router{store: s, log: log, active: make(map[net.Conn]struct{})}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the listening address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen serves on port until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	r.listener = listener
	r.mu.Unlock()

	r.log.Info(context.Background(), "store listener started", "addr", listener.Addr().String(), "tls", r.cert != nil)

	semaphore := make(chan struct{}, MaxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		semaphore <- struct{}{}
		if !r.track(conn) {
			<-semaphore
			conn.Close()
			return ErrServerClosed
		}
		go func(c net.Conn) {
			defer func() {
				<-semaphore
				r.untrack(c)
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Router) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.active[c] = struct{}{}
	r.conns.Add(1)
	return true
}

func (r *Router) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.active, c)
	r.mu.Unlock()
	r.conns.Done()
}

// Stop closes the listener, wakes idle connections and waits for every
// connection to finish its current command.
func (r *Router) Stop() error {
	r.mu.Lock()
	r.closed = true
	l := r.listener
	for c := range r.active {
		c.SetReadDeadline(time.Now())
	}
	r.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	r.conns.Wait()
	return err
}

// HandleConnection serves commands from conn until QUIT, EOF, an idle
// timeout or Stop.
func (r *Router) HandleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Set a deadline for the next command. Stop moves it to now, so the
		// closed check must come after.
		conn.SetReadDeadline(time.Now().Add(IdleTimeout))
		if r.isClosed() {
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !r.isClosed() {
				r.log.Debug(context.Background(), "connection closed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		command := strings.ToUpper(parts[0])
		if command == "QUIT" {
			return
		}
		fmt.Fprintln(conn, r.execute(command, parts[1:]))
	}
}

func (r *Router) execute(command string, args []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()

	switch command {
	case "PING":
		return "PONG"

	case "GET":
		if len(args) != 1 {
			return "ERR usage: GET <key>"
		}
		val, err := r.store.Get(ctx, args[0])
		if errors.Is(err, engine.ErrKeyNotFound) {
			return "NOTFOUND"
		}
		if err != nil {
			return r.fail(ctx, command, args[0], err)
		}
		return "OK " + base64.StdEncoding.EncodeToString(val)

	case "PUT":
		if len(args) < 1 || len(args) > 2 {
			return "ERR usage: PUT <key> [base64 value]"
		}
		val := []byte{}
		if len(args) == 2 {
			var err error
			if val, err = base64.StdEncoding.DecodeString(args[1]); err != nil {
				return "ERR invalid base64 value"
			}
		}
		if err := r.store.Put(ctx, args[0], val); err != nil {
			return r.fail(ctx, command, args[0], err)
		}
		return "OK"

	case "DEL":
		if len(args) != 1 {
			return "ERR usage: DEL <key>"
		}
		if err := r.store.Delete(ctx, args[0]); err != nil {
			return r.fail(ctx, command, args[0], err)
		}
		return "OK"

	case "LIST":
		if len(args) < 1 || len(args) > 2 {
			return "ERR usage: LIST <limit> [prefix]"
		}
		limit, err := strconv.Atoi(args[0])
		if err != nil {
			return "ERR invalid limit"
		}
		prefix := ""
		if len(args) == 2 {
			prefix = args[1]
		}
		keys, err := r.store.List(ctx, prefix, limit)
		if err != nil {
			return r.fail(ctx, command, prefix, err)
		}
		res, err := json.Marshal(keys)
		if err != nil {
			return "ERR internal error"
		}
		return "OK " + string(res)

	default:
		return "ERR unknown command " + command
	}
}

func (r *Router) fail(ctx context.Context, command, key string, err error) string {
	r.log.Warn(ctx, "store command failed", "command", command, "key", key, "error", err)
	// Replies are single lines.
	return "ERR " + strings.ReplaceAll(err.Error(), "\n", " ")
}
