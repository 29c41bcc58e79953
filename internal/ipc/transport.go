package ipc

import (
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/sodove/aios-agent/pkg/apperror"
)

// Listener wraps a Unix domain socket listener, removing any stale socket
// file left over from a previous run before binding.
type Listener struct {
	ln   *net.UnixListener
	path string
}

// Bind removes a stale socket file at path (if present), creates its parent
// directory, and binds a new Unix listener there.
func Bind(path string) (*Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperror.WrapIO(err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, apperror.WrapIO(err)
		}
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, apperror.WrapIpc("resolving socket address", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, apperror.WrapIpc("binding socket", err)
	}
	return &Listener{ln: ln, path: path}, nil
}

// Accept blocks until a client connects and returns the raw connection.
func (l *Listener) Accept() (*Conn, error) {
	c, err := l.ln.AcceptUnix()
	if err != nil {
		return nil, apperror.WrapIpc("accepting connection", err)
	}
	return &Conn{conn: c}, nil
}

// Close closes the listener and removes its socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()
	_ = os.Remove(l.path)
	if err != nil {
		return apperror.WrapIO(err)
	}
	return nil
}

// Dial connects to a Unix socket at path, for clients.
func Dial(path string) (*Conn, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, apperror.WrapIpc("resolving socket address", err)
	}
	c, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, apperror.WrapIpc("connecting to socket", err)
	}
	return &Conn{conn: c}, nil
}

// Conn is a single accepted or dialed connection, not yet split.
type Conn struct {
	conn *net.UnixConn
}

// Send writes one envelope directly on the shared connection. Callers that
// need concurrent writers should call Split and use the returned Writer
// instead.
func (c *Conn) Send(env Envelope) error {
	return Write(c.conn, env)
}

// Recv reads one envelope directly from the shared connection.
func (c *Conn) Recv() (Envelope, error) {
	return Decode(c.conn)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Split divides the connection into an independent Reader and a
// mutex-serialized Writer, mirroring tokio::io::split: the dispatch loop
// reads from Reader while any number of goroutines (the router, the
// confirmation sender) may call Writer.Send concurrently without
// interleaving frames.
func (c *Conn) Split() (*Reader, *Writer) {
	return &Reader{conn: c.conn}, &Writer{conn: c.conn}
}

// Reader is the read half of a split connection. It is not safe for
// concurrent use by multiple goroutines — exactly one dispatch loop should
// own it.
type Reader struct {
	conn *net.UnixConn
}

// Recv reads and decodes the next envelope.
func (r *Reader) Recv() (Envelope, error) {
	return Decode(r.conn)
}

// Writer is the write half of a split connection, safe for concurrent use
// by multiple goroutines via an internal mutex.
type Writer struct {
	conn *net.UnixConn
	mu   sync.Mutex
}

// Send encodes and writes env, holding the writer's mutex for the duration
// so two goroutines can never interleave partial frames on the wire.
func (w *Writer) Send(env Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Write(w.conn, env)
}

// Close closes the underlying connection, which also ends the paired
// Writer (Writer has no Close of its own). A second call returns the
// net package's already-closed error unwrapped.
func (r *Reader) Close() error {
	return r.conn.Close()
}
