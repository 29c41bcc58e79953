package debug

import (
	"bufio"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback-only surface: there is no cross-origin browser client to
	// defend against, and the bind address itself is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuditTail polls the audit log file for new lines and fans each one out
// to every connected websocket client, so a developer can `wscat` into a
// running daemon and watch tool activity without parsing the file by hand.
// It never writes to the file; the sink remains the sole writer.
type AuditTail struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewAuditTail builds a tail over the audit log at path.
func NewAuditTail(path string, logger *zap.Logger) *AuditTail {
	return &AuditTail{path: path, logger: logger, clients: make(map[*wsClient]struct{})}
}

// ServeWS upgrades the request to a websocket and registers the connection
// as a tail subscriber.
func (t *AuditTail) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		t.logger.Warn("audit tail upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	t.mu.Lock()
	t.clients[client] = struct{}{}
	t.mu.Unlock()

	go t.writePump(client)
	go t.readPump(client)
}

// readPump does nothing but detect disconnects: this tail is one-way
// (server to client), but we still need to notice a closed socket.
func (t *AuditTail) readPump(client *wsClient) {
	defer t.drop(client)
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (t *AuditTail) writePump(client *wsClient) {
	defer client.conn.Close()
	for msg := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (t *AuditTail) drop(client *wsClient) {
	t.mu.Lock()
	if _, ok := t.clients[client]; ok {
		delete(t.clients, client)
		close(client.send)
	}
	t.mu.Unlock()
}

func (t *AuditTail) broadcast(line []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for client := range t.clients {
		select {
		case client.send <- line:
		default:
			// Slow reader: drop the line rather than block the tail loop
			// or every other subscriber.
		}
	}
}

// Run polls the audit log for appended lines every pollInterval and
// broadcasts each new line to every connected client. It blocks until the
// stop channel is closed.
func (t *AuditTail) Run(stop <-chan struct{}, pollInterval time.Duration) {
	var offset int64

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			newOffset, err := t.readNewLines(offset)
			if err != nil {
				continue
			}
			offset = newOffset
		}
	}
}

func (t *AuditTail) readNewLines(offset int64) (int64, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		// Log was truncated or rotated out from under us; restart from
		// the top rather than erroring forever.
		offset = 0
	}

	if _, err := f.Seek(offset, 0); err != nil {
		return offset, err
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var read int64
	for sc.Scan() {
		line := sc.Bytes()
		read += int64(len(line)) + 1
		cp := make([]byte, len(line))
		copy(cp, line)
		t.broadcast(cp)
	}
	return offset + read, nil
}
