package ami

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	dialTimeout          = 10 * time.Second
	defaultActionTimeout = 10 * time.Second
	defaultQueueSize     = 256

	// Banner drain: the manager greets with an unframed banner line before
	// the first real message. A handful of short non-blocking reads gets rid
	// of it without ever feeding it to the codec.
	bannerAttempts  = 5
	bannerReadSlice = 50 * time.Millisecond
)

// ErrClosed is returned by operations on a session that has ended.
var ErrClosed = fmt.Errorf("ami: session closed")

// Client is one authenticated manager session. A single reader goroutine
// (Run) owns the inbound side of the connection; any goroutine may send.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex // serializes writes to conn

	mu      sync.Mutex // guards pending and err
	pending map[string]chan Message
	err     error

	events  chan Message
	done    chan struct{}
	running atomic.Bool

	actionTimeout time.Duration
	log           *logrus.Entry
}

// Dial connects to the manager port, drains the banner and returns a client
// ready for Login. The caller owns the connection via Close.
func Dial(host string, port int, log *logrus.Entry) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	drainBanner(conn)
	return newClient(conn, log, defaultQueueSize), nil
}

// NewClient wraps an already-established connection. Intended for transports
// that perform their own greeting handling.
func NewClient(conn net.Conn, log *logrus.Entry) *Client {
	return newClient(conn, log, defaultQueueSize)
}

func newClient(conn net.Conn, log *logrus.Entry, queueSize int) *Client {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	c := &Client{
		conn:          conn,
		r:             bufio.NewReader(conn),
		pending:       make(map[string]chan Message),
		events:        make(chan Message, queueSize),
		done:          make(chan struct{}),
		actionTimeout: defaultActionTimeout,
		log:           log,
	}
	c.running.Store(true)
	return c
}

// drainBanner performs a bounded best-effort read of the greeting bytes.
// Absence of data is not an error.
func drainBanner(conn net.Conn) {
	buf := make([]byte, 1024)
	for i := 0; i < bannerAttempts; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(bannerReadSlice))
		if _, err := conn.Read(buf); err != nil {
			break
		}
	}
	_ = conn.SetReadDeadline(time.Time{})
}

// SetActionTimeout changes how long Do waits for a correlated response.
func (c *Client) SetActionTimeout(d time.Duration) {
	if d > 0 {
		c.actionTimeout = d
	}
}

// Login authenticates the session and requests continuous event delivery.
// It blocks for exactly one reply message; this is the only positional read
// on the connection and must complete before Run is started.
func (c *Client) Login(user, secret string) error {
	err := c.Send([]Field{
		{"Action", "Login"},
		{"Username", user},
		{"Secret", secret},
		{"Events", "on"},
	})
	if err != nil {
		return fmt.Errorf("login send: %w", err)
	}
	msg, err := ReadMessage(c.r)
	if err != nil {
		return fmt.Errorf("login read: %w", err)
	}
	if !msg.Success() {
		return fmt.Errorf("login rejected: %s", msg.Get("Message"))
	}
	c.log.Infof("logged in as %s", user)
	return nil
}

// Logoff sends a fire-and-forget session termination notice.
func (c *Client) Logoff() error {
	return c.Send([]Field{{"Action", "Logoff"}})
}

// Send writes an action without waiting for any reply.
func (c *Client) Send(fields []Field) error {
	if !c.running.Load() {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := WriteAction(c.conn, fields); err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// Do sends an action tagged with a generated ActionID and waits for the
// response the reader routes back under that id. It is safe to call while
// unsolicited events are arriving on the same connection.
func (c *Client) Do(fields []Field) (Message, error) {
	id := uuid.NewString()
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.Send(append(fields, Field{"ActionID", id})); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.actionTimeout)
	defer timer.Stop()
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, c.Err()
		}
		return msg, nil
	case <-c.done:
		return nil, c.Err()
	case <-timer.C:
		return nil, fmt.Errorf("action %s: no response within %s", fields[0].Value, c.actionTimeout)
	}
}

// Events is the bounded FIFO hand-off queue of unsolicited messages. It is
// closed when the session ends.
func (c *Client) Events() <-chan Message { return c.events }

// Done is closed when the reader loop has terminated.
func (c *Client) Done() <-chan struct{} { return c.done }

// Running reports whether the session is still alive.
func (c *Client) Running() bool { return c.running.Load() }

// Err returns the transport error that ended the session, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// Close tears down the connection. This is also the only way to unblock a
// reader stuck in a socket read during shutdown.
func (c *Client) Close() error {
	c.running.Store(false)
	return c.conn.Close()
}
