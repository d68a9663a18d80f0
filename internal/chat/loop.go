package chat

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/logging"
)

// ChatConn is the bidirectional line transport the Loop dials. Sender only
// ever needs the write half (Conn); the Loop also reads incoming lines.
type ChatConn interface {
	Conn
	ReadLine() (string, error)
	Close() error
}

// Dialer opens a new ChatConn for one connection attempt.
type Dialer func(ctx context.Context) (ChatConn, error)

// DialTLS returns a Dialer that opens a TLS connection to addr (host:port)
// and wraps it as a line-oriented ChatConn. Production wiring uses this;
// tests supply their own in-memory Dialer instead.
func DialTLS(addr string) Dialer {
	return func(ctx context.Context) (ChatConn, error) {
		dialer := &tls.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return newLineConn(conn), nil
	}
}

type lineConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newLineConn(conn net.Conn) *lineConn {
	return &lineConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *lineConn) WriteLine(line string) error {
	_, err := c.conn.Write([]byte(line + "\r\n"))
	return err
}

func (c *lineConn) ReadLine() (string, error) {
	return c.reader.ReadString('\n')
}

func (c *lineConn) Close() error { return c.conn.Close() }

// BotCredentials resolves the live NICK/PASS pair for one connection
// attempt. Implementations typically read from a token.Manager, returning
// its current access token.
type BotCredentials func(ctx context.Context) (login, oauthToken string, err error)

// RouterFactory builds a fresh Router bound to one connection's Sender. The
// chat handler is re-created on every reconnection, per the streamer/bot
// lifecycle; only the Sender is torn down and rebuilt alongside it.
type RouterFactory func(sender *Sender) *Router

// LoopConfig bundles everything the Chat Loop supervisor needs.
type LoopConfig struct {
	Dial          Dialer
	Ready         func(ctx context.Context) error
	Credentials   BotCredentials
	StreamerLogin string
	NewRouter     RouterFactory

	RateLimitPerSecond float64
	RateLimitBurst     int

	PingInterval time.Duration
	PongTimeout  time.Duration

	JoinMessage  string
	LeaveMessage string

	ReconnectBackoffInitial time.Duration

	// ProviderUpdates, when non-nil, is read during the main multiplex; a
	// value forces a reconnect (e.g. the backend credentials changed).
	ProviderUpdates <-chan struct{}
	// CommandBus carries externally injected raw protocol lines (e.g. an
	// operator console) to send immediately on the current connection.
	CommandBus *bus.Bus[string]
	// ScriptEvents, when non-nil, notifies of a filesystem change under
	// the script directory; OnScriptEvent runs synchronously in the main
	// multiplex loop in response.
	ScriptEvents  <-chan struct{}
	OnScriptEvent func()
	// Leave, when closed or sent on, asks the loop to exit cleanly after
	// emitting LeaveMessage instead of reconnecting.
	Leave <-chan struct{}

	Log *logging.Logger
}

const (
	// DefaultPingInterval is how often the Loop pings the chat server to
	// detect a silently dead connection.
	DefaultPingInterval = 4 * time.Minute
	// DefaultPongTimeout bounds how long the Loop waits for a PONG after
	// sending its own PING before treating the connection as dead.
	DefaultPongTimeout = 5 * time.Second
)

// Loop is the reconnecting chat supervisor described by the streaming
// automation spec's top-level control flow: connect, join, multiplex
// inbound/outbound/control traffic, and on any fatal condition reconnect
// with an exponential backoff.
type Loop struct {
	cfg LoopConfig
}

// NewLoop constructs a Loop from cfg, filling in defaults for zero-valued
// durations.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = DefaultPongTimeout
	}
	if cfg.ReconnectBackoffInitial <= 0 {
		cfg.ReconnectBackoffInitial = time.Second
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 1
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewTestLogger()
	}
	return &Loop{cfg: cfg}
}

// errReconnect marks an iteration-ending condition that should trigger a
// fresh connection attempt rather than unwind Run entirely.
var errReconnect = errors.New("chat: reconnecting")

// Run drives the supervisor loop until ctx is done or a clean leave-signal
// arrives. It never returns on a merely-fatal connection error; those are
// retried with backoff, per the spec's reconnect contract.
func (l *Loop) Run(ctx context.Context) error {
	backoff := NewBackoff(l.cfg.ReconnectBackoffInitial)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if l.cfg.Ready != nil {
			if err := l.cfg.Ready(ctx); err != nil {
				return fmt.Errorf("chat: dependency wait: %w", err)
			}
		}

		left, err := l.runOnce(ctx)
		if left {
			return nil
		}
		if err != nil {
			l.cfg.Log.Warn("chat loop iteration failed, reconnecting", logging.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := backoff.Next()
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// runOnce performs one connect-join-multiplex cycle. It returns (true, nil)
// on a clean leave-signal exit, or (false, err) on any condition that should
// trigger a reconnect (err may be nil for an ordinary leave-signal-less
// teardown requested by ctx cancellation higher up).
func (l *Loop) runOnce(ctx context.Context) (left bool, err error) {
	conn, err := l.cfg.Dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	login, oauthToken, err := l.cfg.Credentials(ctx)
	if err != nil {
		return false, fmt.Errorf("credentials: %w", err)
	}

	if err := conn.WriteLine(EncodeCapReq()); err != nil {
		return false, fmt.Errorf("cap req: %w", err)
	}
	if err := conn.WriteLine(EncodePass(oauthToken)); err != nil {
		return false, fmt.Errorf("pass: %w", err)
	}
	if err := conn.WriteLine(EncodeNick(login)); err != nil {
		return false, fmt.Errorf("nick: %w", err)
	}
	if err := conn.WriteLine(EncodeJoin(l.cfg.StreamerLogin)); err != nil {
		return false, fmt.Errorf("join: %w", err)
	}

	sender := NewSender(conn, l.cfg.StreamerLogin, l.cfg.RateLimitPerSecond, l.cfg.RateLimitBurst, l.cfg.Log)
	defer sender.Close()

	pongCh := make(chan struct{}, 1)
	authFailedCh := make(chan struct{}, 1)
	router := l.cfg.NewRouter(sender)
	router.onPong = func() {
		select {
		case pongCh <- struct{}{}:
		default:
		}
	}
	router.onAuthFailure = func() {
		select {
		case authFailedCh <- struct{}{}:
		default:
		}
	}

	if l.cfg.JoinMessage != "" {
		sender.Privmsg(l.cfg.JoinMessage)
	}

	lines := make(chan string, 64)
	readErrCh := make(chan error, 1)
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		for {
			line, err := conn.ReadLine()
			if line != "" {
				select {
				case lines <- line:
				case <-readCtx.Done():
					return
				}
			}
			if err != nil {
				readErrCh <- err
				return
			}
		}
	}()

	var commandReader *bus.Reader[string]
	var commandCh <-chan string
	if l.cfg.CommandBus != nil {
		commandReader = l.cfg.CommandBus.Subscribe(8)
		defer commandReader.Close()
		commandCh = commandReader.Messages()
	}

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	var pongDeadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case <-l.cfg.Leave:
			if l.cfg.LeaveMessage != "" {
				sender.PrivmsgImmediate(l.cfg.LeaveMessage)
			}
			return true, nil

		case <-authFailedCh:
			return false, errors.New("chat: authentication failed")

		case err := <-readErrCh:
			return false, fmt.Errorf("read: %w", err)

		case line := <-lines:
			router.Route(ctx, ParseMessage(line))

		case <-pingTicker.C:
			sender.SendImmediate("PING :clef")
			deadline := time.NewTimer(l.cfg.PongTimeout)
			pongDeadline = deadline.C

		case <-pongCh:
			pongDeadline = nil

		case <-pongDeadline:
			return false, errReconnect

		case <-l.cfg.ProviderUpdates:
			return false, errReconnect

		case <-l.cfg.ScriptEvents:
			if l.cfg.OnScriptEvent != nil {
				l.cfg.OnScriptEvent()
			}

		case raw, ok := <-commandCh:
			if ok {
				sender.SendImmediate(raw)
			}
		}
	}
}
