package chat

import (
	"context"
	"sync"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

// Conn is the minimal transport the Sender writes protocol lines to.
type Conn interface {
	WriteLine(line string) error
}

// messageRateLimiter is a token bucket counting messages rather than bytes,
// adapted from the broker's networking.BandwidthRegulator: tokens accrue at
// a fixed rate up to a burst capacity, and a request is granted only if
// enough tokens are currently available.
type messageRateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	refill   float64
	last     time.Time
	now      func() time.Time
}

func newMessageRateLimiter(perSecond float64, burst int, clock func() time.Time) *messageRateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &messageRateLimiter{
		tokens:   float64(burst),
		capacity: float64(burst),
		refill:   perSecond,
		last:     clock(),
		now:      clock,
	}
}

func (l *messageRateLimiter) replenish(now time.Time) {
	if now.Before(l.last) {
		return
	}
	elapsed := now.Sub(l.last).Seconds()
	l.tokens += elapsed * l.refill
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.last = now
}

// Wait blocks until a send permit is available or ctx is done.
func (l *messageRateLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.replenish(now)
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		deficit := 1 - l.tokens
		wait := time.Duration(deficit/l.refill*float64(time.Second)) + time.Millisecond
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

const defaultQueueSize = 64

// Sender owns all outbound traffic to one chat channel, respecting the
// platform's per-account rate limit. Queued sends are FIFO through a
// bounded channel drained by a dispatcher goroutine that waits on a rate
// permit before each write; immediate sends bypass the queue entirely for
// protocol replies and moderation directives that must never be reordered
// behind user-visible chatter.
type Sender struct {
	conn    Conn
	channel string
	limiter *messageRateLimiter
	queue   chan string
	log     *logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Sender at construction time.
type Option func(*Sender)

// WithQueueSize overrides the bounded outbound queue's capacity.
func WithQueueSize(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.queue = make(chan string, n)
		}
	}
}

// WithClock overrides the rate limiter's clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Sender) {
		s.limiter.now = clock
		s.limiter.last = clock()
	}
}

// NewSender constructs a Sender bound to one channel and starts its
// dispatcher goroutine. Call Close to stop it.
func NewSender(conn Conn, channel string, ratePerSecond float64, burst int, log *logging.Logger, opts ...Option) *Sender {
	s := &Sender{
		conn:    conn,
		channel: channel,
		limiter: newMessageRateLimiter(ratePerSecond, burst, nil),
		queue:   make(chan string, defaultQueueSize),
		log:     log,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// Channel returns the channel login this sender targets.
func (s *Sender) Channel() string {
	return s.channel
}

// Privmsg enqueues a chat line on the bounded outbound queue. If the queue
// is full the call blocks until space frees up or the sender is closed.
func (s *Sender) Privmsg(body string) {
	select {
	case s.queue <- EncodePrivmsg(s.channel, body):
	case <-s.stopCh:
	}
}

// PrivmsgImmediate bypasses the queue and rate limiter, writing directly.
// A send error is logged and swallowed — the outbound path is best-effort.
func (s *Sender) PrivmsgImmediate(body string) {
	s.SendImmediate(EncodePrivmsg(s.channel, body))
}

// SendImmediate writes a raw protocol line directly, bypassing the queue.
// Used for PONG replies and moderation directives that must not be
// reordered behind queued chatter.
func (s *Sender) SendImmediate(line string) {
	if err := s.conn.WriteLine(line); err != nil {
		s.log.Error("chat send failed", logging.Error(err), logging.String("mode", "immediate"))
	}
}

// Delete issues the moderation directive removing one message by ID.
func (s *Sender) Delete(messageID string) {
	s.SendImmediate(EncodeClearMsg(s.channel, messageID))
}

// Mods requests the channel's current moderator list via NOTICE.
func (s *Sender) Mods() {
	s.SendImmediate(EncodeModsQuery(s.channel))
}

// Vips requests the channel's current VIP list via NOTICE.
func (s *Sender) Vips() {
	s.SendImmediate(EncodeVipsQuery(s.channel))
}

func (s *Sender) dispatch() {
	defer close(s.doneCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	for {
		select {
		case line := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.conn.WriteLine(line); err != nil {
				s.log.Error("chat send failed", logging.Error(err), logging.String("mode", "queued"))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the dispatcher goroutine. Safe to call more than once.
func (s *Sender) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}
