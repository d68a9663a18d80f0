package chat

import "time"

// maxBackoff is the global ceiling on any reconnect delay.
const maxBackoff = 120 * time.Second

// Backoff computes successive exponential reconnect delays: 2x, 4x, 8x, 16x
// and 32x the initial duration (each capped at maxBackoff), then maxBackoff
// for every later attempt.
type Backoff struct {
	initial time.Duration
	attempt int
}

// NewBackoff constructs a Backoff starting from initial.
func NewBackoff(initial time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	return &Backoff{initial: initial}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	var duration time.Duration
	if b.attempt <= 4 {
		duration = b.initial * time.Duration(2<<min(b.attempt, 4))
		if duration > maxBackoff {
			duration = maxBackoff
		}
	} else {
		duration = maxBackoff
	}
	b.attempt++
	return duration
}

// Reset clears the attempt counter after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}
