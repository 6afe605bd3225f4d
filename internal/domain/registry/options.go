package registry

import "time"

// Option is a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the buffer capacity of each user's mailbox.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithSendTimeout bounds how long cell delivery may block on one session
// before backpressure shedding kicks in.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.sendTimeout = d
		}
	}
}

// WithEvictionInterval configures how often the janitor runs.
func WithEvictionInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.evictionInterval = d
		}
	}
}

// WithIdleTimeout defines the quiet period after which an empty cell is
// eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.idleTimeout = d
		}
	}
}
