/*
Package registry implements the per-user connection registry at the heart of
the real-time core.

Key architectural concepts:
  - Virtual Cells: every online user is represented by an isolated Cell that
    encapsulates all concurrent transport sessions (tabs, devices) for that
    identity. A user is "online" iff their cell exists.
  - Decoupling & Backpressure: per-user mailboxes ensure a slow consumer never
    blocks registry callers or the AMQP consumers upstream.
  - Concurrency: lock-free cell lookups via sync.Map plus fine-grained locking
    inside individual cells, so there is no global mutex to contend on.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

// Celler defines the internal API for user-specific delivery units.
type Celler interface {
	Push(ev event.Eventer) bool
	Attach(conn Connector)
	Detach(connID uuid.UUID) bool
	ConnIDs() []uuid.UUID
	Size() int
	IsIdle(timeout time.Duration) bool
	Stop()
}

// Cell owns delivery for a single user.
type Cell struct {
	userID uuid.UUID

	// mailbox decouples the dispatcher from individual session delivery.
	mailbox chan event.Eventer

	// sessions holds every active transport channel for the user,
	// multiplexing one event to multiple devices.
	sessions map[uuid.UUID]Connector

	// sendTimeout bounds how long delivery may block on one session.
	sendTimeout time.Duration

	// mu guards sessions. Read-heavy delivery outnumbers registration writes.
	mu sync.RWMutex

	doneCh   chan struct{}
	stopOnce sync.Once

	lastActivityAt time.Time
}

func NewCell(userID uuid.UUID, mailboxSize int, sendTimeout time.Duration) *Cell {
	c := &Cell{
		userID:         userID,
		mailbox:        make(chan event.Eventer, mailboxSize),
		sessions:       make(map[uuid.UUID]Connector),
		sendTimeout:    sendTimeout,
		doneCh:         make(chan struct{}),
		lastActivityAt: time.Now(),
	}
	go c.loop()
	return c
}

// IsIdle reports whether the cell has no sessions and no recent activity.
// The janitor evicts such cells; they exist only when a disconnect raced a
// concurrent register and left a cell momentarily empty.
func (c *Cell) IsIdle(timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions) == 0 && time.Since(c.lastActivityAt) > timeout
}

func (c *Cell) touch() {
	c.mu.Lock()
	c.lastActivityAt = time.Now()
	c.mu.Unlock()
}

func (c *Cell) Push(ev event.Eventer) bool {
	c.touch()
	select {
	case c.mailbox <- ev:
		return true
	default:
		return false
	}
}

// Attach is idempotent per connection ID.
func (c *Cell) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now()
	c.sessions[conn.GetID()] = conn
}

// Detach removes the session and reports whether the cell is now empty.
// Detaching an unknown ID is a no-op (duplicate disconnect events happen).
func (c *Cell) Detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, connID)
	c.lastActivityAt = time.Now()
	return len(c.sessions) == 0
}

// ConnIDs snapshots the IDs of every live session.
func (c *Cell) ConnIDs() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cell) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

// deliver fans one event out to every session. A failed write to one session
// never aborts delivery to the others.
func (c *Cell) deliver(ev event.Eventer) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.sessions) == 0 {
		return
	}

	for _, conn := range c.sessions {
		conn.Send(ev, c.sendTimeout)
	}
}

func (c *Cell) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
}
