package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
)

// Hubber is the gateway for user session management and event routing.
type Hubber interface {
	Broadcast(ev event.Eventer) bool
	Register(conn Connector)
	// Unregister removes a session and reports whether the user went offline
	// with this call (their last session is gone).
	Unregister(userID, connID uuid.UUID) bool
	IsOnline(userID uuid.UUID) bool
	Connections(userID uuid.UUID) []uuid.UUID
	Stats() model.HubStats
	Shutdown()
}

type hubConfig struct {
	mailboxSize      int
	sendTimeout      time.Duration
	evictionInterval time.Duration
	idleTimeout      time.Duration
}

// Hub maps each user to their Virtual Cell.
type Hub struct {
	// cells stores map[uuid.UUID]Celler, optimized for read-heavy workloads.
	cells sync.Map

	config hubConfig

	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			mailboxSize:      2048,
			sendTimeout:      500 * time.Millisecond,
			evictionInterval: 15 * time.Minute,
			idleTimeout:      30 * time.Minute,
		},
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.janitor()
	return h
}

// IsOnline is defined as "has a cell with at least one session".
// The invariant that an empty cell never lingers is kept by Unregister;
// the janitor only mops up cells orphaned by register/disconnect races.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	val, ok := h.cells.Load(userID)
	if !ok {
		return false
	}
	cell, ok := val.(Celler)
	return ok && cell.Size() > 0
}

// Connections snapshots the IDs of the user's live sessions, possibly empty.
func (h *Hub) Connections(userID uuid.UUID) []uuid.UUID {
	if val, ok := h.cells.Load(userID); ok {
		if cell, ok := val.(Celler); ok {
			return cell.ConnIDs()
		}
	}
	return nil
}

// Broadcast routes the event to the recipient's cell. Returns false on miss
// or mailbox overflow; callers treat that as "user effectively offline".
func (h *Hub) Broadcast(ev event.Eventer) bool {
	if val, ok := h.cells.Load(ev.GetUserID()); ok {
		if cell, ok := val.(Celler); ok {
			return cell.Push(ev)
		}
	}
	return false
}

// Register lazily creates the user's cell and attaches the new session.
// Registering the same (user, connection) pair twice is idempotent.
func (h *Hub) Register(conn Connector) {
	uID := conn.GetUserID()
	val, ok := h.cells.Load(uID)
	if !ok {
		fresh := NewCell(uID, h.config.mailboxSize, h.config.sendTimeout)
		var loaded bool
		val, loaded = h.cells.LoadOrStore(uID, Celler(fresh))
		if loaded {
			// Lost the race against a concurrent register; the stored cell wins.
			fresh.Stop()
		}
	}
	val.(Celler).Attach(conn)
}

// Unregister detaches the session and reclaims the cell when no sessions
// remain, so a user is present in the registry iff they are online.
func (h *Hub) Unregister(userID, connID uuid.UUID) bool {
	val, ok := h.cells.Load(userID)
	if !ok {
		return false
	}
	cell, ok := val.(Celler)
	if !ok {
		return false
	}
	if cell.Detach(connID) {
		cell.Stop()
		h.cells.Delete(userID)
		return true
	}
	return false
}

func (h *Hub) Stats() model.HubStats {
	var stats model.HubStats
	h.cells.Range(func(_, val any) bool {
		if cell, ok := val.(Celler); ok {
			stats.TotalUsers++
			stats.TotalConnections += cell.Size()
		}
		return true
	})
	return stats
}

// janitor periodically evicts cells that ended up empty without a matching
// Unregister (e.g. a transport died between LoadOrStore and Attach).
func (h *Hub) janitor() {
	ticker := time.NewTicker(h.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.doneCh:
			return
		case <-ticker.C:
			h.cells.Range(func(key, val any) bool {
				if cell, ok := val.(Celler); ok && cell.IsIdle(h.config.idleTimeout) {
					cell.Stop()
					h.cells.Delete(key)
				}
				return true
			})
		}
	}
}

// Shutdown stops the janitor and every cell goroutine.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.doneCh)
	})
	h.cells.Range(func(key, val any) bool {
		if cell, ok := val.(Celler); ok {
			cell.Stop()
		}
		h.cells.Delete(key)
		return true
	})
}
