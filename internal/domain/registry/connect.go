package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the handle a transport (WebSocket, long-poll) holds on its
// registry session. It decouples the Hub from the concrete implementation
// and allows mocking in tests.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Send(ev event.Eventer, timeout time.Duration) bool // Thread-safe send with backpressure handling
	Recv() <-chan event.Eventer
	Close() // Terminate connection and release resources
}

// ConnectMetadata is exported for transport and analytics layers.
type ConnectMetadata struct {
	Platform  string
	Version   string
	RemoteIP  string
	UserAgent string
}

// connect is the concrete implementation, unexported to force interface usage.
type connect struct {
	id        uuid.UUID
	userID    uuid.UUID
	metadata  ConnectMetadata
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh chan event.Eventer

	closeOnce sync.Once

	// [ATOMIC_FIELDS]
	lastActivityAt int64
	droppedCount   uint64
}

// [POOL] Connections churn constantly; reuse reduces GC pressure.
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

// NewConnector creates a registry session bound to the transport's context.
func NewConnector(ctx context.Context, userID uuid.UUID, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, userID, bufferSize)
	return c
}

// reset re-initializes the connector's state with a struct literal.
// Reassigning the value wipes stale data from pooled objects and
// re-arms the sync.Once guard.
func (c *connect) reset(ctx context.Context, userID uuid.UUID, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:             uuid.New(),
		userID:         userID,
		createdAt:      time.Now(),
		ctx:            childCtx,
		cancelFn:       cancel,
		sendCh:         make(chan event.Eventer, bufferSize),
		lastActivityAt: time.Now().UnixNano(),
	}
}

func (c *connect) GetID() uuid.UUID     { return c.id }
func (c *connect) GetUserID() uuid.UUID { return c.userID }

// Send attempts to push an event into the session's mailbox.
// Delivery is at-most-once: when the buffer stays saturated for the whole
// timeout the event is shed according to its priority.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	// [LIFECYCLE_GATE] Abort immediately if the underlying transport is already dead.
	case <-c.ctx.Done():
		return false

	// [PRIMARY_DELIVERY] Waits up to 'timeout' for buffer space, which
	// smooths out transient network jitter.
	case c.sendCh <- ev:
		atomic.StoreInt64(&c.lastActivityAt, time.Now().UnixNano())
		return true

	// [BACKPRESSURE] Persistent slow consumer or network congestion.
	case <-ctx.Done():
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure manages full buffers by dropping low-priority events.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	// Presence and typing signals are droppable by contract; shed them first.
	if ev.GetPriority() <= event.PriorityLow {
		atomic.AddUint64(&c.droppedCount, 1)
		return false
	}

	// Try to evict one queued low-priority event to make room for a higher one.
	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			select {
			case c.sendCh <- ev:
				return true
			default:
			}
		} else {
			// The queued event mattered too; put it back, best effort.
			select {
			case c.sendCh <- oldEv:
			default:
			}
		}
	default:
	}

	atomic.AddUint64(&c.droppedCount, 1)
	return false
}

func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }

// Dropped returns how many events this session shed under backpressure.
func (c *connect) Dropped() uint64 {
	return atomic.LoadUint64(&c.droppedCount)
}

// Close terminates the session, triggers cleanup, and recycles the object.
func (c *connect) Close() {
	// Runs exactly once even when called concurrently by the Hub (shutdown),
	// the Cell (eviction), and the transport handler (defer).
	c.closeOnce.Do(func() {
		c.cancelFn()

		// Closing the channel signals the transport pump (via !ok) to send a
		// final disconnect frame and exit its loop.
		if c.sendCh != nil {
			close(c.sendCh)
		}

		c.sendCh = nil
		c.metadata = ConnectMetadata{}

		connectPool.Put(c)
	})
}
