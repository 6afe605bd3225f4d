package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nimblechat/presence-delivery-service/internal/domain/event"
	"github.com/nimblechat/presence-delivery-service/internal/domain/registry"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

// ReceiptExporter re-publishes delivery/read receipts to the message bus so
// the CRUD layer and other delivery nodes observe them.
type ReceiptExporter interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

// DeliveryReconciler catches up delivery state for messages that were sent
// while their recipient was offline.
type DeliveryReconciler struct {
	hub      registry.Hubber
	msgs     storage.MessageStore
	exporter ReceiptExporter
	logger   *slog.Logger

	// sweepCap bounds one reconnect's sweep so a user with a huge backlog
	// cannot stall session setup; the remainder is picked up next time.
	sweepCap int
}

func NewDeliveryReconciler(
	hub registry.Hubber,
	msgs storage.MessageStore,
	exporter ReceiptExporter,
	logger *slog.Logger,
	sweepCap int,
) *DeliveryReconciler {
	if sweepCap <= 0 {
		sweepCap = 500
	}
	return &DeliveryReconciler{
		hub:      hub,
		msgs:     msgs,
		exporter: exporter,
		logger:   logger,
		sweepCap: sweepCap,
	}
}

type sweepGroup struct {
	sender       uuid.UUID
	conversation uuid.UUID
}

// Sweep marks every pending message for userID as delivered and notifies the
// original senders, one event per (sender, conversation) pair rather than one
// per message. Re-running a sweep with nothing pending emits no events.
func (r *DeliveryReconciler) Sweep(ctx context.Context, userID uuid.UUID) error {
	pending, err := r.msgs.PendingDelivery(ctx, userID, r.sweepCap)
	if err != nil {
		return fmt.Errorf("reconcile: pending lookup for %s: %w", userID, err)
	}
	if len(pending) == 0 {
		return nil
	}

	groups := make(map[sweepGroup]int)

	for _, m := range pending {
		// The store query excludes own messages; keep the invariant locally too.
		if m.SenderID == userID {
			continue
		}

		applied, err := r.msgs.ApplyDelivered(ctx, m.ID, userID)
		if err != nil {
			// One bad message must not abort the rest of the sweep.
			r.logger.Warn("delivery transition failed",
				slog.String("message_id", m.ID.String()),
				slog.Any("err", err),
			)
			continue
		}
		if applied {
			groups[sweepGroup{sender: m.SenderID, conversation: m.ConversationID}]++
		}
		// !applied: a concurrent writer (read receipt, duplicate sweep,
		// at-send optimization) already advanced it. Silent no-op.
	}

	for g, count := range groups {
		ev := event.NewDeliveredEvent(g.sender, g.conversation)

		if !r.hub.Broadcast(ev) {
			r.logger.Debug("sender has no local connections for delivery receipt",
				slog.String("sender", g.sender.String()),
			)
		}

		if err := r.exporter.Publish(ctx, ev); err != nil {
			r.logger.Warn("delivery receipt export failed",
				slog.String("sender", g.sender.String()),
				slog.Any("err", err),
			)
		}

		r.logger.Debug("delivery sweep group confirmed",
			slog.String("sender", g.sender.String()),
			slog.String("conversation", g.conversation.String()),
			slog.Int("messages", count),
		)
	}

	return nil
}
