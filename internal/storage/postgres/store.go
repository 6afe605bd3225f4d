// Package postgres is the production store. Message-state transitions are
// expressed as conditional UPDATE statements so the database is the single
// arbiter of races between sweeps, reads, and the at-send optimization.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimblechat/presence-delivery-service/internal/domain/model"
	"github.com/nimblechat/presence-delivery-service/internal/storage"
)

var (
	_ storage.ConversationStore = (*Store)(nil)
	_ storage.MessageStore      = (*Store)(nil)
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectPartners = `
SELECT cm.conversation_id::text, cm2.user_id::text
FROM conversation_members cm
JOIN conversation_members cm2
  ON cm2.conversation_id = cm.conversation_id AND cm2.user_id <> cm.user_id
WHERE cm.user_id = $1::uuid
ORDER BY cm.conversation_id`

func (s *Store) DirectPartners(ctx context.Context, userID uuid.UUID) ([]model.Partner, error) {
	rows, err := s.pool.Query(ctx, selectPartners, userID.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: direct partners: %w", err)
	}
	defer rows.Close()

	var partners []model.Partner
	for rows.Next() {
		var convID, otherID string
		if err := rows.Scan(&convID, &otherID); err != nil {
			return nil, fmt.Errorf("postgres: scan partner: %w", err)
		}
		p := model.Partner{}
		if p.ConversationID, err = uuid.Parse(convID); err != nil {
			return nil, fmt.Errorf("postgres: partner conversation id: %w", err)
		}
		if p.UserID, err = uuid.Parse(otherID); err != nil {
			return nil, fmt.Errorf("postgres: partner user id: %w", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

const selectMembers = `
SELECT user_id::text
FROM conversation_members
WHERE conversation_id = $1::uuid
ORDER BY user_id`

func (s *Store) Direct(ctx context.Context, conversationID uuid.UUID) (model.DirectConversation, error) {
	rows, err := s.pool.Query(ctx, selectMembers, conversationID.String())
	if err != nil {
		return model.DirectConversation{}, fmt.Errorf("postgres: conversation members: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return model.DirectConversation{}, fmt.Errorf("postgres: scan member: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return model.DirectConversation{}, fmt.Errorf("postgres: member id: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return model.DirectConversation{}, err
	}

	switch len(members) {
	case 0:
		return model.DirectConversation{}, storage.ErrNotFound
	case 2:
		return model.DirectConversation{
			ID:      conversationID,
			Members: [2]uuid.UUID{members[0], members[1]},
		}, nil
	default:
		return model.DirectConversation{}, storage.ErrNotDirect
	}
}

const messageColumns = `
m.id::text, m.conversation_id::text, m.sender_id::text, m.body, m.state,
m.delivered_to::text[], m.read_by::text[], m.created_at, m.updated_at`

const selectPending = `
SELECT ` + messageColumns + `
FROM messages m
JOIN conversation_members cm
  ON cm.conversation_id = m.conversation_id AND cm.user_id = $1::uuid
WHERE m.state = 'sent'
  AND m.sender_id <> $1::uuid
  AND NOT (m.delivered_to @> ARRAY[$1]::uuid[])
ORDER BY m.created_at
LIMIT $2`

func (s *Store) PendingDelivery(ctx context.Context, userID uuid.UUID, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, selectPending, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending delivery: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

const selectByConversation = `
SELECT ` + messageColumns + `
FROM messages m
WHERE m.conversation_id = $1::uuid
ORDER BY m.created_at`

func (s *Store) ConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, selectByConversation, conversationID.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: conversation messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// applyDelivered succeeds only while the sweep precondition still holds;
// zero rows affected means a concurrent writer already advanced the message.
const applyDelivered = `
UPDATE messages
SET delivered_to = delivered_to || $2::uuid,
    state = 'delivered',
    updated_at = (extract(epoch FROM now()) * 1000)::bigint
WHERE id = $1::uuid
  AND sender_id <> $2::uuid
  AND state = 'sent'
  AND NOT (delivered_to @> ARRAY[$2]::uuid[])`

func (s *Store) ApplyDelivered(ctx context.Context, messageID, recipientID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, applyDelivered, messageID.String(), recipientID.String())
	if err != nil {
		return false, fmt.Errorf("postgres: apply delivered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const applyRead = `
UPDATE messages
SET read_by = read_by || $2::uuid,
    delivered_to = CASE
      WHEN delivered_to @> ARRAY[$2]::uuid[] THEN delivered_to
      ELSE delivered_to || $2::uuid
    END,
    state = 'read',
    updated_at = (extract(epoch FROM now()) * 1000)::bigint
WHERE id = $1::uuid
  AND sender_id <> $2::uuid
  AND state <> 'read'
  AND NOT (read_by @> ARRAY[$2]::uuid[])`

func (s *Store) ApplyRead(ctx context.Context, messageID, readerID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, applyRead, messageID.String(), readerID.String())
	if err != nil {
		return false, fmt.Errorf("postgres: apply read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	var msgs []model.Message
	for rows.Next() {
		var (
			id, convID, senderID, state string
			deliveredTo, readBy         []string
			m                           model.Message
		)
		if err := rows.Scan(&id, &convID, &senderID, &m.Text, &state,
			&deliveredTo, &readBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}

		var err error
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("postgres: message id: %w", err)
		}
		if m.ConversationID, err = uuid.Parse(convID); err != nil {
			return nil, fmt.Errorf("postgres: message conversation id: %w", err)
		}
		if m.SenderID, err = uuid.Parse(senderID); err != nil {
			return nil, fmt.Errorf("postgres: message sender id: %w", err)
		}
		if m.State = model.ParseMessageState(state); m.State == 0 {
			return nil, fmt.Errorf("postgres: message %s: unknown state %q", id, state)
		}
		if m.DeliveredTo, err = parseUserSet(deliveredTo); err != nil {
			return nil, err
		}
		if m.ReadBy, err = parseUserSet(readBy); err != nil {
			return nil, err
		}

		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func parseUserSet(raw []string) (model.UserSet, error) {
	set := make(model.UserSet, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("postgres: user set entry %q: %w", v, err)
		}
		set = append(set, id)
	}
	return set, nil
}

// IsNotFound reports whether err is the driver-level empty result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
