package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConversationRepository is the durable store for conversations. The store
// owns pair uniqueness and the atomicity of unread-counter updates.
type ConversationRepository interface {
	// Ensure returns the conversation for the doctor/patient pair, creating
	// it if absent. The upsert is idempotent under concurrent callers.
	Ensure(ctx context.Context, doctorID, patientID string) (*Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// GetByPair returns the conversation for the pair without creating one.
	GetByPair(ctx context.Context, doctorID, patientID string) (*Conversation, error)
	// RecordSend overwrites the last-message fields (last writer wins) and
	// atomically increments the unread counter of the non-sending role.
	RecordSend(ctx context.Context, id uuid.UUID, text string, sentAt time.Time, senderRole Role) error
	// ResolveUnread zeroes the unread counter belonging to viewerRole.
	ResolveUnread(ctx context.Context, id uuid.UUID, viewerRole Role) error
	ListForUser(ctx context.Context, userID string, role Role, limit, offset int) ([]*Conversation, int, error)
}

// MessageRepository is the durable store for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListByConversation returns messages ordered by created_at ascending.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, int, error)
	// MarkDelivered advances a message to delivered, setting delivered_at
	// once. Messages already delivered or seen are left untouched.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkSeen advances the given messages to seen in one batch, provided
	// they belong to the conversation, were authored by authorID, and are
	// not yet seen. It returns the IDs actually updated.
	MarkSeen(ctx context.Context, conversationID uuid.UUID, authorID string, ids []uuid.UUID, at time.Time) ([]uuid.UUID, error)
	// AddDeletedFor appends actorID to the message's deleted_for set.
	AddDeletedFor(ctx context.Context, id uuid.UUID, actorID string) error
	// Tombstone clears text and attachment and marks the message deleted
	// for everyone.
	Tombstone(ctx context.Context, id uuid.UUID) error
}
