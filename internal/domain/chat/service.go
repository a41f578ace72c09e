package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/realtime"
)

// Pusher delivers realtime events to a user's active connection. Pushes are
// best-effort: a false return means the user had no usable connection at
// that moment, which is never an error for the caller.
type Pusher interface {
	IsOnline(userID string) bool
	Push(userID string, event realtime.Event) bool
}

// Service orchestrates the send pipeline, delivery-state transitions, batch
// seen acknowledgement and message deletion. Persistence is always the first
// and authoritative step; channel pushes are hints on top of it.
type Service struct {
	conversations ConversationRepository
	messages      MessageRepository
	pusher        Pusher
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(conversations ConversationRepository, messages MessageRepository, pusher Pusher, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		pusher:        pusher,
		logger:        logger,
		now:           time.Now,
	}
}

// pairFor maps (userID, role, counterpartID) onto the fixed
// (doctorID, patientID) conversation key.
func pairFor(userID string, role Role, counterpartID string) (doctorID, patientID string) {
	if role == RoleDoctor {
		return userID, counterpartID
	}
	return counterpartID, userID
}

// MessageIncoming is the payload of a message-incoming event.
type MessageIncoming struct {
	Message *Message `json:"message"`
}

// StatusUpdate is the payload of a status-update event. Exactly one of
// MessageID and MessageIDs is set.
type StatusUpdate struct {
	MessageID  *uuid.UUID  `json:"message_id,omitempty"`
	MessageIDs []uuid.UUID `json:"message_ids,omitempty"`
	Status     Status      `json:"status"`
}

// MessageRemoved is the payload of message-deleted and message-redacted
// events.
type MessageRemoved struct {
	MessageID uuid.UUID `json:"message_id"`
}

// TypingSignal is the payload of a typing event.
type TypingSignal struct {
	From string `json:"from"`
}

// Send runs the send pipeline: ensure the conversation, persist the message
// as sent, update conversation aggregates, then fan out to the counterpart
// if they are online, advancing the message to delivered. The returned
// message carries the canonical store-assigned ID the client uses to replace
// its provisional entry.
func (s *Service) Send(ctx context.Context, senderID string, senderRole Role, counterpartID string, text, attachmentURL *string) (*Message, error) {
	if !senderRole.Valid() {
		return nil, fmt.Errorf("invalid sender role: %s", senderRole)
	}
	if counterpartID == "" {
		return nil, fmt.Errorf("counterpart id is required")
	}
	if counterpartID == senderID {
		return nil, ErrSelfConversation
	}
	if (text == nil || *text == "") && (attachmentURL == nil || *attachmentURL == "") {
		return nil, ErrEmptyMessage
	}

	doctorID, patientID := pairFor(senderID, senderRole, counterpartID)
	conv, err := s.conversations.Ensure(ctx, doctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	m := &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Text:           text,
		AttachmentURL:  attachmentURL,
		Status:         StatusSent,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	preview := "Attachment"
	if text != nil && *text != "" {
		preview = *text
	}
	if err := s.conversations.RecordSend(ctx, conv.ID, preview, m.CreatedAt, senderRole); err != nil {
		// The message is already durable; a stale aggregate is recoverable
		// on the next send, so this does not fail the operation.
		s.logger.Error().Err(err).Stringer("conversation_id", conv.ID).Msg("record send failed")
	}

	s.fanOut(ctx, m, senderID, counterpartID)
	return m, nil
}

// fanOut pushes a freshly persisted message to the counterpart and advances
// it to delivered when the counterpart holds an active connection. Failures
// here never propagate: the counterpart is simply treated as offline.
func (s *Service) fanOut(ctx context.Context, m *Message, senderID, counterpartID string) {
	if !s.pusher.Push(counterpartID, realtime.NewEvent(realtime.EventMessageIncoming, MessageIncoming{Message: m})) {
		// Counterpart offline (or buffer unavailable): the message stays
		// sent; the sender still gets an informational status echo.
		s.pusher.Push(senderID, realtime.NewEvent(realtime.EventStatusUpdate, StatusUpdate{
			MessageID: &m.ID,
			Status:    StatusSent,
		}))
		return
	}

	at := s.now().UTC()
	if err := s.messages.MarkDelivered(ctx, m.ID, at); err != nil {
		s.logger.Error().Err(err).Stringer("message_id", m.ID).Msg("mark delivered failed")
		return
	}
	if m.Status.CanAdvance(StatusDelivered) {
		m.Status = StatusDelivered
		m.DeliveredAt = &at
	}
	s.pusher.Push(senderID, realtime.NewEvent(realtime.EventStatusUpdate, StatusUpdate{
		MessageID: &m.ID,
		Status:    StatusDelivered,
	}))
}

// MarkSeen records a batch seen acknowledgement from a viewer for messages
// authored by the counterpart. Already-seen or foreign IDs are silently
// dropped, making re-submission a no-op. It returns the IDs that actually
// transitioned.
func (s *Service) MarkSeen(ctx context.Context, viewerID string, viewerRole Role, counterpartID string, ids []uuid.UUID) ([]uuid.UUID, error) {
	if !viewerRole.Valid() {
		return nil, fmt.Errorf("invalid viewer role: %s", viewerRole)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	doctorID, patientID := pairFor(viewerID, viewerRole, counterpartID)
	conv, err := s.conversations.GetByPair(ctx, doctorID, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	updated, err := s.messages.MarkSeen(ctx, conv.ID, counterpartID, ids, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	if err := s.conversations.ResolveUnread(ctx, conv.ID, viewerRole); err != nil {
		s.logger.Error().Err(err).Stringer("conversation_id", conv.ID).Msg("resolve unread failed")
	}

	if len(updated) > 0 {
		s.pusher.Push(counterpartID, realtime.NewEvent(realtime.EventStatusUpdate, StatusUpdate{
			MessageIDs: updated,
			Status:     StatusSeen,
		}))
	}
	return updated, nil
}

// FetchThread returns the viewer's view of a conversation: ordered by
// creation time, self-deleted messages filtered out, tombstoned messages
// with their content blanked.
func (s *Service) FetchThread(ctx context.Context, viewerID string, viewerRole Role, counterpartID string, limit, offset int) ([]*Message, int, error) {
	doctorID, patientID := pairFor(viewerID, viewerRole, counterpartID)
	conv, err := s.conversations.GetByPair(ctx, doctorID, patientID)
	if err != nil {
		if err == ErrNotFound {
			return []*Message{}, 0, nil
		}
		return nil, 0, err
	}

	all, total, err := s.messages.ListByConversation(ctx, conv.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	visible := make([]*Message, 0, len(all))
	for _, m := range all {
		if m.DeletedBy(viewerID) {
			continue
		}
		if m.Tombstoned {
			m.Redact()
		}
		visible = append(visible, m)
	}
	return visible, total, nil
}

// FetchConversations lists the viewer's conversation summaries, most
// recently active first.
func (s *Service) FetchConversations(ctx context.Context, userID string, role Role, limit, offset int) ([]ConversationSummary, int, error) {
	convs, total, err := s.conversations.ListForUser(ctx, userID, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, c.SummaryFor(role))
	}
	return summaries, total, nil
}

// DeleteForSelf hides a message from the acting party only. The counterpart
// keeps their copy; a removal signal goes to the actor's own connection so
// any other open view of theirs drops the message.
func (s *Service) DeleteForSelf(ctx context.Context, messageID uuid.UUID, actorID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	conv, err := s.conversations.GetByID(ctx, m.ConversationID)
	if err != nil {
		return err
	}
	if conv.CounterpartOf(actorID) == "" {
		return ErrNotFound
	}

	if err := s.messages.AddDeletedFor(ctx, messageID, actorID); err != nil {
		return err
	}

	s.pusher.Push(actorID, realtime.NewEvent(realtime.EventMessageDeleted, MessageRemoved{MessageID: messageID}))
	return nil
}

// DeleteForEveryone tombstones a message: content is cleared for both
// parties and a redaction signal is pushed to each of their connections.
// Only the original author may do this.
func (s *Service) DeleteForEveryone(ctx context.Context, messageID uuid.UUID, actorID string) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != actorID {
		return ErrNotAuthor
	}
	if m.Tombstoned {
		return nil
	}
	conv, err := s.conversations.GetByID(ctx, m.ConversationID)
	if err != nil {
		return err
	}

	if err := s.messages.Tombstone(ctx, messageID); err != nil {
		return err
	}

	redacted := realtime.NewEvent(realtime.EventMessageRedacted, MessageRemoved{MessageID: messageID})
	s.pusher.Push(conv.DoctorID, redacted)
	s.pusher.Push(conv.PatientID, redacted)
	return nil
}

// Typing forwards a fire-and-forget typing signal to the counterpart. No
// persistence, no acknowledgement, no retry.
func (s *Service) Typing(fromID, counterpartID string) {
	s.pusher.Push(counterpartID, realtime.NewEvent(realtime.EventTyping, TypingSignal{From: fromID}))
}
