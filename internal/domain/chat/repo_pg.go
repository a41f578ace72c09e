package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// -- Conversation repository --

type conversationRepoPG struct{ pool *pgxpool.Pool }

func NewConversationRepoPG(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{pool: pool}
}

func (r *conversationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const convCols = `id, doctor_id, patient_id, last_message_text, last_message_at,
	unread_for_doctor, unread_for_patient, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.LastMessageText, &c.LastMessageAt,
		&c.UnreadForDoctor, &c.UnreadForPatient, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *conversationRepoPG) Ensure(ctx context.Context, doctorID, patientID string) (*Conversation, error) {
	// The no-op DO UPDATE makes the insert return the existing row instead
	// of nothing when the pair already exists.
	return scanConversation(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO conversation (id, doctor_id, patient_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id, patient_id)
		DO UPDATE SET doctor_id = EXCLUDED.doctor_id
		RETURNING `+convCols,
		uuid.New(), doctorID, patientID))
}

func (r *conversationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	return scanConversation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+convCols+` FROM conversation WHERE id = $1`, id))
}

func (r *conversationRepoPG) GetByPair(ctx context.Context, doctorID, patientID string) (*Conversation, error) {
	return scanConversation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+convCols+` FROM conversation WHERE doctor_id = $1 AND patient_id = $2`,
		doctorID, patientID))
}

func (r *conversationRepoPG) RecordSend(ctx context.Context, id uuid.UUID, text string, sentAt time.Time, senderRole Role) error {
	// Last-message fields are last-writer-wins on sent time; the unread
	// increment for the counterpart is unconditional and atomic.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation SET
			last_message_text = CASE WHEN last_message_at IS NULL OR last_message_at <= $3 THEN $2 ELSE last_message_text END,
			last_message_at   = CASE WHEN last_message_at IS NULL OR last_message_at <= $3 THEN $3 ELSE last_message_at END,
			unread_for_doctor  = unread_for_doctor  + CASE WHEN $4 = 'patient' THEN 1 ELSE 0 END,
			unread_for_patient = unread_for_patient + CASE WHEN $4 = 'doctor'  THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1`,
		id, text, sentAt, string(senderRole))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepoPG) ResolveUnread(ctx context.Context, id uuid.UUID, viewerRole Role) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation SET
			unread_for_doctor  = CASE WHEN $2 = 'doctor'  THEN 0 ELSE unread_for_doctor  END,
			unread_for_patient = CASE WHEN $2 = 'patient' THEN 0 ELSE unread_for_patient END,
			updated_at = NOW()
		WHERE id = $1`,
		id, string(viewerRole))
	return err
}

func (r *conversationRepoPG) ListForUser(ctx context.Context, userID string, role Role, limit, offset int) ([]*Conversation, int, error) {
	col := "patient_id"
	if role == RoleDoctor {
		col = "doctor_id"
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation WHERE `+col+` = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+convCols+` FROM conversation WHERE `+col+` = $1
		 ORDER BY last_message_at DESC NULLS LAST LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// -- Message repository --

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const msgCols = `id, conversation_id, sender_id, sender_role, text, attachment_url,
	status, created_at, delivered_at, seen_at, deleted_for, tombstoned`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole, &m.Text, &m.AttachmentURL,
		&m.Status, &m.CreatedAt, &m.DeliveredAt, &m.SeenAt, &m.DeletedFor, &m.Tombstoned)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	if m.Status == "" {
		m.Status = StatusSent
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO message (id, conversation_id, sender_id, sender_role, text, attachment_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, string(m.SenderRole), m.Text, m.AttachmentURL, string(m.Status)).
		Scan(&m.CreatedAt)
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+msgCols+` FROM message WHERE id = $1`, id))
}

func (r *messageRepoPG) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM message WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+msgCols+` FROM message WHERE conversation_id = $1
		 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *messageRepoPG) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET status = 'delivered', delivered_at = $2
		WHERE id = $1 AND status = 'sent' AND NOT tombstoned`,
		id, at)
	return err
}

func (r *messageRepoPG) MarkSeen(ctx context.Context, conversationID uuid.UUID, authorID string, ids []uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE message SET
			status = 'seen',
			seen_at = $4,
			delivered_at = COALESCE(delivered_at, $4)
		WHERE id = ANY($3)
		  AND conversation_id = $1
		  AND sender_id = $2
		  AND status <> 'seen'
		  AND NOT tombstoned
		RETURNING id`,
		conversationID, authorID, ids, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var updated []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

func (r *messageRepoPG) AddDeletedFor(ctx context.Context, id uuid.UUID, actorID string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET deleted_for = array_append(deleted_for, $2)
		WHERE id = $1 AND NOT ($2 = ANY(deleted_for))`,
		id, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the message is gone or the actor already deleted it;
		// distinguish so repeat deletes stay a no-op.
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM message WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *messageRepoPG) Tombstone(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET text = NULL, attachment_url = NULL, tombstoned = TRUE
		WHERE id = $1`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
