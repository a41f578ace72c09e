package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of a conversation a user is on.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the two fixed conversation roles.
func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Status is the delivery state of a message. It only ever moves forward:
// sent -> delivered -> seen.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
)

var statusRank = map[Status]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// Valid reports whether s is a known delivery status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvance reports whether a message in status s may transition to next.
// Setting an equal or earlier status is not an error at the call sites, it
// is simply skipped.
func (s Status) CanAdvance(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// Conversation maps to the conversation table. One row per unordered
// doctor/patient pair; created lazily on first send.
type Conversation struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	DoctorID         string     `db:"doctor_id" json:"doctor_id"`
	PatientID        string     `db:"patient_id" json:"patient_id"`
	LastMessageText  *string    `db:"last_message_text" json:"last_message_text,omitempty"`
	LastMessageAt    *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadForDoctor  int        `db:"unread_for_doctor" json:"unread_for_doctor"`
	UnreadForPatient int        `db:"unread_for_patient" json:"unread_for_patient"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ParticipantIDs returns the two user IDs in (doctor, patient) order.
func (c *Conversation) ParticipantIDs() (string, string) {
	return c.DoctorID, c.PatientID
}

// CounterpartOf returns the other participant's user ID, or "" if userID is
// not part of the conversation.
func (c *Conversation) CounterpartOf(userID string) string {
	switch userID {
	case c.DoctorID:
		return c.PatientID
	case c.PatientID:
		return c.DoctorID
	}
	return ""
}

// UnreadFor returns the unread counter belonging to the given role.
func (c *Conversation) UnreadFor(role Role) int {
	if role == RoleDoctor {
		return c.UnreadForDoctor
	}
	return c.UnreadForPatient
}

// Message maps to the message table. The ID is assigned by the store at
// persistence time; client-side provisional IDs never reach this struct.
type Message struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ConversationID uuid.UUID  `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	SenderRole     Role       `db:"sender_role" json:"sender_role"`
	Text           *string    `db:"text" json:"text,omitempty"`
	AttachmentURL  *string    `db:"attachment_url" json:"attachment_url,omitempty"`
	Status         Status     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	SeenAt         *time.Time `db:"seen_at" json:"seen_at,omitempty"`
	DeletedFor     []string   `db:"deleted_for" json:"deleted_for,omitempty"`
	Tombstoned     bool       `db:"tombstoned" json:"tombstoned"`
}

// DeletedBy reports whether actorID has soft-deleted the message for
// themselves.
func (m *Message) DeletedBy(actorID string) bool {
	for _, id := range m.DeletedFor {
		if id == actorID {
			return true
		}
	}
	return false
}

// Redact clears the message content. Used when presenting a tombstoned
// message; the stored row is cleared by the repository at tombstone time.
func (m *Message) Redact() {
	m.Text = nil
	m.AttachmentURL = nil
}

// ConversationSummary is the per-viewer projection returned by the
// conversation list endpoint.
type ConversationSummary struct {
	ID              uuid.UUID  `json:"id"`
	CounterpartID   string     `json:"counterpart_id"`
	LastMessageText *string    `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	Unread          int        `json:"unread"`
}

// SummaryFor projects a conversation for the given viewer role.
func (c *Conversation) SummaryFor(role Role) ConversationSummary {
	s := ConversationSummary{
		ID:              c.ID,
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		Unread:          c.UnreadFor(role),
	}
	if role == RoleDoctor {
		s.CounterpartID = c.PatientID
	} else {
		s.CounterpartID = c.DoctorID
	}
	return s
}
