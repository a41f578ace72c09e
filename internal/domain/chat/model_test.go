package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStatusCanAdvance(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusSeen, true},
		{StatusDelivered, StatusSeen, true},
		{StatusDelivered, StatusSent, false},
		{StatusSeen, StatusDelivered, false},
		{StatusSeen, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusSeen, StatusSeen, false},
	}
	for _, c := range cases {
		if got := c.from.CanAdvance(c.to); got != c.want {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.want, got)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusSent, StatusDelivered, StatusSeen} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("read").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestRoleOther(t *testing.T) {
	if RoleDoctor.Other() != RolePatient {
		t.Error("expected patient as doctor's counterpart role")
	}
	if RolePatient.Other() != RoleDoctor {
		t.Error("expected doctor as patient's counterpart role")
	}
}

func TestConversationCounterpartOf(t *testing.T) {
	c := &Conversation{DoctorID: "doc-1", PatientID: "pat-1"}

	if got := c.CounterpartOf("doc-1"); got != "pat-1" {
		t.Errorf("expected pat-1, got %s", got)
	}
	if got := c.CounterpartOf("pat-1"); got != "doc-1" {
		t.Errorf("expected doc-1, got %s", got)
	}
	if got := c.CounterpartOf("stranger"); got != "" {
		t.Errorf("expected empty for non-participant, got %s", got)
	}
}

func TestConversationSummaryFor(t *testing.T) {
	now := time.Now()
	text := "latest"
	c := &Conversation{
		ID:               uuid.New(),
		DoctorID:         "doc-1",
		PatientID:        "pat-1",
		LastMessageText:  &text,
		LastMessageAt:    &now,
		UnreadForDoctor:  3,
		UnreadForPatient: 1,
	}

	docView := c.SummaryFor(RoleDoctor)
	if docView.CounterpartID != "pat-1" {
		t.Errorf("expected counterpart pat-1, got %s", docView.CounterpartID)
	}
	if docView.Unread != 3 {
		t.Errorf("expected 3 unread, got %d", docView.Unread)
	}

	patView := c.SummaryFor(RolePatient)
	if patView.CounterpartID != "doc-1" {
		t.Errorf("expected counterpart doc-1, got %s", patView.CounterpartID)
	}
	if patView.Unread != 1 {
		t.Errorf("expected 1 unread, got %d", patView.Unread)
	}
}

func TestMessageDeletedBy(t *testing.T) {
	m := &Message{DeletedFor: []string{"pat-1"}}

	if !m.DeletedBy("pat-1") {
		t.Error("expected deleted for pat-1")
	}
	if m.DeletedBy("doc-1") {
		t.Error("expected not deleted for doc-1")
	}
}

func TestMessageRedact(t *testing.T) {
	text := "sensitive"
	url := "https://files.example/a.png"
	m := &Message{Text: &text, AttachmentURL: &url}

	m.Redact()
	if m.Text != nil || m.AttachmentURL != nil {
		t.Error("expected content to be cleared")
	}
}
