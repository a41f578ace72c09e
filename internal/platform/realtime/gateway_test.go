package realtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type recordingSink struct {
	seenViewerID      string
	seenViewerRole    string
	seenCounterpartID string
	seenIDs           []uuid.UUID
	seenCalls         int

	typingFrom        string
	typingCounterpart string
	typingCalls       int
}

func (s *recordingSink) MessagesSeen(_ context.Context, viewerID, viewerRole, counterpartID string, messageIDs []uuid.UUID) error {
	s.seenViewerID = viewerID
	s.seenViewerRole = viewerRole
	s.seenCounterpartID = counterpartID
	s.seenIDs = messageIDs
	s.seenCalls++
	return nil
}

func (s *recordingSink) Typing(fromID, counterpartID string) {
	s.typingFrom = fromID
	s.typingCounterpart = counterpartID
	s.typingCalls++
}

func newTestGateway(sink EventSink) (*Gateway, *Registry) {
	r := NewRegistry(zerolog.Nop())
	return NewGateway(r, sink, zerolog.Nop(), 8), r
}

func TestDispatchSeen(t *testing.T) {
	sink := &recordingSink{}
	g, _ := newTestGateway(sink)
	client := newTestClient("pat-1", "patient", 8)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	g.dispatch(client, inbound{Type: EventMessageSeen, CounterpartID: "doc-1", MessageIDs: ids})

	if sink.seenCalls != 1 {
		t.Fatalf("expected 1 seen call, got %d", sink.seenCalls)
	}
	if sink.seenViewerID != "pat-1" || sink.seenViewerRole != "patient" {
		t.Error("expected viewer identity taken from the connection, not the payload")
	}
	if sink.seenCounterpartID != "doc-1" {
		t.Errorf("expected counterpart doc-1, got %s", sink.seenCounterpartID)
	}
	if len(sink.seenIDs) != 2 {
		t.Errorf("expected 2 message IDs, got %d", len(sink.seenIDs))
	}
}

func TestDispatchTyping(t *testing.T) {
	sink := &recordingSink{}
	g, _ := newTestGateway(sink)
	client := newTestClient("doc-1", "doctor", 8)

	g.dispatch(client, inbound{Type: EventTyping, CounterpartID: "pat-1"})

	if sink.typingCalls != 1 {
		t.Fatalf("expected 1 typing call, got %d", sink.typingCalls)
	}
	if sink.typingFrom != "doc-1" || sink.typingCounterpart != "pat-1" {
		t.Error("expected typing signal routed from connection owner to counterpart")
	}
}

func TestDispatchPresenceAnnounce(t *testing.T) {
	sink := &recordingSink{}
	g, r := newTestGateway(sink)
	client := newTestClient("doc-1", "doctor", 8)
	r.Register(client)
	drain(t, client)

	g.dispatch(client, inbound{Type: EventPresenceAnnounce})

	events := drain(t, client)
	if len(events) != 1 || events[0].Type != EventOnlineUsers {
		t.Fatal("expected an online-users re-sync")
	}
	if sink.seenCalls != 0 || sink.typingCalls != 0 {
		t.Error("expected no sink calls for a presence announce")
	}
}

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	sink := &recordingSink{}
	g, _ := newTestGateway(sink)
	client := newTestClient("doc-1", "doctor", 8)

	g.dispatch(client, inbound{Type: "subscribe"})

	if sink.seenCalls != 0 || sink.typingCalls != 0 {
		t.Error("expected unknown event types to be dropped")
	}
}
