package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockPusher) {
	pusher := newMockPusher("doc-1", "pat-1")
	svc, _, _ := newTestService(pusher)
	return NewHandler(svc), pusher
}

func doRequest(h echo.HandlerFunc, method, path, body, userID, role string, setup func(echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.RoleKey, role)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestSendMessageEndpoint(t *testing.T) {
	h, pusher := newTestHandler()

	body := `{"counterpart_id":"pat-1","text":"hello"}`
	rec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", body, "doc-1", "doctor", nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected canonical ID in response")
	}
	if m.Status != StatusDelivered {
		t.Errorf("expected delivered with counterpart online, got %s", m.Status)
	}
	if len(pusher.pushed["pat-1"]) == 0 {
		t.Error("expected a push to the counterpart")
	}
}

func TestSendMessageEndpoint_EmptyBody(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"counterpart_id":"pat-1"}`
	rec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", body, "doc-1", "doctor", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessageEndpoint_SelfConversation(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"counterpart_id":"doc-1","text":"note to self"}`
	rec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", body, "doc-1", "doctor", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMarkSeenEndpoint(t *testing.T) {
	h, _ := newTestHandler()

	sendBody := `{"counterpart_id":"pat-1","text":"hello"}`
	sendRec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", sendBody, "doc-1", "doctor", nil)
	var m Message
	json.Unmarshal(sendRec.Body.Bytes(), &m)

	seenBody := `{"counterpart_id":"doc-1","message_ids":["` + m.ID.String() + `"]}`
	rec := doRequest(h.MarkSeen, http.MethodPost, "/api/v1/chat/messages/seen", seenBody, "pat-1", "patient", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp seenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.SeenIDs) != 1 {
		t.Errorf("expected 1 seen ID, got %d", len(resp.SeenIDs))
	}
}

func TestMarkSeenEndpoint_UnknownConversation(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"counterpart_id":"doc-9","message_ids":["` + uuid.NewString() + `"]}`
	rec := doRequest(h.MarkSeen, http.MethodPost, "/api/v1/chat/messages/seen", body, "pat-1", "patient", nil)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteMessageEndpoint_ForSelf(t *testing.T) {
	h, _ := newTestHandler()

	sendBody := `{"counterpart_id":"pat-1","text":"oops"}`
	sendRec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", sendBody, "doc-1", "doctor", nil)
	var m Message
	json.Unmarshal(sendRec.Body.Bytes(), &m)

	rec := doRequest(h.DeleteMessage, http.MethodDelete, "/api/v1/chat/messages/"+m.ID.String()+"?mode=me", "", "doc-1", "doctor", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(m.ID.String())
	})

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteMessageEndpoint_ForEveryoneNotAuthor(t *testing.T) {
	h, _ := newTestHandler()

	sendBody := `{"counterpart_id":"pat-1","text":"mine"}`
	sendRec := doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", sendBody, "doc-1", "doctor", nil)
	var m Message
	json.Unmarshal(sendRec.Body.Bytes(), &m)

	rec := doRequest(h.DeleteMessage, http.MethodDelete, "/api/v1/chat/messages/"+m.ID.String()+"?mode=everyone", "", "pat-1", "patient", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(m.ID.String())
	})

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestDeleteMessageEndpoint_InvalidMode(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.DeleteMessage, http.MethodDelete, "/api/v1/chat/messages/"+uuid.NewString()+"?mode=later", "", "doc-1", "doctor", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(uuid.NewString())
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteMessageEndpoint_InvalidID(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.DeleteMessage, http.MethodDelete, "/api/v1/chat/messages/not-a-uuid", "", "doc-1", "doctor", func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues("not-a-uuid")
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFetchThreadEndpoint(t *testing.T) {
	h, _ := newTestHandler()

	for _, text := range []string{"one", "two", "three"} {
		body := `{"counterpart_id":"pat-1","text":"` + text + `"}`
		doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", body, "doc-1", "doctor", nil)
	}

	rec := doRequest(h.FetchThread, http.MethodGet, "/api/v1/chat/threads/doc-1", "", "pat-1", "patient", func(c echo.Context) {
		c.SetParamNames("counterpartId")
		c.SetParamValues("doc-1")
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []*Message `json:"data"`
		Total int        `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 3 {
		t.Errorf("expected 3 messages, got %d (total %d)", len(resp.Data), resp.Total)
	}
}

func TestFetchThreadEndpoint_EmptyForUnknownPair(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.FetchThread, http.MethodGet, "/api/v1/chat/threads/doc-9", "", "pat-1", "patient", func(c echo.Context) {
		c.SetParamNames("counterpartId")
		c.SetParamValues("doc-9")
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown pair, got %d", rec.Code)
	}
}

func TestFetchConversationsEndpoint(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"counterpart_id":"pat-1","text":"hello"}`
	doRequest(h.SendMessage, http.MethodPost, "/api/v1/chat/messages", body, "doc-1", "doctor", nil)

	rec := doRequest(h.FetchConversations, http.MethodGet, "/api/v1/chat/conversations", "", "pat-1", "patient", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []ConversationSummary `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(resp.Data))
	}
	if resp.Data[0].CounterpartID != "doc-1" {
		t.Errorf("expected counterpart doc-1, got %s", resp.Data[0].CounterpartID)
	}
	if resp.Data[0].Unread != 1 {
		t.Errorf("expected 1 unread, got %d", resp.Data[0].Unread)
	}
}
