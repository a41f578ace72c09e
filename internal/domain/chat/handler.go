package chat

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("doctor", "patient")

	g := api.Group("/chat", role)
	g.POST("/messages", h.SendMessage)
	g.POST("/messages/seen", h.MarkSeen)
	g.DELETE("/messages/:id", h.DeleteMessage)
	g.GET("/threads/:counterpartId", h.FetchThread)
	g.GET("/conversations", h.FetchConversations)
}

type sendRequest struct {
	CounterpartID string  `json:"counterpart_id"`
	Text          *string `json:"text,omitempty"`
	AttachmentURL *string `json:"attachment_url,omitempty"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m, err := h.svc.Send(ctx,
		auth.UserIDFromContext(ctx), Role(auth.RoleFromContext(ctx)),
		req.CounterpartID, req.Text, req.AttachmentURL)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrSelfConversation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			// Persistence failures are retryable for the client.
			return echo.NewHTTPError(http.StatusServiceUnavailable, "message could not be saved, retry")
		}
	}
	return c.JSON(http.StatusCreated, m)
}

type seenRequest struct {
	CounterpartID string      `json:"counterpart_id"`
	MessageIDs    []uuid.UUID `json:"message_ids"`
}

type seenResponse struct {
	SeenIDs []uuid.UUID `json:"seen_ids"`
}

func (h *Handler) MarkSeen(c echo.Context) error {
	ctx := c.Request().Context()
	var req seenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.svc.MarkSeen(ctx,
		auth.UserIDFromContext(ctx), Role(auth.RoleFromContext(ctx)),
		req.CounterpartID, req.MessageIDs)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "seen update failed, retry")
	}
	if updated == nil {
		updated = []uuid.UUID{}
	}
	return c.JSON(http.StatusOK, seenResponse{SeenIDs: updated})
}

// DeleteMessage dispatches on the mode query parameter to one of the two
// deletion operations: "me" hides the message for the caller only,
// "everyone" tombstones it for both parties.
func (h *Handler) DeleteMessage(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	actorID := auth.UserIDFromContext(ctx)

	switch mode := c.QueryParam("mode"); mode {
	case "", "me":
		err = h.svc.DeleteForSelf(ctx, id, actorID)
	case "everyone":
		err = h.svc.DeleteForEveryone(ctx, id, actorID)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be \"me\" or \"everyone\"")
	}

	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	case errors.Is(err, ErrNotAuthor):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "delete failed, retry")
	}
}

func (h *Handler) FetchThread(c echo.Context) error {
	ctx := c.Request().Context()
	counterpartID := c.Param("counterpartId")
	if counterpartID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "counterpart id is required")
	}

	pg := pagination.FromContext(c)
	msgs, total, err := h.svc.FetchThread(ctx,
		auth.UserIDFromContext(ctx), Role(auth.RoleFromContext(ctx)),
		counterpartID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(msgs, total, pg.Limit, pg.Offset))
}

func (h *Handler) FetchConversations(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.FetchConversations(ctx,
		auth.UserIDFromContext(ctx), Role(auth.RoleFromContext(ctx)),
		pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
