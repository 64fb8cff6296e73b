package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// NotificationHandler serves the notification inbox and the
// lightweight unread poll.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: n}
}

type notificationPart struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RequestID uint64 `json:"request_id,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func notificationToPart(n model.Notification) notificationPart {
	p := notificationPart{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.RequestID != nil {
		p.RequestID = *n.RequestID
	}
	return p
}

// owns reports whether the identity may act on the notification.
// The global admin may act on any notification, including ones
// addressed to a site credential; everyone else only on rows
// addressed to their own credential.
func owns(id *auth.Identity, n *model.Notification) bool {
	if id.IsGlobalAdmin() {
		return true
	}
	return n.TargetID != nil && *n.TargetID == id.CredentialID
}

// List handles GET /v1/notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	id, _, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ns, err := h.Notifications.VisibleTo(ctx, *id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load notifications failed"})
	}
	parts := make([]notificationPart, 0, len(ns))
	unread := 0
	for _, n := range ns {
		if !n.IsRead {
			unread++
		}
		parts = append(parts, notificationToPart(n))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": parts,
		"count":         len(parts),
		"unread":        unread,
	})
}

// Unread handles GET /v1/notifications/unread, the polling endpoint.
func (h *NotificationHandler) Unread(c echo.Context) error {
	id, _, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ns, err := h.Notifications.Unread(ctx, *id, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load notifications failed"})
	}
	parts := make([]notificationPart, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, notificationToPart(n))
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": parts, "count": len(parts)})
}

// loadOwned fetches a notification by path id and applies the
// ownership rule shared by MarkRead and Delete.
func (h *NotificationHandler) loadOwned(c echo.Context, ctx context.Context, id *auth.Identity) (*model.Notification, error) {
	nid, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || nid == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}
	n, err := h.Notifications.GetByID(ctx, nid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "load notification failed")
	}
	if !owns(id, n) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return n, nil
}

// MarkRead handles POST /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, _, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.loadOwned(c, ctx, id)
	if err != nil {
		return err
	}
	if err := h.Notifications.MarkRead(ctx, n.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mark read failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "marked read"})
}

// Delete handles DELETE /v1/notifications/:id.  A missing id is a
// 404, never a silent success.
func (h *NotificationHandler) Delete(c echo.Context) error {
	id, _, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.loadOwned(c, ctx, id)
	if err != nil {
		return err
	}
	if err := h.Notifications.Delete(ctx, n.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete notification failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "notification deleted"})
}
