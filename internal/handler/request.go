package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/queue"
	"github.com/istrom/site-inventory/internal/repository"
	queue_publisher "github.com/istrom/site-inventory/internal/service"
)

// RequestHandler drives the request lifecycle: submission, the
// approve/reject decisions and deletion.  Every mutation runs as one
// transaction so a status change, its actual row and its
// notifications commit together or not at all.
type RequestHandler struct {
	Items         *repository.ItemRepo
	Requests      *repository.RequestRepo
	Actuals       *repository.ActualRepo
	Notifications *repository.NotificationRepo
	Codes         *repository.AccessCodeRepo
}

func NewRequestHandler(items *repository.ItemRepo, reqs *repository.RequestRepo, actuals *repository.ActualRepo, notifs *repository.NotificationRepo, codes *repository.AccessCodeRepo) *RequestHandler {
	return &RequestHandler{Items: items, Requests: reqs, Actuals: actuals, Notifications: notifs, Codes: codes}
}

type submitRequestReq struct {
	ItemID       uint64  `json:"item_id"`
	Qty          float64 `json:"qty"`
	Note         string  `json:"note"`
	Section      string  `json:"section"`
	BuildingType string  `json:"building_type"`
	Budget       string  `json:"budget"`
	CurrentPrice float64 `json:"current_price"`
}

type requestPart struct {
	ID           uint64  `json:"id"`
	ItemID       uint64  `json:"item_id"`
	Qty          float64 `json:"qty"`
	RequestedBy  string  `json:"requested_by"`
	Note         string  `json:"note"`
	Section      string  `json:"section"`
	BuildingType string  `json:"building_type"`
	Budget       string  `json:"budget"`
	CurrentPrice float64 `json:"current_price"`
	Site         string  `json:"site,omitempty"`
	Status       string  `json:"status"`
	ApprovedBy   string  `json:"approved_by,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func requestToPart(r model.Request) requestPart {
	p := requestPart{
		ID:           r.ID,
		ItemID:       r.ItemID,
		Qty:          r.Qty,
		RequestedBy:  r.RequestedBy,
		Note:         r.Note,
		Section:      r.Section,
		BuildingType: r.BuildingType,
		Budget:       r.Budget,
		CurrentPrice: r.CurrentPrice,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Site != nil {
		p.Site = *r.Site
	}
	if r.ApprovedBy != nil {
		p.ApprovedBy = *r.ApprovedBy
	}
	return p
}

// Submit handles POST /v1/requests.  The referenced item must be
// visible in the caller's scope; the request is stamped with the
// scope's effective site and starts out Pending.
func (h *RequestHandler) Submit(c echo.Context) error {
	id, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req submitRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	for field, val := range map[string]string{
		"note":          strings.TrimSpace(req.Note),
		"section":       strings.TrimSpace(req.Section),
		"building_type": strings.TrimSpace(req.BuildingType),
		"budget":        strings.TrimSpace(req.Budget),
	} {
		if val == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": field + " required", "field": field})
		}
	}
	if req.ItemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id required", "field": "item_id"})
	}
	if req.Qty <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qty must be positive", "field": "qty"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	item, err := h.Items.GetByID(ctx, req.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load item failed"})
	}
	if !scope.Allows(item.Site) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	price := req.CurrentPrice
	if price == 0 {
		price = item.UnitCost
	}
	r := &model.Request{
		ItemID:       item.ID,
		Qty:          req.Qty,
		RequestedBy:  id.Name,
		Note:         strings.TrimSpace(req.Note),
		Section:      strings.TrimSpace(req.Section),
		BuildingType: strings.TrimSpace(req.BuildingType),
		Budget:       strings.TrimSpace(req.Budget),
		CurrentPrice: price,
		Site:         scope.EffectiveSite(),
	}

	tx, err := h.Requests.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Requests.CreateTx(ctx, tx, r); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create request failed"})
	}
	// Global admins watch the review queue themselves; only other
	// submitters raise the broadcast notification.
	if !id.IsGlobalAdmin() {
		n := &model.Notification{
			Kind:      model.NotifyRequestCreated,
			Title:     "New request",
			Message:   fmt.Sprintf("%s requested %s x%.2f (%s)", id.Name, item.Name, r.Qty, r.Budget),
			RequestID: &r.ID,
		}
		if err := h.Notifications.CreateTx(ctx, tx, n); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create notification failed"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	r.Status = model.StatusPending
	h.publish(queue.EventRequestSubmitted, *r, item.Name, id.Name)
	return c.JSON(http.StatusCreated, requestToPart(*r))
}

// Approve handles POST /v1/requests/:id/approve.
func (h *RequestHandler) Approve(c echo.Context) error {
	return h.decide(c, model.StatusApproved)
}

// Reject handles POST /v1/requests/:id/reject.
func (h *RequestHandler) Reject(c echo.Context) error {
	return h.decide(c, model.StatusRejected)
}

// decide executes a terminal transition.  The row lock, the Pending
// check, the transition, the conditional actual insert and the
// notification all live in one transaction; retrying an approval can
// therefore never double-book cost.
func (h *RequestHandler) decide(c echo.Context, status string) error {
	id, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !id.IsAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	reqID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || reqID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Requests.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	r, err := h.Requests.GetForUpdateTx(ctx, tx, reqID)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load request failed"})
	}
	if !scope.Allows(r.Site) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if r.Status != model.StatusPending {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": fmt.Sprintf("invalid transition: request is already %s", r.Status),
		})
	}

	now := time.Now().UTC()
	if err := h.Requests.DecideTx(ctx, tx, reqID, status, id.Name, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "invalid transition: request is no longer pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update request failed"})
	}

	var itemName string
	if status == model.StatusApproved {
		item, err := h.Items.GetByID(ctx, r.ItemID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load item failed"})
		}
		price := r.CurrentPrice
		if price == 0 && item != nil {
			price = item.UnitCost
		}
		if item != nil {
			itemName = item.Name
		}
		actual := &model.Actual{
			ItemID:     r.ItemID,
			Qty:        r.Qty,
			Cost:       r.Qty * price,
			Date:       r.CreatedAt.Format("2006-01-02"),
			RecordedBy: id.Name,
			Notes:      model.ProvenanceTag(r.ID),
			Site:       r.Site,
		}
		// A duplicate provenance tag is a safe retry, not an error.
		if _, err := h.Actuals.InsertFromApprovalTx(ctx, tx, actual); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "record actual failed"})
		}
	}

	if err := h.notifyDecisionTx(ctx, tx, r, status, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create notification failed"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	r.Status = status
	r.ApprovedBy = &id.Name
	r.UpdatedAt = now
	event := queue.EventRequestApproved
	if status == model.StatusRejected {
		event = queue.EventRequestRejected
	}
	h.publish(event, *r, itemName, id.Name)
	return c.JSON(http.StatusOK, requestToPart(*r))
}

// notifyDecisionTx targets the credential owning the request's site,
// when one exists.  Requests submitted under global scope have no
// site credential to notify.
func (h *RequestHandler) notifyDecisionTx(ctx context.Context, tx *sql.Tx, r *model.Request, status string, actor *auth.Identity) error {
	if r.Site == nil {
		return nil
	}
	cred, err := h.Codes.GetBySite(ctx, *r.Site)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	kind := model.NotifyApproved
	verb := "approved"
	if status == model.StatusRejected {
		kind = model.NotifyRejected
		verb = "rejected"
	}
	n := &model.Notification{
		Kind:      kind,
		Title:     "Request " + verb,
		Message:   fmt.Sprintf("%s %s request #%d (%s x%.2f)", actor.Name, verb, r.ID, r.Budget, r.Qty),
		TargetID:  &cred.ID,
		RequestID: &r.ID,
	}
	return h.Notifications.CreateTx(ctx, tx, n)
}

// canDelete applies the deletion rules: global admin always, site
// admin within the assigned site, a non-admin owner only their own
// request and only once it is terminal.
func canDelete(id *auth.Identity, scope auth.Scope, r *model.Request) bool {
	switch {
	case id.IsGlobalAdmin():
		return true
	case id.Role == auth.RoleSiteAdmin:
		return scope.Allows(r.Site)
	default:
		return r.RequestedBy == id.Name && r.Terminal()
	}
}

// Delete handles DELETE /v1/requests/:id.  Notifications referencing
// the request go with it in the same transaction.
func (h *RequestHandler) Delete(c echo.Context) error {
	id, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reqID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || reqID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Requests.GetByID(ctx, reqID)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load request failed"})
	}
	if !canDelete(id, scope, r) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	tx, err := h.Requests.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Notifications.DeleteByRequestTx(ctx, tx, reqID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete notifications failed"})
	}
	if err := h.Requests.DeleteTx(ctx, tx, reqID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete request failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "request deleted"})
}

// List handles GET /v1/requests with status filter and counts.
func (h *RequestHandler) List(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rs, err := h.Requests.List(ctx, scope, c.QueryParam("status"), "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load requests failed"})
	}
	pending, approved, rejected, err := h.Requests.StatusCounts(ctx, scope, "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count requests failed"})
	}

	parts := make([]requestPart, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, requestToPart(r))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"requests": parts,
		"count":    len(parts),
		"pending":  pending,
		"approved": approved,
		"rejected": rejected,
	})
}

// publish emits a lifecycle event without blocking or failing the
// request path.
func (h *RequestHandler) publish(event string, r model.Request, itemName, actor string) {
	site := ""
	if r.Site != nil {
		site = *r.Site
	}
	ev := queue.RequestEvent{
		Event:        event,
		RequestID:    r.ID,
		ItemID:       r.ItemID,
		ItemName:     itemName,
		Qty:          r.Qty,
		Budget:       r.Budget,
		Section:      r.Section,
		BuildingType: r.BuildingType,
		Site:         site,
		Status:       r.Status,
		ActedBy:      actor,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishRequestEvent(ctx, ev)
	}()
}
