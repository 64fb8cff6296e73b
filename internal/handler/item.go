package handler

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/budget"
	"github.com/istrom/site-inventory/internal/middleware"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// itemsPerPage is the fixed page size of the item listing.
const itemsPerPage = 50

// ItemHandler owns the planned budget line endpoints.
type ItemHandler struct {
	Items *repository.ItemRepo
}

func NewItemHandler(items *repository.ItemRepo) *ItemHandler {
	return &ItemHandler{Items: items}
}

type createItemReq struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Unit         string  `json:"unit"`
	Qty          float64 `json:"qty"`
	UnitCost     float64 `json:"unit_cost"`
	Budget       string  `json:"budget"`
	Section      string  `json:"section"`
	BuildingType string  `json:"building_type"`
}

type updateItemReq struct {
	Qty      float64 `json:"qty"`
	UnitCost float64 `json:"unit_cost"`
}

type deleteAllReq struct {
	AlsoClearRequests bool `json:"also_clear_requests"`
	ConfirmAllSites   bool `json:"confirm_all_sites"`
}

type itemPart struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Unit         string  `json:"unit"`
	Qty          float64 `json:"qty"`
	UnitCost     float64 `json:"unit_cost"`
	Amount       float64 `json:"amount"`
	Budget       string  `json:"budget"`
	Section      string  `json:"section"`
	Group        string  `json:"group"`
	BuildingType string  `json:"building_type"`
	Site         string  `json:"site,omitempty"`
}

func itemToPart(it model.Item) itemPart {
	p := itemPart{
		ID:           it.ID,
		Name:         it.Name,
		Category:     it.Category,
		Unit:         it.Unit,
		Qty:          it.Qty,
		UnitCost:     it.UnitCost,
		Amount:       it.Amount(),
		Budget:       it.Budget,
		Section:      it.Section,
		Group:        it.Group,
		BuildingType: it.BuildingType,
	}
	if it.Site != nil {
		p.Site = *it.Site
	}
	return p
}

// requireScope pulls the identity from context; routes are wrapped in
// JWTAuth so a miss is a wiring error, answered with 401.
func requireScope(c echo.Context) (*auth.Identity, auth.Scope, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil, auth.Scope{}, false
	}
	return id, id.Scope(), true
}

// Create handles POST /v1/items.  Validation names the first missing
// field so clients can render an actionable message.
func (h *ItemHandler) Create(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	for field, val := range map[string]string{
		"name":          strings.TrimSpace(req.Name),
		"budget":        strings.TrimSpace(req.Budget),
		"building_type": strings.TrimSpace(req.BuildingType),
		"section":       strings.TrimSpace(req.Section),
	} {
		if val == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": field + " required", "field": field})
		}
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category != model.CategoryLabour {
		category = model.CategoryMaterials
	}

	it := &model.Item{
		Name:         strings.TrimSpace(req.Name),
		Category:     category,
		Unit:         strings.TrimSpace(req.Unit),
		Qty:          req.Qty,
		UnitCost:     req.UnitCost,
		Budget:       strings.TrimSpace(req.Budget),
		Section:      strings.TrimSpace(req.Section),
		Group:        budget.GroupFor(category, req.Budget),
		BuildingType: strings.TrimSpace(req.BuildingType),
		Site:         scope.EffectiveSite(),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Items.Create(ctx, it); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create item failed"})
	}
	return c.JSON(http.StatusCreated, itemToPart(*it))
}

// Update handles PATCH /v1/items/:id.  The row's site is re-checked
// against the caller's scope after lookup; a cross-tenant id is
// always a 403, not a 404 and never a silent no-op.
func (h *ItemHandler) Update(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	var req updateItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Items.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load item failed"})
	}
	if !scope.Allows(it.Site) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Items.UpdateCost(ctx, id, req.Qty, req.UnitCost, scope); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update item failed"})
	}
	it.Qty = req.Qty
	it.UnitCost = req.UnitCost
	return c.JSON(http.StatusOK, itemToPart(*it))
}

// Delete handles DELETE /v1/items/:id.  Absent within scope → 404 so
// callers can tell "already gone" from a server error.
func (h *ItemHandler) Delete(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Items.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load item failed"})
	}
	if !scope.Allows(it.Site) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Items.Delete(ctx, id, scope); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete item failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "item deleted"})
}

// DeleteAll handles POST /v1/items/delete-all.  When the caller is a
// global admin with no site selected this wipes every tenant, so that
// combination requires an explicit confirmation flag.
func (h *ItemHandler) DeleteAll(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req deleteAllReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if scope.Unrestricted() && !req.ConfirmAllSites {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "confirm_all_sites required to delete across all sites"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Items.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	deleted, err := h.Items.DeleteAllTx(ctx, tx, scope, req.AlsoClearRequests)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}

// listFiltered loads and filters the scoped items for List and
// Export.  Budget-label filtering is hierarchical and cannot be
// pushed into SQL, so it happens here after the scoped load.
func (h *ItemHandler) listFiltered(ctx context.Context, scope auth.Scope, budgetFilter, section, buildingType string) ([]model.Item, error) {
	items, err := h.Items.List(ctx, scope, section, buildingType)
	if err != nil {
		return nil, err
	}
	if budgetFilter == "" || budgetFilter == "All" {
		return items, nil
	}
	out := items[:0]
	for _, it := range items {
		if budget.Match(it.Budget, budgetFilter) {
			out = append(out, it)
		}
	}
	return out, nil
}

// List handles GET /v1/items.  Newest first, fixed page size, with
// totals and per-category counts computed over the whole filtered set
// rather than the page.
func (h *ItemHandler) List(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.listFiltered(ctx, scope, c.QueryParam("budget"), c.QueryParam("section"), c.QueryParam("building_type"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}
	sections, err := h.Items.DistinctSections(ctx, scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}

	var totalAmount float64
	materials, labour := 0, 0
	for _, it := range items {
		totalAmount += it.Amount()
		if it.Category == model.CategoryLabour {
			labour++
		} else {
			materials++
		}
	}

	total := len(items)
	pages := (total + itemsPerPage - 1) / itemsPerPage
	start := (page - 1) * itemsPerPage
	if start > total {
		start = total
	}
	end := start + itemsPerPage
	if end > total {
		end = total
	}
	parts := make([]itemPart, 0, end-start)
	for _, it := range items[start:end] {
		parts = append(parts, itemToPart(it))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items":           parts,
		"count":           total,
		"page":            page,
		"pages":           pages,
		"total_amount":    totalAmount,
		"materials_count": materials,
		"labour_count":    labour,
		"sections":        sections,
	})
}

// Export handles GET /v1/items/export: the filtered rows as CSV.
func (h *ItemHandler) Export(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.listFiltered(ctx, scope, c.QueryParam("budget"), c.QueryParam("section"), c.QueryParam("building_type"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="items.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	_ = w.Write([]string{"budget", "section", "group", "building_type", "name", "qty", "unit", "unit_cost", "amount"})
	for _, it := range items {
		_ = w.Write([]string{
			it.Budget,
			it.Section,
			it.Group,
			it.BuildingType,
			it.Name,
			formatNumber(it.Qty),
			it.Unit,
			formatNumber(it.UnitCost),
			formatNumber(it.Amount()),
		})
	}
	w.Flush()
	return w.Error()
}

// formatNumber renders quantities and money with two decimals.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
