package handler

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/budget"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// ActualHandler exposes the planned-vs-actual reconciliation view
// over the append-only ledger.
type ActualHandler struct {
	Items   *repository.ItemRepo
	Actuals *repository.ActualRepo
}

func NewActualHandler(items *repository.ItemRepo, actuals *repository.ActualRepo) *ActualHandler {
	return &ActualHandler{Items: items, Actuals: actuals}
}

// reconciliationRow pairs one planned item with its realized totals.
// Items without actuals appear with zeros so variance reporting is
// complete, never filtered down to "items that happen to have spend".
type reconciliationRow struct {
	ItemID        uint64  `json:"item_id"`
	Name          string  `json:"name"`
	Group         string  `json:"group"`
	Budget        string  `json:"budget"`
	Section       string  `json:"section"`
	BuildingType  string  `json:"building_type"`
	PlannedQty    float64 `json:"planned_qty"`
	PlannedAmount float64 `json:"planned_amount"`
	ActualQty     float64 `json:"actual_qty"`
	ActualCost    float64 `json:"actual_cost"`
}

func (h *ActualHandler) reconcile(ctx context.Context, scope auth.Scope, budgetFilter string) ([]reconciliationRow, error) {
	items, err := h.Items.List(ctx, scope, "", "")
	if err != nil {
		return nil, err
	}
	matched := make([]model.Item, 0, len(items))
	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		if budgetFilter != "" && budgetFilter != "All" && !budget.Match(it.Budget, budgetFilter) {
			continue
		}
		matched = append(matched, it)
		ids = append(ids, it.ID)
	}
	sums, err := h.Actuals.SumsByItem(ctx, ids, scope)
	if err != nil {
		return nil, err
	}
	rows := make([]reconciliationRow, 0, len(matched))
	for _, it := range matched {
		t := sums[it.ID] // zero value when no actuals exist yet
		rows = append(rows, reconciliationRow{
			ItemID:        it.ID,
			Name:          it.Name,
			Group:         it.Group,
			Budget:        it.Budget,
			Section:       it.Section,
			BuildingType:  it.BuildingType,
			PlannedQty:    it.Qty,
			PlannedAmount: it.Amount(),
			ActualQty:     t.Qty,
			ActualCost:    t.Cost,
		})
	}
	return rows, nil
}

// List handles GET /v1/actuals: reconciliation rows plus group and
// overall totals for the selected budget.
func (h *ActualHandler) List(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rows, err := h.reconcile(ctx, scope, c.QueryParam("budget"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load actuals failed"})
	}

	type totals struct {
		PlannedAmount float64 `json:"planned_amount"`
		ActualCost    float64 `json:"actual_cost"`
	}
	groups := make(map[string]*totals)
	var overall totals
	for _, r := range rows {
		g := groups[r.Group]
		if g == nil {
			g = &totals{}
			groups[r.Group] = g
		}
		g.PlannedAmount += r.PlannedAmount
		g.ActualCost += r.ActualCost
		overall.PlannedAmount += r.PlannedAmount
		overall.ActualCost += r.ActualCost
	}

	return c.JSON(http.StatusOK, echo.Map{
		"rows":           rows,
		"count":          len(rows),
		"groups":         groups,
		"totals":         overall,
		"budget":         c.QueryParam("budget"),
		"budget_options": budget.BaseOptions(budget.MaxNumber),
	})
}

type actualPart struct {
	ID         uint64  `json:"id"`
	ItemID     uint64  `json:"item_id"`
	Qty        float64 `json:"qty"`
	Cost       float64 `json:"cost"`
	Date       string  `json:"date"`
	RecordedBy string  `json:"recorded_by"`
	Notes      string  `json:"notes"`
	Site       string  `json:"site,omitempty"`
}

// Ledger handles GET /v1/actuals/ledger: the raw append-only rows,
// newest first, provenance notes included.
func (h *ActualHandler) Ledger(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	as, err := h.Actuals.ListByScope(ctx, scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load actuals failed"})
	}
	parts := make([]actualPart, 0, len(as))
	for _, a := range as {
		p := actualPart{
			ID:         a.ID,
			ItemID:     a.ItemID,
			Qty:        a.Qty,
			Cost:       a.Cost,
			Date:       a.Date,
			RecordedBy: a.RecordedBy,
			Notes:      a.Notes,
		}
		if a.Site != nil {
			p.Site = *a.Site
		}
		parts = append(parts, p)
	}
	return c.JSON(http.StatusOK, echo.Map{"actuals": parts, "count": len(parts)})
}

// Export handles GET /v1/actuals/export: the reconciliation view as CSV.
func (h *ActualHandler) Export(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rows, err := h.reconcile(ctx, scope, c.QueryParam("budget"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load actuals failed"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="actuals.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	_ = w.Write([]string{"budget", "group", "section", "building_type", "name", "planned_qty", "planned_amount", "actual_qty", "actual_cost"})
	for _, r := range rows {
		_ = w.Write([]string{
			r.Budget,
			r.Group,
			r.Section,
			r.BuildingType,
			r.Name,
			formatNumber(r.PlannedQty),
			formatNumber(r.PlannedAmount),
			formatNumber(r.ActualQty),
			formatNumber(r.ActualCost),
		})
	}
	w.Flush()
	return w.Error()
}
