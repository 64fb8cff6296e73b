package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/budget"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// SummaryHandler serves the budget summary matrix, the generated
// budget-label options and the per-site building configuration.
type SummaryHandler struct {
	Items   *repository.ItemRepo
	Configs *repository.BuildingConfigRepo
}

func NewSummaryHandler(items *repository.ItemRepo, configs *repository.BuildingConfigRepo) *SummaryHandler {
	return &SummaryHandler{Items: items, Configs: configs}
}

// summaryMatrix aggregates item amounts per budget number and
// building type within the scope.
type summaryMatrix struct {
	numbers []int
	amounts map[int]map[string]float64 // budget number -> building type -> amount
	byType  map[string]float64
	total   float64
}

func buildMatrix(items []model.Item, onlyNumber int) summaryMatrix {
	m := summaryMatrix{
		amounts: make(map[int]map[string]float64),
		byType:  make(map[string]float64),
	}
	seen := make(map[int]bool)
	for _, it := range items {
		n := budget.NumberOf(it.Budget)
		if onlyNumber > 0 && n != onlyNumber {
			continue
		}
		if m.amounts[n] == nil {
			m.amounts[n] = make(map[string]float64)
		}
		amt := it.Amount()
		m.amounts[n][it.BuildingType] += amt
		m.byType[it.BuildingType] += amt
		m.total += amt
		if !seen[n] {
			seen[n] = true
			m.numbers = append(m.numbers, n)
		}
	}
	sort.Ints(m.numbers)
	return m
}

// Summary handles GET /v1/summary.  Optional ?budget=N narrows the
// matrix to one budget number.
func (h *SummaryHandler) Summary(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	onlyNumber, _ := strconv.Atoi(c.QueryParam("budget"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, scope, "", "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}
	m := buildMatrix(items, onlyNumber)

	rows := make([]echo.Map, 0, len(m.numbers))
	for _, n := range m.numbers {
		row := echo.Map{"budget": n}
		var rowTotal float64
		for _, bt := range budget.PropertyTypes {
			amt := m.amounts[n][bt]
			row[bt] = amt
			rowTotal += amt
		}
		row["total"] = rowTotal
		rows = append(rows, row)
	}

	recent := items
	if len(recent) > 10 {
		recent = recent[:10] // listing is newest first
	}
	recentParts := make([]itemPart, 0, len(recent))
	for _, it := range recent {
		recentParts = append(recentParts, itemToPart(it))
	}

	configs, err := h.Configs.ListForSite(ctx, scope.EffectiveSite())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load building configs failed"})
	}
	configParts := make([]buildingConfigPart, 0, len(configs))
	for _, cfg := range configs {
		configParts = append(configParts, configToPart(cfg))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"matrix":           rows,
		"totals_by_type":   m.byType,
		"total":            m.total,
		"recent_items":     recentParts,
		"building_configs": configParts,
		"property_types":   budget.PropertyTypes,
	})
}

// SummaryExport handles GET /v1/summary/export: the matrix as CSV.
func (h *SummaryHandler) SummaryExport(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	onlyNumber, _ := strconv.Atoi(c.QueryParam("budget"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Items.List(ctx, scope, "", "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load items failed"})
	}
	m := buildMatrix(items, onlyNumber)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="summary.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	header := append([]string{"budget"}, budget.PropertyTypes...)
	header = append(header, "total")
	_ = w.Write(header)
	for _, n := range m.numbers {
		rec := []string{fmt.Sprintf("Budget %d", n)}
		var rowTotal float64
		for _, bt := range budget.PropertyTypes {
			amt := m.amounts[n][bt]
			rec = append(rec, formatNumber(amt))
			rowTotal += amt
		}
		rec = append(rec, formatNumber(rowTotal))
		_ = w.Write(rec)
	}
	totalsRow := []string{"Total"}
	for _, bt := range budget.PropertyTypes {
		totalsRow = append(totalsRow, formatNumber(m.byType[bt]))
	}
	totalsRow = append(totalsRow, formatNumber(m.total))
	_ = w.Write(totalsRow)
	w.Flush()
	return w.Error()
}

// BudgetOptions handles GET /v1/budget-options: the generated label
// grid merged with labels already persisted in scope, ordered by
// embedded number then lexically.
func (h *SummaryHandler) BudgetOptions(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	max, _ := strconv.Atoi(c.QueryParam("max"))
	if max <= 0 || max > budget.MaxNumber {
		max = budget.MaxNumber
	}
	buildingType := strings.TrimSpace(c.QueryParam("building_type"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Items.DistinctBudgets(ctx, scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load budgets failed"})
	}
	options := budget.Options(max, buildingType, existing)
	return c.JSON(http.StatusOK, echo.Map{"options": options, "count": len(options)})
}

type buildingConfigPart struct {
	BuildingType  string `json:"building_type"`
	Blocks        int    `json:"blocks"`
	UnitsPerBlock int    `json:"units_per_block"`
	Notes         string `json:"notes"`
	Site          string `json:"site,omitempty"`
}

func configToPart(c model.BuildingConfig) buildingConfigPart {
	p := buildingConfigPart{
		BuildingType:  c.BuildingType,
		Blocks:        c.Blocks,
		UnitsPerBlock: c.UnitsPerBlock,
		Notes:         c.Notes,
	}
	if c.Site != nil {
		p.Site = *c.Site
	}
	return p
}

type buildingConfigReq struct {
	BuildingType  string `json:"building_type"`
	Blocks        int    `json:"blocks"`
	UnitsPerBlock int    `json:"units_per_block"`
	Notes         string `json:"notes"`
}

// UpsertBuildingConfig handles PUT /v1/building-configs for the
// caller's effective site.
func (h *SummaryHandler) UpsertBuildingConfig(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req buildingConfigReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	bt := strings.TrimSpace(req.BuildingType)
	if bt == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "building_type required", "field": "building_type"})
	}
	known := false
	for _, pt := range budget.PropertyTypes {
		if pt == bt {
			known = true
			break
		}
	}
	if !known {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown building_type", "field": "building_type"})
	}
	if req.Blocks < 0 || req.UnitsPerBlock < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "blocks and units_per_block must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cfg := &model.BuildingConfig{
		BuildingType:  bt,
		Blocks:        req.Blocks,
		UnitsPerBlock: req.UnitsPerBlock,
		Notes:         strings.TrimSpace(req.Notes),
		Site:          scope.EffectiveSite(),
	}
	if err := h.Configs.Upsert(ctx, cfg); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store building config failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "building config saved"})
}

// ListBuildingConfigs handles GET /v1/building-configs: one entry per
// property type, falling back to the explicit zero-valued default
// when nothing is persisted.
func (h *SummaryHandler) ListBuildingConfigs(c echo.Context) error {
	_, scope, ok := requireScope(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	site := scope.EffectiveSite()
	out := make([]buildingConfigPart, 0, len(budget.PropertyTypes))
	for _, bt := range budget.PropertyTypes {
		cfg, err := h.Configs.Get(ctx, site, bt)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load building configs failed"})
		}
		out = append(out, configToPart(*cfg))
	}
	return c.JSON(http.StatusOK, echo.Map{"configs": out})
}
