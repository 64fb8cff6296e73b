package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// accessLogsPerPage is the page size of the audit listing.
const accessLogsPerPage = 50

// AdminHandler owns the settings surface: site administration,
// credential rotation, the access audit log and the overview counts.
type AdminHandler struct {
	Cfg           config.Config
	Sites         *repository.SiteRepo
	Codes         *repository.AccessCodeRepo
	Logs          *repository.AccessLogRepo
	Items         *repository.ItemRepo
	Requests      *repository.RequestRepo
	Notifications *repository.NotificationRepo
}

func NewAdminHandler(cfg config.Config, sites *repository.SiteRepo, codes *repository.AccessCodeRepo, logs *repository.AccessLogRepo, items *repository.ItemRepo, reqs *repository.RequestRepo, notifs *repository.NotificationRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Sites: sites, Codes: codes, Logs: logs, Items: items, Requests: reqs, Notifications: notifs}
}

type createSiteReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AccessCode  string `json:"access_code"` // optional initial credential
}

type updateSiteReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type rotateCodeReq struct {
	Site string `json:"site"` // ignored for the global code
	Code string `json:"code"`
}

type sitePart struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	HasCredential bool   `json:"has_credential"`
	DisplayCode   string `json:"display_code,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ListSites handles GET /v1/admin/sites, with credential presence and
// the admin-visible display copy of each code.
func (h *AdminHandler) ListSites(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sites, err := h.Sites.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load sites failed"})
	}
	creds, err := h.Codes.ListSiteCredentials(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load credentials failed"})
	}
	bySite := make(map[string]model.AccessCredential, len(creds))
	for _, cred := range creds {
		if cred.Site != nil {
			bySite[*cred.Site] = cred
		}
	}

	parts := make([]sitePart, 0, len(sites))
	for _, s := range sites {
		p := sitePart{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		}
		if cred, ok := bySite[s.Name]; ok {
			p.HasCredential = true
			p.DisplayCode = cred.DisplayCode
		}
		parts = append(parts, p)
	}
	return c.JSON(http.StatusOK, echo.Map{"sites": parts, "count": len(parts)})
}

// CreateSite handles POST /v1/admin/sites.  An initial access code
// may be provisioned in the same call.
func (h *AdminHandler) CreateSite(c echo.Context) error {
	var req createSiteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required", "field": "name"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	site := &model.ProjectSite{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := h.Sites.Create(ctx, site); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "site name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create site failed"})
	}
	if code := strings.TrimSpace(req.AccessCode); code != "" {
		hash, err := auth.HashCode(code, h.Cfg.BcryptCost)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash code failed"})
		}
		if err := h.Codes.UpsertSite(ctx, name, hash, code); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store code failed"})
		}
	}
	return c.JSON(http.StatusCreated, sitePart{
		ID:            site.ID,
		Name:          site.Name,
		Description:   site.Description,
		HasCredential: strings.TrimSpace(req.AccessCode) != "",
	})
}

// UpdateSite handles PATCH /v1/admin/sites/:id.  A rename re-labels
// the site's credential and every dependent record atomically.
func (h *AdminHandler) UpdateSite(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site id"})
	}
	var req updateSiteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	newName := strings.TrimSpace(req.Name)
	if newName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required", "field": "name"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	site, err := h.Sites.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load site failed"})
	}

	tx, err := h.Sites.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Sites.RenameTx(ctx, tx, id, site.Name, newName, strings.TrimSpace(req.Description)); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "site name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update site failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "site updated"})
}

// DeleteSite handles DELETE /v1/admin/sites/:id.  The credential goes
// with the site; items, requests and actuals are kept as historical
// orphans and surface through the orphans listing.
func (h *AdminHandler) DeleteSite(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid site id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	site, err := h.Sites.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load site failed"})
	}

	tx, err := h.Sites.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Sites.DeleteTx(ctx, tx, id, site.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete site failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "site deleted"})
}

// OrphanSites handles GET /v1/admin/sites/orphans: site labels that
// still own records but whose site row is gone.
func (h *AdminHandler) OrphanSites(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orphans, err := h.Sites.Orphans(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load orphans failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orphans": orphans, "count": len(orphans)})
}

// RotateGlobalCode handles PUT /v1/admin/codes/global.
func (h *AdminHandler) RotateGlobalCode(c echo.Context) error {
	var req rotateCodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required", "field": "code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := auth.HashCode(code, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash code failed"})
	}
	if err := h.Codes.UpsertGlobal(ctx, hash, code); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store code failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "global code updated"})
}

// RotateSiteCode handles PUT /v1/admin/codes/site.  The target site
// must exist; rotation never implicitly creates tenants.
func (h *AdminHandler) RotateSiteCode(c echo.Context) error {
	var req rotateCodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	site := strings.TrimSpace(req.Site)
	code := strings.TrimSpace(req.Code)
	if site == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "site required", "field": "site"})
	}
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required", "field": "code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sites, err := h.Sites.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load sites failed"})
	}
	found := false
	for _, s := range sites {
		if s.Name == site {
			found = true
			break
		}
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "site not found"})
	}

	hash, err := auth.HashCode(code, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash code failed"})
	}
	if err := h.Codes.UpsertSite(ctx, site, hash, code); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store code failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "site code updated"})
}

// AccessLogs handles GET /v1/admin/access-logs with a trailing time
// window (default 7 days), role filter, pagination and stats.
func (h *AdminHandler) AccessLogs(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	if days <= 0 {
		days = 7
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Logs.List(ctx, since, c.QueryParam("role"), accessLogsPerPage, (page-1)*accessLogsPerPage)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load access logs failed"})
	}
	stats, err := h.Logs.Stats(ctx, since)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}

	type logPart struct {
		ID         uint64 `json:"id"`
		UserName   string `json:"user_name"`
		Role       string `json:"role"`
		CodePrefix string `json:"code_prefix"`
		Status     string `json:"status"`
		CreatedAt  string `json:"created_at"`
	}
	parts := make([]logPart, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, logPart{
			ID:         e.ID,
			UserName:   e.UserName,
			Role:       e.Role,
			CodePrefix: e.CodePrefix,
			Status:     e.Status,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logs":  parts,
		"count": len(parts),
		"page":  page,
		"days":  days,
		"stats": stats,
	})
}

// ClearAccessLogs handles POST /v1/admin/access-logs/clear.  Open to
// any admin identity by policy.
func (h *AdminHandler) ClearAccessLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Logs.Clear(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "clear access logs failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cleared": n})
}

// Overview handles GET /v1/admin/overview: headline counts for the
// dashboard.
func (h *AdminHandler) Overview(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	siteCount, err := h.Sites.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count sites failed"})
	}
	itemCount, err := h.Items.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count items failed"})
	}
	requestCount, err := h.Requests.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count requests failed"})
	}
	credCount, err := h.Codes.Count(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "count credentials failed"})
	}
	stats, err := h.Logs.Stats(ctx, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load stats failed"})
	}
	unread, total, err := h.Notifications.AdminStats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load notification stats failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"sites":                siteCount,
		"items":                itemCount,
		"requests":             requestCount,
		"credentials":          credCount,
		"access_today":         stats.Today,
		"access_week":          stats.Total,
		"notifications_unread": unread,
		"notifications_total":  total,
	})
}
