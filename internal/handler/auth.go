package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/middleware"
	"github.com/istrom/site-inventory/internal/model"
	"github.com/istrom/site-inventory/internal/repository"
)

// AuthHandler bundles dependencies for the access-code login flow.
type AuthHandler struct {
	Cfg   config.Config
	Codes *repository.AccessCodeRepo
	Sites *repository.SiteRepo
	Logs  *repository.AccessLogRepo
}

func NewAuthHandler(cfg config.Config, codes *repository.AccessCodeRepo, sites *repository.SiteRepo, logs *repository.AccessLogRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Codes: codes, Sites: sites, Logs: logs}
}

// ----- DTOs -----

type loginReq struct {
	Code string `json:"code"`
}

type switchSiteReq struct {
	Site string `json:"site"` // "" selects all sites
}

type sessionPart struct {
	Role string    `json:"role"`
	Name string    `json:"name"`
	Site string    `json:"site"` // "" for global admin with no selection
	Exp  time.Time `json:"expires"`
}

type loginResp struct {
	Token   string      `json:"token"`
	Session sessionPart `json:"session"`
}

// Login resolves an access code to an identity.  The global code is
// checked first, then each site credential in turn.  Exactly one
// audit row is written per attempt regardless of outcome; failures
// are recorded under the "Unknown" name so the log never leaks which
// codes exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.resolve(ctx, code)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if id == nil {
		h.logAttempt(ctx, "Unknown", "unknown", code, model.AccessFailed)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access code"})
	}
	h.logAttempt(ctx, id.Name, id.Role, code, model.AccessSuccess)

	tok, err := auth.NewSessionToken(h.Cfg.JWTSecret, *id, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Token:   tok.Token,
		Session: sessionPart{Role: id.Role, Name: id.Name, Site: id.Site, Exp: tok.Exp},
	})
}

// resolve finds the credential matching a plaintext code.  A nil
// identity with a nil error means no credential matched.
func (h *AuthHandler) resolve(ctx context.Context, code string) (*auth.Identity, error) {
	global, err := h.Codes.GetGlobal(ctx)
	if err == nil && auth.VerifyCode(global.CodeHash, code) {
		return &auth.Identity{
			CredentialID: global.ID,
			Role:         auth.RoleGlobalAdmin,
			Name:         auth.GlobalAdminName,
			Site:         "", // all sites until switched
		}, nil
	}

	creds, err := h.Codes.ListSiteCredentials(ctx)
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		if cred.Site == nil || !auth.VerifyCode(cred.CodeHash, code) {
			continue
		}
		return &auth.Identity{
			CredentialID: cred.ID,
			Role:         auth.RoleSiteAdmin,
			Name:         auth.SiteAdminName(*cred.Site),
			Site:         *cred.Site,
		}, nil
	}
	return nil, nil
}

// logAttempt writes one audit row.  Audit failures must not block the
// login response, so errors are swallowed after logging.
func (h *AuthHandler) logAttempt(ctx context.Context, name, role, code, status string) {
	entry := &model.AccessLogEntry{
		UserName:   name,
		Role:       role,
		CodePrefix: auth.MaskCode(code),
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	_ = h.Logs.Insert(ctx, entry)
}

// Session returns the authenticated caller, read straight from the
// verified token.
func (h *AuthHandler) Session(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logged_in":       true,
		"session_token":   id.SessionID,
		"role":            id.Role,
		"is_global_admin": id.IsGlobalAdmin(),
		"site":            id.Site,
		"name":            id.Name,
	})
}

// Logout exists for interface parity: tokens are stateless, the
// client simply discards its copy.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// SwitchSite reissues the global administrator's token with a new
// site selection.  The session id is preserved so the reissue is a
// scope change, not a new login; site admins cannot change the site
// their token was bound to.
func (h *AuthHandler) SwitchSite(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok || !id.IsGlobalAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var req switchSiteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	site := strings.TrimSpace(req.Site)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if site != "" {
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
	}

	next := *id
	next.Site = site
	tok, err := auth.ReissueToken(h.Cfg.JWTSecret, next, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Token:   tok.Token,
		Session: sessionPart{Role: next.Role, Name: next.Name, Site: next.Site, Exp: tok.Exp},
	})
}
