package router

import (
	"github.com/labstack/echo/v4"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/handler"
	"github.com/istrom/site-inventory/internal/middleware"
)

// RegisterAdmin registers the settings surface under /v1/admin.
// Site administration, credential rotation, site switching and the
// overview are global-admin only; the access audit log is open to
// both admin roles by policy.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, auth2 *handler.AuthHandler, jwtSecret string) {
	anyAdmin := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(auth.RoleGlobalAdmin, auth.RoleSiteAdmin),
	)
	anyAdmin.GET("/access-logs", a.AccessLogs)
	anyAdmin.POST("/access-logs/clear", a.ClearAccessLogs)

	global := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(auth.RoleGlobalAdmin),
	)
	global.GET("/overview", a.Overview)
	global.POST("/switch-site", auth2.SwitchSite)

	// ---- Sites ----
	global.GET("/sites", a.ListSites)
	global.POST("/sites", a.CreateSite)
	global.GET("/sites/orphans", a.OrphanSites)
	global.PATCH("/sites/:id", a.UpdateSite)
	global.DELETE("/sites/:id", a.DeleteSite)

	// ---- Credential rotation ----
	global.PUT("/codes/global", a.RotateGlobalCode)
	global.PUT("/codes/site", a.RotateSiteCode)
}
