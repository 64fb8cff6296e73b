package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/istrom/site-inventory/internal/auth"
	"github.com/istrom/site-inventory/internal/config"
	"github.com/istrom/site-inventory/internal/handler"
	"github.com/istrom/site-inventory/internal/middleware"
)

// RegisterInventory registers the item, request, actuals, notification
// and summary endpoints.  Every route requires a valid token from one
// of the two admin roles; tenant scoping is enforced inside the
// handlers from the verified claims.  Heavy read-only listings get
// the Redis response cache, keyed per identity so one tenant's rows
// can never be served to another.
func RegisterInventory(
	e *echo.Echo,
	items *handler.ItemHandler,
	reqs *handler.RequestHandler,
	actuals *handler.ActualHandler,
	notifs *handler.NotificationHandler,
	summary *handler.SummaryHandler,
	jwtSecret string,
	cacheCfg config.CacheConfig,
	rdb *redis.Client,
) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(auth.RoleGlobalAdmin, auth.RoleSiteAdmin),
	)
	cached := middleware.NewRedisCache(cacheCfg, rdb)

	// ---- Items ----
	g.POST("/items", items.Create)
	g.GET("/items", items.List, cached)
	g.GET("/items/export", items.Export)
	g.PATCH("/items/:id", items.Update)
	g.DELETE("/items/:id", items.Delete)
	g.POST("/items/delete-all", items.DeleteAll)

	// ---- Requests ----
	g.POST("/requests", reqs.Submit)
	g.GET("/requests", reqs.List)
	g.POST("/requests/:id/approve", reqs.Approve)
	g.POST("/requests/:id/reject", reqs.Reject)
	g.DELETE("/requests/:id", reqs.Delete)

	// ---- Actuals ----
	g.GET("/actuals", actuals.List, cached)
	g.GET("/actuals/ledger", actuals.Ledger)
	g.GET("/actuals/export", actuals.Export)

	// ---- Notifications ----
	g.GET("/notifications", notifs.List)
	g.GET("/notifications/unread", notifs.Unread)
	g.POST("/notifications/:id/read", notifs.MarkRead)
	g.DELETE("/notifications/:id", notifs.Delete)

	// ---- Summary & budget options ----
	g.GET("/summary", summary.Summary, cached)
	g.GET("/summary/export", summary.SummaryExport)
	g.GET("/budget-options", summary.BudgetOptions, cached)
	g.GET("/building-configs", summary.ListBuildingConfigs)
	g.PUT("/building-configs", summary.UpsertBuildingConfig)
}
