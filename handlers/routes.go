package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Routes groups every handler set served by the API.
type Routes struct {
	Core          *Handler
	Credits       *CreditsHandlers
	Activity      *ActivityHandlers
	Subscriptions *SubscriptionHandlers
	Alerts        *AlertHandlers
	Cache         *CacheHandlers
	Metrics       http.Handler
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	// System
	e.GET("/health", r.Core.GetHealth)
	e.GET("/cache/status", r.Cache.GetCacheStatus)
	e.POST("/cache/clear", r.Cache.ClearCache)
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}

	api := e.Group("/api")

	api.GET("/status", r.Core.GetStatus)
	api.GET("/stats", r.Core.GetStats)
	api.GET("/nodes", r.Core.GetNodes)
	api.GET("/nodes/:id", r.Core.GetNode)
	api.GET("/nodes/:id/benchmark", r.Core.GetBenchmark)
	api.GET("/nodes/:id/similar", r.Core.GetSimilarNodes)
	api.GET("/compare", r.Core.CompareNodes)
	api.POST("/rpc", r.Core.ProxyRPC)

	credits := api.Group("/credits")
	credits.GET("", r.Credits.GetAllCredits)
	credits.GET("/top", r.Credits.GetTopCredits)
	credits.GET("/threshold", r.Credits.GetThreshold)
	credits.GET("/stats", r.Credits.GetCreditsStats)
	credits.GET("/:pubkey", r.Credits.GetNodeCredits)

	api.GET("/activity", r.Activity.GetActivity)

	subs := api.Group("/subscriptions")
	subs.POST("", r.Subscriptions.CreateSubscription)
	subs.GET("", r.Subscriptions.ListSubscriptions)
	subs.GET("/:id", r.Subscriptions.GetSubscription)
	subs.PUT("/:id", r.Subscriptions.UpdateSubscription)
	subs.DELETE("/:id", r.Subscriptions.DeleteSubscription)

	alerts := api.Group("/alerts")
	alerts.GET("", r.Alerts.ListAlerts)
	alerts.POST("/process", r.Alerts.ProcessAlerts)
	alerts.POST("/:id/read", r.Alerts.MarkRead)
}
