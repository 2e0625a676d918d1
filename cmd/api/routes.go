package main

import (
	"net/http"

	"dealership-platform/internal/httpapi"
	"dealership-platform/internal/rbac"
	"dealership-platform/internal/session"
	"dealership-platform/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	authMW   gin.HandlerFunc
	api      httpapi.Handlers
	webhook  telephony.WebhookHandler
	limiter  *telephony.IPRateLimiter
	sessions session.Store
	registry *prometheus.Registry
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// Voice platform webhooks (shared secret). Event deliveries are always
	// acked, so only the health check is rate limited.
	r.POST("/webhook/vapi", d.webhook.Handle)
	r.POST("/api/v1/voice/webhook", d.webhook.Handle)
	r.GET("/webhook/health", d.limiter.Middleware(), telephony.Health(d.sessions, nil))

	h := d.api
	v1 := r.Group("/api/v1")
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("/", d.authMW)
	authed.GET("/me", h.Me)

	staff := authed.Group("/", rbac.RequireAnyRole(rbac.Staff...))
	{
		staff.POST("/customers", h.CreateCustomer)
		staff.GET("/customers", h.ListCustomers)
		staff.GET("/customers/stats/by-type", h.StatsByType)
		staff.GET("/customers/:id", h.GetCustomer)
		staff.GET("/customers/:id/timeline", h.Timeline)
		staff.POST("/customers/:id/schedule-followup", h.ScheduleFollowup)
		staff.PATCH("/customers/:id", h.UpdateCustomer)
		staff.GET("/customers/:id/interactions", h.ListInteractions)
		staff.POST("/customers/:id/interactions", h.LogInteraction)
		staff.GET("/customers/:id/documents", h.ListDocuments)

		staff.POST("/vehicles", h.CreateVehicle)
		staff.GET("/vehicles", h.ListVehicles)
		staff.GET("/vehicles/:id", h.GetVehicle)

		staff.POST("/documents/invoice", h.GenerateInvoice)
		staff.POST("/leads/score", h.ScoreLead)
		staff.GET("/jobs/:id", h.JobStatus)
	}

	managers := authed.Group("/", rbac.RequireAnyRole(rbac.RoleSalesManager))
	{
		managers.PUT("/customers/:id/tier", h.SetTier)
		managers.GET("/customers/:id/tier-history", h.TierHistory)
		managers.POST("/analytics/nurture", h.TriggerNurture)
	}

	// admin passes every role check; this group is admin-only.
	admin := authed.Group("/", rbac.RequireAnyRole(rbac.RoleAdmin))
	admin.DELETE("/customers/:id", h.DeleteCustomer)

	analytics := authed.Group("/analytics", rbac.RequireAnyRole(rbac.Readers...))
	{
		analytics.GET("/dashboard", h.Dashboard)
		analytics.GET("/pipeline", h.Pipeline)
		analytics.GET("/customers/:id/insights", h.CustomerInsights)
		analytics.GET("/trends", h.Trends)
		analytics.GET("/agent-health", h.AgentHealth)
	}
}
