package main

import (
	"net/http"
	"time"

	"github.com/diewo77/crm-pricing/auth"
	"github.com/diewo77/crm-pricing/gate"
	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/config"
	"github.com/diewo77/crm-pricing/internal/handlers"
	"github.com/diewo77/crm-pricing/internal/policy"
	"github.com/diewo77/crm-pricing/internal/services"
	"gorm.io/gorm"
)

// App is the main application handler that wires services, authorization
// and routes together.
type App struct {
	mux  *http.ServeMux
	db   *gorm.DB
	gate *policy.AuthGate
}

// NewApp creates the application with all routes configured.
func NewApp(db *gorm.DB, cfg *config.Config) *App {
	app := &App{
		mux:  http.NewServeMux(),
		db:   db,
		gate: policy.NewAuthGate(db, 5*time.Minute),
	}

	audit := services.NewAuditService(db)
	quotes := services.NewQuoteService(db, audit)
	discounts := services.NewDiscountService(db, quotes, audit, services.NewDBNotifier(db))
	stats := services.NewStatsService(db)

	ah := handlers.NewAuthHandler(db)
	qh := handlers.NewQuoteHandler(db, quotes, app.gate, cfg.App.DefaultVATRate)
	dh := handlers.NewDiscountHandler(db, quotes, discounts)
	ch := handlers.NewCatalogHandler(db)
	lh := handlers.NewAuditHandler(db, audit)
	sh := handlers.NewStatsHandler(db, stats)

	m := app.mux

	// Health
	m.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSONError(w, http.StatusServiceUnavailable, "degraded", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	m.HandleFunc("POST /signup", ah.Signup)
	m.HandleFunc("POST /login", ah.Login)
	m.HandleFunc("POST /logout", ah.Logout)

	// Quotes
	m.Handle("POST /quotes", app.protect("quote", gate.ActionCreate, qh.Create))
	m.Handle("GET /quotes", app.protect("quote", gate.ActionList, qh.List))
	m.Handle("GET /quotes/{id}", app.protect("quote", gate.ActionView, qh.Get))
	m.Handle("POST /quotes/{id}/recalculate", app.protect("quote", gate.ActionUpdate, qh.Recalculate))
	m.Handle("POST /quotes/{id}/send", app.protect("quote", gate.ActionUpdate, qh.Send))

	// Line items
	m.Handle("POST /quotes/{id}/line-items", app.protect("quote", gate.ActionUpdate, qh.AddLineItem))
	m.Handle("PATCH /quotes/{id}/line-items/{itemID}", app.protect("quote", gate.ActionUpdate, qh.UpdateLineItem))
	m.Handle("DELETE /quotes/{id}/line-items/{itemID}", app.protect("quote", gate.ActionUpdate, qh.DeleteLineItem))

	// Overall discount state machine
	m.Handle("POST /quotes/{id}/discount", app.protect("quote", gate.ActionUpdate, dh.RequestOverall))
	m.Handle("POST /quotes/{id}/discount/approve", app.protect("quote", gate.ActionApprove, dh.ApproveOverall))
	m.Handle("POST /quotes/{id}/discount/reject", app.protect("quote", gate.ActionApprove, dh.RejectOverall))
	m.Handle("POST /quotes/{id}/discount/cancel", app.protect("quote", gate.ActionUpdate, dh.CancelOverall))

	// Line item discount state machine
	m.Handle("POST /quotes/{id}/line-items/{itemID}/discount", app.protect("quote", gate.ActionUpdate, dh.RequestLine))
	m.Handle("POST /quotes/{id}/line-items/{itemID}/discount/approve", app.protect("quote", gate.ActionApprove, dh.ApproveLine))
	m.Handle("POST /quotes/{id}/line-items/{itemID}/discount/reject", app.protect("quote", gate.ActionApprove, dh.RejectLine))
	m.Handle("POST /quotes/{id}/line-items/{itemID}/discount/cancel", app.protect("quote", gate.ActionUpdate, dh.CancelLine))

	// Catalog reads
	m.Handle("GET /job-profiles", app.protect("job_profile", gate.ActionList, ch.ListJobProfiles))
	m.Handle("GET /nationalities", app.protect("nationality", gate.ActionList, ch.ListNationalities))
	m.Handle("GET /cost-components", app.protect("cost_component", gate.ActionList, ch.ListCostComponents))
	m.Handle("GET /pricing-rules", app.protect("pricing_rule", gate.ActionList, ch.ListPricingRules))

	// Catalog writes, manager-only by seeded permissions
	m.Handle("POST /job-profiles", app.protect("job_profile", gate.ActionCreate, ch.CreateJobProfile))
	m.Handle("POST /cost-components", app.protect("cost_component", gate.ActionCreate, ch.CreateCostComponent))
	m.Handle("POST /pricing-rules", app.protect("pricing_rule", gate.ActionCreate, ch.CreatePricingRule))
	m.Handle("PUT /pricing-rules/{id}", app.protect("pricing_rule", gate.ActionUpdate, ch.UpdatePricingRule))

	// Audit trail
	m.Handle("GET /audit-logs", app.protect("audit_log", gate.ActionList, lh.List))

	// Dashboard
	m.Handle("GET /stats", auth.RequireAuth(http.HandlerFunc(sh.Dashboard)))

	return app
}

// ServeHTTP implements http.Handler: session parsing runs globally, route
// level middleware does the rest.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

// protect chains authentication and a role permission check around a handler.
func (a *App) protect(resourceType string, action gate.Action, h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.gate.RequirePermission(resourceType, action)(h))
}
