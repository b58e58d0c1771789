// Package leads provides the lead reservation bounded context.
// This file defines the module that wires the services and mounts the routes.
package leads

import (
	"leadmarket_backend/internal/events"
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/leads/handler"
	"leadmarket_backend/internal/leads/management"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/internal/leads/query"
	"leadmarket_backend/internal/leads/reservation"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/validator"
)

// Directories are the account lookups the leads services read from.
type Directories struct {
	Artisans ports.ArtisanDirectory
	Clients  ports.ClientDirectory
	Users    ports.UserDirectory
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	reservation *reservation.Service
	query       *query.Service
	management  *management.Service
}

// NewModule creates the leads services. thumbnails may be nil.
func NewModule(stores Stores, dirs Directories, thumbnails ports.ThumbnailProvider, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	reservationSvc := reservation.New(stores.Leads, stores.Access, stores.Transactions, dirs.Artisans, bus, log)
	querySvc := query.New(stores.Leads, stores.Access, dirs.Artisans, dirs.Clients, thumbnails, log)
	mgmtSvc := management.New(management.Deps{
		Leads:    stores.Leads,
		Txs:      stores.Transactions,
		Artisans: dirs.Artisans,
		Clients:  dirs.Clients,
		Users:    dirs.Users,
		Bus:      bus,
		Log:      log,
	})

	return &Module{
		handler:     handler.New(reservationSvc, querySvc, mgmtSvc, val),
		reservation: reservationSvc,
		query:       querySvc,
		management:  mgmtSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ReservationService returns the claim service for external use.
func (m *Module) ReservationService() *reservation.Service {
	return m.reservation
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	projects := ctx.Protected.Group("/projects")
	projects.GET("/:id", m.handler.ProjectDetail)

	client := projects.Group("")
	client.Use(httpkit.RequireRole(httpkit.RoleClient))
	client.POST("", m.handler.CreateProject)
	client.GET("/mine", m.handler.MyProjects)

	artisan := ctx.Protected.Group("")
	artisan.Use(httpkit.RequireRole(httpkit.RoleArtisan))
	artisan.GET("/leads", m.handler.AvailableLeads)
	artisan.GET("/me/leads", m.handler.MyLeads)

	claims := artisan.Group("/leads/:id")
	if ctx.ClaimRateLimiter != nil {
		claims.Use(ctx.ClaimRateLimiter.RateLimit())
	}
	claims.POST("/reserve", m.handler.Reserve)
	claims.POST("/purchase", m.handler.Purchase)

	ctx.Admin.GET("/projects", m.handler.AdminListProjects)
	ctx.Admin.PATCH("/projects/:id", m.handler.AdminUpdateProject)
	ctx.Admin.DELETE("/projects/:id", m.handler.AdminDeleteProject)
	ctx.Admin.GET("/stats", m.handler.AdminStats)
	ctx.Admin.GET("/transactions", m.handler.AdminListTransactions)
	ctx.Admin.POST("/transactions/:id/refund", m.handler.AdminRefundTransaction)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
