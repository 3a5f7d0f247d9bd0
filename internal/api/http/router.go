package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mirmex/helpdesk/internal/api/http/handlers"
	"github.com/mirmex/helpdesk/internal/auth"
	"github.com/mirmex/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Equipment      *handlers.EquipmentHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/export", cfg.Tickets.ExportTickets)
	tickets.Get("/board", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher, domain.RoleTechnician), cfg.Tickets.Board)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher), cfg.Tickets.Assign)
	tickets.Post("/:id/start", cfg.Tickets.StartWork)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.History)

	equipment := app.Group("/equipment", cfg.AuthMiddleware.Handle)
	equipment.Get("", cfg.Equipment.List)
	equipment.Get("/:id", cfg.Equipment.Get)
	equipment.Post("", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher), cfg.Equipment.Create)
	equipment.Put("/:id", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher), cfg.Equipment.Update)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/technicians", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher), cfg.Users.ListTechnicians)
	users.Get("", auth.RequireRole(domain.RoleAdmin), cfg.Users.List)
	users.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Users.Update)

	reports := app.Group("/reports", cfg.AuthMiddleware.Handle)
	reports.Get("/summary", auth.RequireRole(domain.RoleAdmin, domain.RoleDispatcher), cfg.Reports.Summary)
}
