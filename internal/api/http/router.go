package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Services       *handlers.ServicesHandler
	Approvals      *handlers.ApprovalsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protectedAuth.Post("/password/change", cfg.Users.ChangePassword)

	services := app.Group("/services", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	services.Get("", cfg.Services.List)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/evaluation", cfg.Tickets.SubmitEvaluation)
	tickets.Put("/:id/approval-document", cfg.Approvals.Upload)
	tickets.Get("/:id/approval-document", cfg.Approvals.Download)

	// Escalation and reopening responses are technician-side operations; the
	// services apply finer assignment checks on top of the role gate.
	staffOnTickets := tickets.Group("", auth.RequireRole(domain.RoleTecnico, domain.RoleAdministrador))
	staffOnTickets.Post("/:id/escalate", cfg.Tickets.Escalate)
	staffOnTickets.Post("/:id/reopenings/cause", cfg.Tickets.AttachReopeningCause)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleTecnico, domain.RoleAdministrador))
	staff.Get("/technicians", cfg.StaffTickets.ListTechnicians)
	staff.Get("/tickets/escalated", cfg.StaffTickets.ListEscalated)
	staff.Get("/tickets/reopened", cfg.StaffTickets.ListReopened)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAdministrador))
	admin.Post("/users", cfg.Users.CreateUser)
}
