package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"rentdesk/internal/domain"
)

type Server struct {
	mux     *chi.Mux
	timeout time.Duration
}

// New builds the router with the shared middleware. Request timeouts are
// applied per route group so the change stream can stay open.
func New(timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	m := chi.NewRouter()

	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m, timeout: timeout}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}

// MountHandlers registers the JSON API.
func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.health)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.timeout))

			r.Post("/auth/signup", h.signUp)
			r.Post("/auth/login", h.login)
			r.Post("/auth/refresh", h.refresh)
			r.Post("/auth/logout", h.logout)
			r.Get("/plans", h.listPlans)

			r.Group(func(r chi.Router) {
				r.Use(Authenticate(h.Accounts, false))

				r.Get("/me", h.me)
				r.Get("/users", h.listUsers)
				r.Post("/users", h.inviteAgent)

				r.Route("/properties", func(r chi.Router) {
					r.Get("/", h.listProperties)
					r.Post("/", h.createProperty)
					r.Get("/{id}", h.getProperty)
					r.Put("/{id}", h.updateProperty)
					r.Delete("/{id}", h.deleteProperty)
					r.Post("/{id}/broadcast", h.broadcastProperty)
				})
				r.Route("/units", func(r chi.Router) {
					r.Get("/", h.listUnits)
					r.Post("/", h.createUnit)
					r.Get("/{id}", h.getUnit)
					r.Put("/{id}", h.updateUnit)
					r.Delete("/{id}", h.deleteUnit)
				})
				r.Route("/tenants", func(r chi.Router) {
					r.Get("/", h.listTenants)
					r.Post("/", h.createTenant)
					r.Get("/{id}", h.getTenant)
					r.Put("/{id}", h.updateTenant)
					r.Delete("/{id}", h.deleteTenant)
					r.Post("/{id}/end-lease", h.endLease)
				})
				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", h.listInvoices)
					r.Post("/", h.createInvoice)
					r.Post("/generate", h.generateInvoices)
					r.Post("/mark-overdue", h.markOverdue)
					r.Get("/{id}", h.getInvoice)
					r.Post("/{id}/void", h.voidInvoice)
					r.Get("/{id}/payments", h.listInvoicePayments)
					r.Post("/{id}/payments", h.recordPayment)
				})
				r.Get("/payments", h.listPayments)
				r.Route("/expenses", func(r chi.Router) {
					r.Get("/", h.listExpenses)
					r.Post("/", h.createExpense)
					r.Get("/{id}", h.getExpense)
					r.Put("/{id}", h.updateExpense)
					r.Delete("/{id}", h.deleteExpense)
				})
				r.Route("/maintenance", func(r chi.Router) {
					r.Get("/", h.listTickets)
					r.Post("/", h.createTicket)
					r.Get("/{id}", h.getTicket)
					r.Put("/{id}", h.updateTicket)
					r.Delete("/{id}", h.deleteTicket)
					r.Post("/{id}/status", h.transitionTicket)
				})
				r.Route("/utilities", func(r chi.Router) {
					r.Get("/", h.listReadings)
					r.Post("/", h.createReading)
					r.Get("/{id}", h.getReading)
					r.Put("/{id}", h.updateReading)
					r.Delete("/{id}", h.deleteReading)
				})
				r.Get("/subscription", h.getSubscription)
				r.Put("/subscription", h.changePlan)
				r.Get("/sms", h.listSMS)
				r.Post("/sms", h.sendSMS)
				r.Post("/sms/remind-overdue", h.remindOverdue)
				r.Get("/dashboard", h.dashboard)

				r.Route("/admin", func(r chi.Router) {
					r.Use(RequireRole(domain.RoleAdmin))
					r.Get("/overview", h.adminOverview)
					r.Get("/accounts", h.adminAccounts)
					r.Put("/accounts/{id}/status", h.adminSetStatus)
				})
			})
		})

		// EventSource cannot set headers, so the stream also accepts ?access_token=.
		r.With(Authenticate(h.Accounts, true)).Get("/changes", h.streamChanges)
	})
}
