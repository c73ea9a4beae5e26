package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Public lead capture (website enquiry forms post here)
	r.Post("/leads/public", s.HandleCreatePublicLead)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Tenants (platform admin)
		r.Route("/tenants", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.HandleListTenants)
			r.Post("/", s.HandleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTenant)
				r.Put("/", s.HandleUpdateTenant)
			})
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
			})
		})

		// Clients
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.HandleListClients)
			r.Post("/", s.HandleCreateClient)
			r.Get("/summary", s.HandleClientSummary)
			r.Post("/import/preview", s.HandlePreviewImport)
			r.Post("/import", s.HandleImportClients)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetClient)
				r.Put("/", s.HandleUpdateClient)
				r.Post("/sync", s.HandleSyncClient)
			})
		})

		// Invoices
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", s.HandleListInvoices)
			r.Post("/", s.HandleCreateInvoice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetInvoice)
				r.Put("/", s.HandleUpdateInvoice)
				r.Post("/sync", s.HandleSyncInvoice)
			})
		})

		// Leads
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.HandleListLeads)
			r.Post("/", s.HandleCreateLead)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetLead)
				r.Put("/", s.HandleUpdateLead)
				r.Post("/convert", s.HandleConvertLead)
			})
		})

		// Import logs
		r.Route("/imports", func(r chi.Router) {
			r.Get("/", s.HandleListImportLogs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetImportLog)
				r.Get("/errors.csv", s.HandleDownloadImportErrors)
			})
		})

		// Integrations
		r.Route("/integrations/xero", func(r chi.Router) {
			r.Get("/", s.HandleGetXeroIntegration)
			r.Post("/connect", s.HandleConnectXero)
			r.Post("/disconnect", s.HandleDisconnectXero)
			r.Post("/sync", s.HandleProcessPendingSyncs)
			r.Post("/retry", s.HandleRetryFailedSyncs)
		})

		// Mentions
		r.Route("/mentions", func(r chi.Router) {
			r.Post("/highlight", s.HandleHighlightMentions)
			r.Post("/extract", s.HandleExtractMentions)
		})
	})
}
