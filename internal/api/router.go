package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/finsync/engine/internal/api/handlers"
	mw "github.com/finsync/engine/internal/api/middleware"
	"github.com/finsync/engine/internal/services"
)

type Dependencies struct {
	Tokens              *services.TokenIssuer
	RequireSessionToken bool

	HealthHandler    *handlers.HealthHandler
	AuthHandler      *handlers.AuthHandler
	UsersHandler     *handlers.UsersHandler
	RecordsHandler   *handlers.RecordsHandler
	DashboardHandler *handlers.DashboardHandler
	ExtractHandler   *handlers.ExtractHandler
	ReportsHandler   *handlers.ReportsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5, "application/json"))

	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	r.Route("/api", func(api chi.Router) {
		// Auth routes share a tighter per-IP limit.
		api.Route("/auth", func(ar chi.Router) {
			ar.Use(mw.RateLimit(5, 20))
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
			ar.Post("/validate", dep.AuthHandler.Validate)
			ar.Post("/logout", dep.AuthHandler.Logout)
		})

		// Portal status lookups are keyed by reference, not by user.
		api.Get("/government-status/{referenceNumber}", dep.ReportsHandler.GovernmentStatus)

		api.Group(func(scoped chi.Router) {
			scoped.Use(mw.Session(dep.Tokens, dep.RequireSessionToken))

			scoped.Get("/user/{id}", dep.UsersHandler.Get)
			scoped.Put("/user/{id}", dep.UsersHandler.Update)
			scoped.Post("/user/avatar", dep.UsersHandler.Avatar)

			scoped.Get("/gst-returns/{userId}", dep.RecordsHandler.ListGstReturns)
			scoped.Post("/gst-returns", dep.RecordsHandler.CreateGstReturn)
			scoped.Patch("/gst-returns/{id}", dep.RecordsHandler.UpdateGstReturn)

			scoped.Get("/invoices/{userId}", dep.RecordsHandler.ListInvoices)
			scoped.Post("/invoices", dep.RecordsHandler.CreateInvoice)

			scoped.Get("/files/{userId}", dep.RecordsHandler.ListFiles)
			scoped.Post("/files/upload", dep.ExtractHandler.Extract)

			scoped.Get("/download-history/{userId}", dep.RecordsHandler.ListDownloads)
			scoped.Delete("/download-history/{id}", dep.RecordsHandler.DeleteDownload)

			scoped.Post("/extract-gst", dep.ExtractHandler.Extract)
			scoped.Get("/download-excel", dep.ReportsHandler.DownloadExcel)
			scoped.Post("/upload-to-government", dep.ReportsHandler.UploadToGovernment)

			scoped.Get("/dashboard/stats/{userId}", dep.DashboardHandler.Stats)
			scoped.Get("/charts/compliance/{userId}", dep.DashboardHandler.Compliance)
			scoped.Get("/charts/gst-trends/{userId}", dep.DashboardHandler.GstTrends)
		})
	})

	return r
}
