package routes

import (
	"net/http"

	"github.com/reportdeck/reportdeck/internal/app"
	"github.com/reportdeck/reportdeck/internal/handler"
	"github.com/reportdeck/reportdeck/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	auth := handler.NewAuthHandler(app.AuthService, app.IntegrationService, app.Cfg.AppURL, app.Cfg.IsProduction())
	account := handler.NewAccountHandler(app.UserService)
	integration := handler.NewIntegrationHandler(app.IntegrationService, app.IntegrationRepository)
	client := handler.NewClientHandler(app.ClientService)
	report := handler.NewReportHandler(app.ReportService, app.Cfg.AutomationAPIKey)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health.Health)

	// Credential endpoints, rate limited per IP
	rateLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/v1/auth/signup", rateLimiter(auth.Signup))
	mux.HandleFunc("POST /api/v1/auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)

	// Storage provider OAuth. The connect endpoints need a session; the
	// callbacks arrive as browser redirects carrying the session cookie.
	mux.HandleFunc("GET /api/v1/auth/google", middleware.RequireAuth(auth.ConnectGoogle))
	mux.HandleFunc("GET /api/v1/auth/google/callback", auth.GoogleCallback)
	mux.HandleFunc("GET /api/v1/auth/sharepoint", middleware.RequireAuth(auth.ConnectSharePoint))
	mux.HandleFunc("GET /api/v1/auth/sharepoint/callback", auth.SharePointCallback)

	// Account
	mux.HandleFunc("GET /api/v1/me", middleware.RequireAuth(account.Me))
	mux.HandleFunc("POST /api/v1/me/avatar", middleware.RequireAuth(account.UploadAvatar))
	mux.HandleFunc("DELETE /api/v1/me/avatar", middleware.RequireAuth(account.DeleteAvatar))

	// Integrations and agency settings
	mux.HandleFunc("GET /api/v1/agencies/{id}/integrations", middleware.RequireAuth(integration.List))
	mux.HandleFunc("PUT /api/v1/agencies/{id}/settings", middleware.RequireAuth(integration.UpdateSettings))
	mux.HandleFunc("POST /api/v1/integrations/{id}/setup", middleware.RequireAuth(integration.Setup))
	mux.HandleFunc("GET /api/v1/sharepoint/sites", middleware.RequireAuth(integration.Sites))

	// Clients
	mux.HandleFunc("GET /api/v1/clients", middleware.RequireAuth(client.List))
	mux.HandleFunc("POST /api/v1/clients", middleware.RequireAuth(client.Create))
	mux.HandleFunc("GET /api/v1/clients/{id}", middleware.RequireAuth(client.Get))
	mux.HandleFunc("PUT /api/v1/clients/{id}", middleware.RequireAuth(client.Update))

	// Reports. The callback authenticates with the automation API key.
	mux.HandleFunc("GET /api/v1/reports", middleware.RequireAuth(report.List))
	mux.HandleFunc("POST /api/v1/reports", middleware.RequireAuth(report.Create))
	mux.HandleFunc("POST /api/v1/reports/callback", report.Callback)

	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.Config(app.Cfg),
		middleware.Auth(app.AuthService, app.UserService, app.AgencyRepository),
	)
}
