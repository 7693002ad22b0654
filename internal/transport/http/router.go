package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/suufi/mit-lobby7-verification/internal/application/reconcile"
	"github.com/suufi/mit-lobby7-verification/internal/application/roles"
	"github.com/suufi/mit-lobby7-verification/internal/application/settings"
	"github.com/suufi/mit-lobby7-verification/internal/application/verification"
	"github.com/suufi/mit-lobby7-verification/internal/config"
	jwtinfra "github.com/suufi/mit-lobby7-verification/internal/infrastructure/jwt"
	"github.com/suufi/mit-lobby7-verification/internal/transport/http/handler"
	appmiddleware "github.com/suufi/mit-lobby7-verification/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, applied to the issuance and redemption
	// endpoints so one misbehaving caller can't drain the mail relay.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	rolesSvc := roles.NewService(roles.Deps{
		Gateway:    deps.Discord,
		Directory:  deps.Directory,
		Users:      deps.UserRepo,
		Settings:   deps.SettingsRepo,
		Audit:      deps.Notifier,
		Metrics:    deps.Metrics,
		AlumniRole: cfg.AlumniRoleName,
	})
	verificationSvc := verification.NewService(verification.Deps{
		Codes:    deps.CodeRepo,
		Users:    deps.UserRepo,
		Settings: deps.SettingsRepo,
		Mailer:   deps.Mailer,
		Roles:    rolesSvc,
		Audit:    deps.Notifier,
		Metrics:  deps.Metrics,
	})
	reconcileSvc := reconcile.NewService(reconcile.Deps{
		Users:     deps.UserRepo,
		Roles:     rolesSvc,
		Directory: deps.Directory,
		Audit:     deps.Notifier,
		Metrics:   deps.Metrics,
	})
	settingsSvc := settings.NewService(deps.SettingsRepo)

	healthH := handler.NewHealthHandler()
	verificationH := handler.NewVerificationHandler(verificationSvc, deps.Directory)
	eventsH := handler.NewEventsHandler(reconcileSvc)
	rolesH := handler.NewRolesHandler(rolesSvc)
	adminH := handler.NewAdminHandler(deps.Directory, rolesSvc, reconcileSvc, settingsSvc)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(sensitiveRL.Limit).Post("/verifications", verificationH.Issue)
			r.With(sensitiveRL.Limit).Post("/verifications/redeem", verificationH.Redeem)
			r.Post("/events/member-activity", eventsH.MemberActivity)
			r.Post("/events/member-join", eventsH.MemberJoin)
			r.Get("/toggle-roles", rolesH.ListToggleable)
			r.Post("/toggle-roles/toggle", rolesH.Toggle)

			r.Route("/admin", func(r chi.Router) {
				r.Use(appmiddleware.RequireScope(jwtinfra.ScopeAdmin))

				r.Get("/directory/{kerb}", adminH.DirectoryLookup)
				r.Get("/affiliations/{kerb}", adminH.AffiliationsPreview)
				r.Get("/blacklist", adminH.ListBlacklist)
				r.Post("/blacklist", adminH.AddToBlacklist)
				r.Delete("/blacklist", adminH.RemoveFromBlacklist)
				r.Put("/audit-channel", adminH.SetAuditChannel)
				r.Post("/roles/refresh", adminH.RefreshRoles)
				r.Get("/toggle-roles", adminH.ListToggleableRoles)
				r.Post("/toggle-roles", adminH.AddToggleableRole)
				r.Delete("/toggle-roles", adminH.RemoveToggleableRole)
			})
		})
	})

	return r
}
