package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/priceflow-platform/api/internal/audit"
	"github.com/priceflow-platform/api/internal/config"
	"github.com/priceflow-platform/api/internal/handlers"
	"github.com/priceflow-platform/api/internal/httpx"
	"github.com/priceflow-platform/api/internal/middleware"
	"github.com/priceflow-platform/api/internal/store"
)

func NewRouter(cfg config.Config, st *store.Store, logger *slog.Logger) (http.Handler, error) {
	specPath := ""
	for _, candidate := range []string{"openapi.yaml", filepath.Join("..", "..", "openapi.yaml")} {
		if _, err := os.Stat(candidate); err == nil {
			specPath = candidate
			break
		}
	}
	if specPath == "" {
		return nil, fmt.Errorf("openapi.yaml not found")
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports", MaxBytes: cfg.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	auditLogger := audit.NewLogger(st)
	h := handlers.NewServer(cfg, st, auditLogger, logger)

	authMW := middleware.AuthMiddleware{Store: st, CookieName: cfg.SessionCookieName}
	loginLimiter := middleware.NewLoginRateLimiterWithMaxEntries(10, time.Minute, cfg.RateLimitMaxIPs)
	csrf := middleware.EnforceCSRF(cfg.CSRFEnforce)

	api.Group(func(public chi.Router) {
		public.With(loginLimiter.Middleware).Post("/auth/login", h.PostAuthLogin)
		public.Get("/health", h.GetHealth)
	})

	api.Group(func(protected chi.Router) {
		protected.Use(authMW.RequireAuth)
		protected.Get("/auth/me", h.GetAuthMe)
		protected.Get("/auth/csrf", h.GetAuthCsrf)
		protected.With(csrf).Post("/auth/logout", h.PostAuthLogout)

		protected.With(
			middleware.RequirePermission(st, "imports.run"),
			csrf,
		).Post("/imports/preview", h.PostImportsPreview)
		protected.With(
			middleware.RequirePermission(st, "imports.run"),
			csrf,
		).Post("/imports/validate", h.PostImportsValidate)
		protected.With(
			middleware.RequirePermission(st, "imports.run"),
			csrf,
		).Post("/imports/apply", h.PostImportsApply)

		protected.With(middleware.RequirePermission(st, "imports.run")).Get("/imports/presets", h.GetImportsPresets)
		protected.With(
			middleware.RequirePermission(st, "imports.run"),
			csrf,
		).Put("/imports/presets", h.PutImportsPresets)
		protected.With(middleware.RequirePermission(st, "imports.run")).Get("/imports/presets/{name}", func(w http.ResponseWriter, r *http.Request) {
			h.GetImportsPresetsName(w, r, chi.URLParam(r, "name"))
		})
		protected.With(
			middleware.RequirePermission(st, "imports.run"),
			csrf,
		).Delete("/imports/presets/{name}", func(w http.ResponseWriter, r *http.Request) {
			h.DeleteImportsPresetsName(w, r, chi.URLParam(r, "name"))
		})

		protected.With(middleware.RequirePermission(st, "catalog.read")).Get("/suppliers", h.GetSuppliers)
		protected.With(middleware.RequirePermission(st, "catalog.read")).Get("/categories", h.GetCategories)
		protected.With(middleware.RequirePermission(st, "catalog.read")).Get("/products", h.GetProducts)
		protected.With(middleware.RequirePermission(st, "catalog.read")).Get("/products/{productId}/prices", func(w http.ResponseWriter, r *http.Request) {
			h.GetProductPrices(w, r, chi.URLParam(r, "productId"))
		})
		protected.With(
			middleware.RequirePermission(st, "catalog.write"),
			csrf,
		).Post("/prices", h.PostPrices)

		protected.With(middleware.RequirePermission(st, "settings.read")).Get("/settings", h.GetSettings)
		protected.With(
			middleware.RequirePermission(st, "settings.write"),
			csrf,
		).Put("/settings", h.PutSettings)

		protected.With(middleware.RequirePermission(st, "catalog.read")).Get("/exports/pricebook.csv", h.GetExportsPricebookCsv)
	})

	r.Mount("/api", api)
	return r, nil
}
