package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/Appitzr-Project/Backend-Profile/internal/metrics"
	appMiddleware "github.com/Appitzr-Project/Backend-Profile/internal/middleware"
	"github.com/Appitzr-Project/Backend-Profile/internal/models"
)

type RouterConfig struct {
	// BasePath mounts every route below a prefix such as "/venueprofile".
	BasePath    string
	CORSOrigins []string

	// Auth resolves the caller identity (gateway claims, JWT or Firebase).
	Auth func(http.Handler) http.Handler

	Member *ProfileHandler
	Venue  *ProfileHandler

	Log     logrus.FieldLogger
	Metrics *metrics.Metrics

	// MetricsPath/MetricsHandler expose prometheus when both are set.
	MetricsPath    string
	MetricsHandler http.Handler

	// UploadsPath/UploadDir serve locally stored pictures when both are set.
	UploadsPath string
	UploadDir   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(cfg.Log, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "SAMEORIGIN"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     cfg.CORSOrigins,
		AllowedMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:     []string{"Link"},
		AllowCredentials:   true,
		MaxAge:             300,
		OptionsPassthrough: false,
	}))

	if cfg.MetricsPath != "" && cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.MetricsHandler)
	}

	if cfg.UploadsPath != "" && cfg.UploadDir != "" {
		prefix := strings.TrimRight(cfg.UploadsPath, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	routes := func(r chi.Router) {
		r.Get("/health-check", HealthCheck)

		r.Group(func(r chi.Router) {
			if cfg.Auth != nil {
				r.Use(cfg.Auth)
			}

			if cfg.Member != nil {
				r.Group(func(r chi.Router) {
					r.Use(appMiddleware.RequireGroup(string(models.VariantMember)))
					r.Get("/profile", cfg.Member.GetProfile)
					r.Post("/profile", cfg.Member.CreateProfile)
					r.Put("/profile", cfg.Member.UpdateProfile)
					r.Post("/profile/change", cfg.Member.ChangePicture)
				})
			}

			if cfg.Venue != nil {
				r.Group(func(r chi.Router) {
					r.Use(appMiddleware.RequireGroup(string(models.VariantVenue)))
					r.Get("/profile/venue", cfg.Venue.GetProfile)
					r.Post("/profile/venue", cfg.Venue.CreateProfile)
					r.Put("/profile/venue", cfg.Venue.UpdateProfile)
					r.Post("/profile/venue/change", cfg.Venue.ChangePicture)
				})
			}
		})
	}

	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, routes)
	} else {
		routes(r)
	}

	return r
}

// routeNotFound answers unmatched routes and methods alike.
func routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Route Not Found: [%s] %s", r.Method, r.URL.Path))
}
