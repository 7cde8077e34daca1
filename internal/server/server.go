// Package server assembles the HTTP router and its middleware chain.
package server

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/KromaEnergia/api-guias/internal/admin"
	"github.com/KromaEnergia/api-guias/internal/auth"
	"github.com/KromaEnergia/api-guias/internal/bookmark"
	"github.com/KromaEnergia/api-guias/internal/config"
	"github.com/KromaEnergia/api-guias/internal/guide"
	"github.com/KromaEnergia/api-guias/internal/logger"
	"github.com/KromaEnergia/api-guias/internal/media"
	"github.com/KromaEnergia/api-guias/internal/metrics"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/KromaEnergia/api-guias/internal/progress"
	"github.com/KromaEnergia/api-guias/internal/storage"
	"github.com/KromaEnergia/api-guias/internal/telemetry"
	"github.com/KromaEnergia/api-guias/internal/user"
	"github.com/KromaEnergia/api-guias/internal/utils"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type Handlers struct {
	Auth      *auth.Handler
	Users     *user.Handler
	Guides    *guide.Handler
	Bookmarks *bookmark.Handler
	Progress  *progress.Handler
	Media     *media.Handler
	Admin     *admin.Handler
}

type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Verifier auth.AccessVerifier
	Health   Pinger
	Handlers Handlers
}

// NewRouter registers every route. Routes that need a caller are wrapped in
// auth.Authenticate and admin-only ones additionally in auth.RequireRole.
func NewRouter(d Deps) *mux.Router {
	h := d.Handlers
	authed := auth.Authenticate(d.Verifier)
	private := func(fn http.HandlerFunc) http.Handler { return authed(fn) }
	adminOnly := func(fn http.HandlerFunc) http.Handler {
		return authed(auth.RequireRole(models.RoleAdmin)(fn))
	}

	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = methodNotAllowed

	r.HandleFunc("/healthz", healthz(d.Health)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if d.Config.Storage.Driver == "disk" {
		files := http.StripPrefix(storage.DiskURLPrefix, filesOnly(http.FileServer(http.Dir(d.Config.Storage.UploadDir))))
		r.PathPrefix(storage.DiskURLPrefix).Handler(files).Methods(http.MethodGet, http.MethodHead)
	}

	// subrouters do not inherit these; without them a wrong method under
	// /api falls through to the plain-text 404
	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = notFound
	api.MethodNotAllowedHandler = methodNotAllowed

	api.HandleFunc("/auth/register", h.Auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods(http.MethodPost)
	api.Handle("/auth/logout", private(h.Auth.Logout)).Methods(http.MethodPost)

	api.Handle("/users/me", private(h.Users.Me)).Methods(http.MethodGet)
	api.Handle("/users/me", private(h.Users.UpdateMe)).Methods(http.MethodPatch)
	api.Handle("/users/me/photo", private(h.Users.UploadPhoto)).Methods(http.MethodPatch)
	api.Handle("/users/me/photo", private(h.Users.DeletePhoto)).Methods(http.MethodDelete)
	api.Handle("/users/{userId}/bookmarks", private(h.Bookmarks.Toggle)).Methods(http.MethodPost)
	api.Handle("/users/{userId}/bookmarks", private(h.Bookmarks.List)).Methods(http.MethodGet)
	api.Handle("/users/{userId}/progress", private(h.Progress.Set)).Methods(http.MethodPost)
	api.Handle("/users/{userId}/progress/{guideId}", private(h.Progress.Get)).Methods(http.MethodGet)

	api.HandleFunc("/guides", h.Guides.List).Methods(http.MethodGet)
	api.Handle("/guides", adminOnly(h.Guides.Create)).Methods(http.MethodPost)
	api.Handle("/guides/steps/{stepId}/tips", adminOnly(h.Guides.AddTip)).Methods(http.MethodPost)
	api.HandleFunc("/guides/{id}", h.Guides.Get).Methods(http.MethodGet)
	api.Handle("/guides/{id}", adminOnly(h.Guides.Update)).Methods(http.MethodPut)
	api.Handle("/guides/{id}", adminOnly(h.Guides.Delete)).Methods(http.MethodDelete)
	api.Handle("/guides/{id}/steps", adminOnly(h.Guides.AddStep)).Methods(http.MethodPost)
	api.Handle("/guides/{id}/steps/{stepId}", adminOnly(h.Guides.DeleteStep)).Methods(http.MethodDelete)

	api.Handle("/uploads", adminOnly(h.Media.Upload)).Methods(http.MethodPost)
	api.Handle("/admin/dashboard", adminOnly(h.Admin.Dashboard)).Methods(http.MethodGet)

	return r
}

// Wrap adds the cross-cutting middleware around the router, outermost
// first: tracing, CORS, compression, request logging.
func Wrap(d Deps, router http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: d.Config.HTTP.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", logger.RequestIDHeader},
		ExposedHeaders: []string{logger.RequestIDHeader},
		MaxAge:         600,
	})

	var handler http.Handler = logger.Middleware(d.Log)(router)
	handler = gzhttp.GzipHandler(handler)
	handler = c.Handler(handler)
	return telemetry.Middleware(d.Config.App.Name)(handler)
}

// New returns the configured *http.Server; the caller starts and stops it.
func New(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

var (
	notFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSON(w, http.StatusNotFound, utils.ErrorResponse{Error: "route not found"})
	})
	methodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{Error: "method not allowed"})
	})
)

// filesOnly hides directory listings and dot-files such as in-flight
// ".upload-*" temp files.
func filesOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p == "" || strings.HasSuffix(p, "/") || strings.HasPrefix(path.Base(p), ".") || strings.Contains(p, "/.") {
			notFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthz(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				utils.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
