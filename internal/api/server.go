package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/practicehub/practice-server/internal/auth"
	"github.com/practicehub/practice-server/internal/cache"
	"github.com/practicehub/practice-server/internal/config"
	"github.com/practicehub/practice-server/internal/importer"
	"github.com/practicehub/practice-server/internal/storage"
	"github.com/practicehub/practice-server/internal/validation"
	"github.com/practicehub/practice-server/internal/xero"
)

type contextKey string

const claimsKey contextKey = "claims"

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	auth      *auth.JWTManager
	validator *validation.Validator
	cache     *cache.Cache
	importer  *importer.Service
	sync      *xero.Orchestrator
	creds     *xero.CredentialManager
	nats      *nats.Conn
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server. The NATS connection is
// optional; without it sync requests run inline instead of being handed
// to the worker.
func NewRESTServer(cfg *config.Config, store storage.Store, sync *xero.Orchestrator, creds *xero.CredentialManager, nc *nats.Conn) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     store,
		auth:      auth.NewJWTManager(&cfg.JWT, store),
		validator: validation.NewValidator(),
		cache:     cache.New(cache.DefaultTTL),
		importer:  importer.NewService(cfg.Import.MaxRows, log.Logger),
		sync:      sync,
		creds:     creds,
		nats:      nc,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestClaims returns the authenticated claims, or nil on an
// unauthenticated route
func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

// tenantStore resolves the caller's tenant scope. Regular users are
// bound to their own tenant; platform admins may select one with the
// tenant_id query parameter.
func (s *RESTServer) tenantStore(w http.ResponseWriter, r *http.Request) (storage.TenantStore, bool) {
	claims := requestClaims(r)
	if claims == nil {
		s.respondError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}

	if claims.TenantID != nil {
		return s.store.ForTenant(*claims.TenantID), true
	}

	if claims.IsAdmin {
		raw := r.URL.Query().Get("tenant_id")
		if raw == "" {
			s.respondError(w, http.StatusBadRequest, "tenant_id query parameter is required for platform admins")
			return nil, false
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid tenant_id")
			return nil, false
		}
		return s.store.ForTenant(tenantID), true
	}

	s.respondError(w, http.StatusForbidden, "no tenant scope")
	return nil, false
}

// requireAdmin guards platform-level routes
func (s *RESTServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := requestClaims(r)
		if claims == nil || !claims.IsAdmin {
			s.respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
