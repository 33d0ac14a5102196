// Package apifake is an in-process stand-in for the equipment-analytics API.
// It implements the same routes and status codes as the real service closely
// enough to drive the client pipeline end to end in tests and demos.
package apifake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const apiPrefix = "/api/"

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUserID stores the authenticated user ID
const ContextKeyUserID ContextKey = "user_id"

type Server struct {
	*httptest.Server
	mux    *http.ServeMux
	routes []string
	secret []byte

	mu            sync.Mutex
	nextUserID    int64
	nextDatasetID int64
	users         map[string]*user // by username
	access        map[string]int64 // live access credential -> user id
	refresh       map[string]int64 // live refresh credential -> user id
	datasets      map[int64]*dataset
	hits          map[string]int
	authHeaders   map[string][]string

	refreshDelay         time.Duration
	refreshIssuesRevoked bool
	rotateRefresh        bool
	omitLoginUser        bool
	failLogout           bool
}

// New starts a fake service. Close it when done.
func New() *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		secret:      []byte("apifake-signing-secret"),
		users:       make(map[string]*user),
		access:      make(map[string]int64),
		refresh:     make(map[string]int64),
		datasets:    make(map[int64]*dataset),
		hits:        make(map[string]int),
		authHeaders: make(map[string][]string),
	}
	s.initRoutes()
	s.Server = httptest.NewServer(ChainMiddleware(s.mux.ServeHTTP, s.RecoverMiddleware, s.CountingMiddleware))
	return s
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string {
	return s.URL + apiPrefix
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) initRoutes() {
	// Unauthenticated
	s.RegisterRouteFunc("POST /api/login/{$}", s.LoginHandler())
	s.RegisterRouteFunc("POST /api/signup/{$}", s.SignupHandler())
	s.RegisterRouteFunc("POST /api/token/refresh/{$}", s.RefreshHandler())

	// Authenticated
	s.RegisterRouteFunc("POST /api/logout/{$}", ChainMiddleware(s.LogoutHandler(), s.RequireAuth))
	s.RegisterRouteFunc("GET /api/profile/{$}", ChainMiddleware(s.ProfileHandler(), s.RequireAuth))
	s.RegisterRouteFunc("PUT /api/profile/{$}", ChainMiddleware(s.UpdateProfileHandler(), s.RequireAuth))
	s.RegisterRouteFunc("POST /api/profile/password/{$}", ChainMiddleware(s.ChangePasswordHandler(), s.RequireAuth))
	s.RegisterRouteFunc("POST /api/upload/{$}", ChainMiddleware(s.UploadHandler(), s.RequireAuth))
	s.RegisterRouteFunc("GET /api/analysis/{id}/{$}", ChainMiddleware(s.AnalysisHandler(), s.RequireAuth))
	s.RegisterRouteFunc("GET /api/history/{$}", ChainMiddleware(s.HistoryHandler(), s.RequireAuth))
	s.RegisterRouteFunc("POST /api/compare/{$}", ChainMiddleware(s.CompareHandler(), s.RequireAuth))
	s.RegisterRouteFunc("DELETE /api/delete/{id}/{$}", ChainMiddleware(s.DeleteHandler(), s.RequireAuth))
	s.RegisterRouteFunc("POST /api/export/{format}/{id}/{$}", ChainMiddleware(s.ExportHandler(), s.RequireAuth))
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// CountingMiddleware records hits and Authorization headers per endpoint,
// keyed by the path relative to the API base (e.g. "history/").
func (s *Server) CountingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, apiPrefix)
		s.mu.Lock()
		s.hits[endpoint]++
		s.authHeaders[endpoint] = append(s.authHeaders[endpoint], r.Header.Get("Authorization"))
		s.mu.Unlock()
		next(w, r)
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("apifake handler panicked")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next(w, r)
	}
}

// RequireAuth validates the bearer access credential the way the service's
// JWT authentication does.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			writeJSON(w, http.StatusUnauthorized, tokenNotValid())
			return
		}

		userID, ok := s.validAccess(parts[1])
		if !ok {
			writeJSON(w, http.StatusUnauthorized, tokenNotValid())
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
		next(w, r.WithContext(ctx))
	}
}

func tokenNotValid() map[string]string {
	return map[string]string{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	}
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ContextKeyUserID).(int64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Hits returns how many requests reached endpoint, e.g. "token/refresh/".
func (s *Server) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[endpoint]
}

// RefreshCalls is Hits on the token refresh route.
func (s *Server) RefreshCalls() int {
	return s.Hits("token/refresh/")
}

// AuthHeaders returns the Authorization header of each request to endpoint,
// in arrival order.
func (s *Server) AuthHeaders(endpoint string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeaders[endpoint]...)
}

// ExpireAccess invalidates every access credential issued so far.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]int64)
}

// RevokeRefresh invalidates every refresh credential issued so far.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]int64)
}

// SetRefreshDelay holds every refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetRefreshIssuesRevoked makes refresh hand out access credentials that are
// rejected on first use, as when a session is revoked server side.
func (s *Server) SetRefreshIssuesRevoked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshIssuesRevoked = v
}

// SetRotateRefresh makes refresh return a new refresh credential too.
func (s *Server) SetRotateRefresh(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateRefresh = v
}

// SetOmitLoginUser drops the user summary from login responses.
func (s *Server) SetOmitLoginUser(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitLoginUser = v
}

// SetFailLogout makes logout answer 500.
func (s *Server) SetFailLogout(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = v
}
