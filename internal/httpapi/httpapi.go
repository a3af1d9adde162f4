// Package httpapi exposes the checkout engine over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"medpos/backend/internal/auth"
	"medpos/backend/internal/service"
	"medpos/backend/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
	// admin passwords travel in the JSON body, or in this header for
	// requests without one.
	adminPasswordHeader = "X-Admin-Password"
)

type API struct {
	engine        *service.Engine
	auth          *AuthManager
	allowedOrigin string
	logger        *slog.Logger
	loginLimiter  *attemptLimiter
	adminLimiter  *attemptLimiter
	loc           *time.Location
}

type Option func(*API)

// WithLocation sets the zone used to read date query parameters.
func WithLocation(loc *time.Location) Option {
	return func(a *API) { a.loc = loc }
}

func New(engine *service.Engine, auth *AuthManager, allowedOrigin string, logger *slog.Logger, opts ...Option) *API {
	api := &API{
		engine:        engine,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		logger:        logger.With("component", "http"),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		adminLimiter:  newAttemptLimiter(8, time.Minute),
		loc:           time.UTC,
	}
	for _, opt := range opts {
		opt(api)
	}
	return api
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(a.securityHeaders)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", adminPasswordHeader},
		MaxAge:         300,
	}))
	router.Use(a.logRequests)

	router.Get("/healthz", a.handleHealth)

	router.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.AllowContentType("application/json")).Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", a.handleListInventory)
				r.Get("/suggest", a.handleSuggestItems)
				r.Get("/low-stock", a.handleLowStock)
				r.Post("/", a.handleCreateItem)
				r.Post("/import", a.handleImportInventory)
				r.Get("/{id}", a.handleGetItem)
				r.Patch("/{id}", a.handleUpdateItem)
				r.Delete("/{id}", a.handleDeleteItem)
				r.Post("/{id}/adjust", a.handleAdjustStock)
			})

			r.Post("/checkout", a.handleCheckout)

			r.Route("/holds", func(r chi.Router) {
				r.Get("/", a.handleListHeld)
				r.Post("/", a.handleHold)
				r.Post("/{id}/resume", a.handleResume)
				r.Delete("/{id}", a.handleDiscardHeld)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", a.handleListTransactions)
				r.Get("/{id}", a.handleGetTransaction)
				r.Get("/{id}/receipt", a.handleReceipt)
				r.Post("/{id}/return", a.handleReturn)
				r.Patch("/{id}", a.handleEditTransaction)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/daily", a.handleDailyReport)
				r.Get("/range", a.handleRangeReport)
				r.Get("/monthly", a.handleMonthlyReport)
				r.Get("/yearly", a.handleYearReport)
			})
			r.Get("/logs", a.handleListLog)

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", a.handleListCustomers)
				r.Post("/", a.handleCreateCustomer)
				r.Get("/{id}", a.handleGetCustomer)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", a.handleListUsers)
				r.Post("/", a.handleCreateUser)
				r.Patch("/{username}/status", a.handleSetUserStatus)
			})
		})
	})

	return router
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store")

		limit := int64(maxJSONBody)
		if strings.HasSuffix(r.URL.Path, "/inventory/import") {
			limit = maxImportBody
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
			return
		}
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// adminPassword picks the password from the decoded body, falling back to
// the header, and charges one attempt against the client's budget. It
// writes 429 and returns false once the budget is spent.
func (a *API) adminPassword(w http.ResponseWriter, r *http.Request, fromBody string) (string, bool) {
	password := fromBody
	if password == "" {
		password = r.Header.Get(adminPasswordHeader)
	}
	if password == "" {
		return "", true
	}
	if !a.adminLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many admin password attempts"))
		return "", false
	}
	return password, true
}

// fail maps a service error onto its HTTP status.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrOutOfStock),
		errors.Is(err, store.ErrAlreadyReturned),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrDuplicateID),
		errors.Is(err, store.ErrItemReferenced):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrEmptyCart),
		errors.Is(err, store.ErrEmptyResult):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause is logged by the caller.
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
