// Package admin serves the database seed/reset endpoints and the login
// route that issues the capability token guarding them.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bathware-labs/stock-reservation-service/internal/httpjson"
	"github.com/bathware-labs/stock-reservation-service/pkg/apperror"
)

// Database is the destructive side of a store.
type Database interface {
	// Recreate drops, rebuilds and seeds the product and reservation tables.
	Recreate(ctx context.Context) error
	// Clear empties both tables.
	Clear(ctx context.Context) error
}

type Handler struct {
	log    *slog.Logger
	db     Database
	issuer *TokenIssuer
}

func NewHandler(log *slog.Logger, db Database, issuer *TokenIssuer) *Handler {
	return &Handler{log: log, db: db, issuer: issuer}
}

// LoginRoutes is mounted unauthenticated.
func (h *Handler) LoginRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	return r
}

// DatabaseRoutes is mounted behind RequireToken.
func (h *Handler) DatabaseRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.RequireToken)
	r.Post("/create", h.create)
	r.Delete("/delete", h.clear)
	return r
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, h.log, apperror.InvalidArgument("invalid body"))
		return
	}
	token, err := h.issuer.Issue(req.Password)
	if err != nil {
		h.log.Warn("admin login rejected")
		httpjson.Write(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "invalid credentials"})
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "token": token})
}

func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || h.issuer.Verify(token) != nil {
			httpjson.Write(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Recreate(r.Context()); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	h.log.Info("database recreated and seeded")
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "message": "Database created and seeded successfully"})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Clear(r.Context()); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	h.log.Info("database cleared")
	httpjson.Write(w, http.StatusOK, map[string]any{"ok": true, "message": "Database cleared successfully"})
}
