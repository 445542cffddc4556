package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lukasberz/nse/internal/index"
	"github.com/lukasberz/nse/internal/service"
)

// AdminStore is the surface the admin endpoints need for provisioning
// users and their tokens.
type AdminStore interface {
	CreateUser(ctx context.Context, username string) (int64, error)
	CreateToken(userID int64, desc string) (string, *index.TokenInfo, error)
}

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody int64  // bytes, for JSON endpoints
	AdminToken     string // for admin endpoints
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody: 1 * 1024 * 1024, // 1MB
	}
}

// Handler creates the HTTP handler with all routes and middleware.
func Handler(svc *service.Service, auth Authenticator, admin AdminStore, cfg *ServerConfig, logger *slog.Logger) http.Handler {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, authMiddleware(auth, logger))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Admin endpoints
	if cfg.AdminToken != "" && admin != nil {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("POST /admin/users", makeAdminCreateUserHandler(admin, cfg, logger))
		adminMux.HandleFunc("POST /admin/tokens", makeAdminCreateTokenHandler(admin, cfg, logger))
		mux.Handle("/admin/", adminAuth(cfg.AdminToken, adminMux))
	}

	// Stores
	mux.Handle("POST /api/v1/stores", withAuth(makeAddStoreHandler(svc, cfg, logger)))
	mux.Handle("GET /api/v1/stores", withAuth(makeListStoresHandler(svc, logger)))
	mux.Handle("GET /api/v1/stores/{store}", withAuth(makeGetStoreHandler(svc, logger)))
	mux.Handle("DELETE /api/v1/stores/{store}", withAuth(makeDeleteStoreHandler(svc, logger)))

	// Packages
	mux.Handle("POST /api/v1/stores/{store}/packages", withAuth(makeAddPackageHandler(svc, cfg, logger)))
	mux.Handle("DELETE /api/v1/stores/{store}/packages/{name}", withAuth(makeDeletePackageHandler(svc, logger)))
	mux.Handle("GET /api/v1/stores/{store}/packages/{name}/meta", withAuth(makePackageMetaHandler(svc, logger)))

	// Differences
	mux.Handle("GET /api/v1/stores/{store}/paths-difference/{other}", withAuth(makePathsDifferenceHandler(svc, logger)))
	mux.Handle("GET /api/v1/stores/{store}/packages/{name}/closures-difference/{other}/{otherName}", withAuth(makeClosuresDifferenceHandler(svc, logger)))

	return applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)
}

// statusForKind maps a domain error kind to an HTTP status.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindNotFound, service.KindNotFoundLocally:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindToolFailure:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps an error to a response. Domain errors carry a stable
// message per kind; everything else (persistence failures included) is an
// opaque 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if kind, ok := service.KindOf(err); ok {
		writeJSON(w, statusForKind(kind), map[string]string{"detail": err.Error()})
		return
	}
	logger.Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "unexpected error"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, cfg *ServerConfig, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return false
	}
	return true
}

type nameRequest struct {
	Name string `json:"name"`
}

func makeAddStoreHandler(svc *service.Service, cfg *ServerConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if !decodeBody(w, r, cfg, &req) {
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "store name is required"})
			return
		}

		store, err := svc.AddStore(r.Context(), req.Name, UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, store)
	}
}

func makeListStoresHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stores, err := svc.GetStores(r.Context(), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stores)
	}
}

func makeGetStoreHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := svc.GetStore(r.Context(), r.PathValue("store"), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, store)
	}
}

func makeDeleteStoreHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := svc.DeleteStore(r.Context(), r.PathValue("store"), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, store)
	}
}

func makeAddPackageHandler(svc *service.Service, cfg *ServerConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if !decodeBody(w, r, cfg, &req) {
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "package name is required"})
			return
		}

		pkg, err := svc.AddPackage(r.Context(), r.PathValue("store"), req.Name, UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, pkg)
	}
}

func makeDeletePackageHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pkg, err := svc.DeletePackage(r.Context(), r.PathValue("store"), r.PathValue("name"), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, pkg)
	}
}

func makePackageMetaHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, err := svc.GetPackageMeta(r.Context(), r.PathValue("store"), r.PathValue("name"), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

func makePathsDifferenceHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		difference, err := svc.GetPathsDifference(r.Context(), r.PathValue("store"), r.PathValue("other"), UserID(r.Context()))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, difference)
	}
}

func makeClosuresDifferenceHandler(svc *service.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		difference, err := svc.GetClosuresDifference(
			r.Context(),
			r.PathValue("store"), r.PathValue("name"),
			r.PathValue("other"), r.PathValue("otherName"),
			UserID(r.Context()),
		)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, difference)
	}
}

func makeAdminCreateUserHandler(admin AdminStore, cfg *ServerConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if !decodeBody(w, r, cfg, &req) {
			return
		}
		if req.Username == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "username is required"})
			return
		}

		id, err := admin.CreateUser(r.Context(), req.Username)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "username": req.Username})
	}
}

func makeAdminCreateTokenHandler(admin AdminStore, cfg *ServerConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID int64  `json:"user_id"`
			Desc   string `json:"description"`
		}
		if !decodeBody(w, r, cfg, &req) {
			return
		}
		if req.UserID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "user_id is required"})
			return
		}

		raw, info, err := admin.CreateToken(req.UserID, req.Desc)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"token": raw, "id": info.ID, "user_id": info.UserID})
	}
}
