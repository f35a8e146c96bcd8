package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soikot-shahriaar/server-maintenance-cms/config"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/authz"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the failure envelope. Field names the offending input,
// when there is one.
type ErrorResponse struct {
	services.Result
	Field string `json:"field,omitempty"`
}

// Pager turns page/per_page query parameters into limit and offset.
type Pager struct {
	PerPage int
	MaxPage int
}

func NewPager(cfg config.PaginationConfig) Pager {
	p := Pager{PerPage: cfg.PerPage, MaxPage: cfg.MaxPage}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	if p.MaxPage < p.PerPage {
		p.MaxPage = p.PerPage
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Result: services.Result{Message: message}})
}

// writeServiceError maps a service error to its status code and envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Result: services.ResultFor(err, "")}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrDuplicateUsername), errors.Is(err, services.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExportDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body")
	}
	return nil
}

func (p Pager) parse(r *http.Request) (page, limit, offset int, err error) {
	page = 1
	limit = p.PerPage

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("per_page"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("limit"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid per_page")
		}
	}
	if limit > p.MaxPage {
		limit = p.MaxPage
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func totalPages(total, limit int) int {
	if limit < 1 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func parseID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func currentSession(r *http.Request) session.Session {
	return session.FromContext(r.Context())
}

// requireAuth rejects anonymous requests. The session middleware must run
// first.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := authz.RequireAuthenticated(currentSession(r)); err != nil {
			writeServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := authz.RequireManageUsers(currentSession(r)); err != nil {
			writeServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
