package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// UserHandler provides user administration. Admins only.
type UserHandler struct {
	users *services.UserService
	pager Pager
}

func NewUserHandler(users *services.UserService, pager Pager) *UserHandler {
	return &UserHandler{users: users, pager: pager}
}

// UserRouter registers user management routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Use(requireAdmin)

	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Put("/password", handler.ChangePassword)
		r.Post("/deactivate", handler.DeactivateUser)
		r.Post("/activate", handler.ActivateUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := h.pager.parse(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.users.ListAll(r.Context(), types.NewPage(limit, offset))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := h.users.CountAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Result:     services.ResultFor(nil, ""),
		Users:      users,
		Page:       page,
		PerPage:    limit,
		Total:      total,
		TotalPages: totalPages(total, limit),
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Result: services.ResultFor(nil, ""), User: user})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.users.Create(r.Context(), services.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     parseRole(req.Role),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{
		Result: services.ResultFor(nil, "User created successfully"),
		ID:     id,
	})
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.users.Update(r.Context(), id, services.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     parseRole(req.Role),
	})
	writeResult(w, err, "User updated successfully")
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req PasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.users.ChangePassword(r.Context(), id, req.Password)
	writeResult(w, err, "Password updated successfully")
}

// DeactivateUser blocks an account's logins. Admins cannot deactivate
// themselves.
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if id == currentSession(r).UserID {
		writeError(w, http.StatusBadRequest, "You cannot deactivate your own account")
		return
	}

	err = h.users.Deactivate(r.Context(), id)
	writeResult(w, err, "User deactivated successfully")
}

func (h *UserHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.users.Activate(r.Context(), id)
	writeResult(w, err, "User activated successfully")
}

func parseRole(raw string) types.Role {
	return types.Role(strings.ToLower(strings.TrimSpace(raw)))
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type PasswordRequest struct {
	Password string `json:"password"`
}

type UserResponse struct {
	services.Result
	User types.User `json:"user"`
}

type UserListResponse struct {
	services.Result
	Users      []types.User `json:"users"`
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
	Total      int          `json:"total"`
	TotalPages int          `json:"total_pages"`
}
