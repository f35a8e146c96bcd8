package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// AuthHandler provides registration, login and logout over cookie sessions.
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
}

func NewAuthHandler(users *services.UserService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, sessions *session.Manager) {
	handler := NewAuthHandler(users, sessions)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(requireAuth).Get("/me", handler.Me)
}

// Register creates a staff account. It does not log the new user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.users.Register(r.Context(), services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatedResponse{
		Result: services.ResultFor(nil, "Registration successful. Please log in."),
		ID:     id,
	})
}

// Login verifies credentials, replaces any previous session and returns the
// session token alongside the cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, sess, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := h.sessions.Save(w, sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Result:    services.ResultFor(nil, "Login successful"),
		Token:     token,
		ExpiresIn: int(h.sessions.TTL().Seconds()),
		User:      user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear(w)
	writeJSON(w, http.StatusOK, services.ResultFor(nil, "You have been logged out"))
}

// Me returns the account behind the current session.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	user, err := h.users.GetByID(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Result:         services.ResultFor(nil, ""),
		User:           user,
		LoginAt:        sess.LoginAt,
		RecentSearches: sess.RecentSearches,
	})
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	services.Result
	Token     string     `json:"token"`
	ExpiresIn int        `json:"expires_in"`
	User      types.User `json:"user"`
}

type MeResponse struct {
	services.Result
	User           types.User `json:"user"`
	LoginAt        time.Time  `json:"login_at"`
	RecentSearches []string   `json:"recent_searches"`
}

// CreatedResponse reports the id of a new record.
type CreatedResponse struct {
	services.Result
	ID int `json:"id"`
}
