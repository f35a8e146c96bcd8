package session

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/soikot-shahriaar/server-maintenance-cms/config"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

const defaultCookieName = "maintenance_session"

// Manager persists sessions in a signed cookie. API clients may send the
// same token as a bearer token instead.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Username       string           `json:"username"`
	Email          string           `json:"email"`
	Name           string           `json:"name"`
	Role           types.Role       `json:"role"`
	LoginAt        *jwt.NumericDate `json:"login_at"`
	RecentSearches []string         `json:"recent_searches,omitempty"`
}

// NewManager constructs a Manager. The secret is required.
func NewManager(cfg config.SessionConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	name := cfg.CookieName
	if name == "" {
		name = defaultCookieName
	}
	return &Manager{
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		cookieName: name,
		secure:     cfg.Secure,
		now:        time.Now,
	}, nil
}

// TTL is the lifetime given to every saved session.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Encode signs s into a token that expires one TTL from now.
func (m *Manager) Encode(s Session) (string, error) {
	if !s.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	now := m.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   strconv.Itoa(s.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Username:       s.Username,
		Email:          s.Email,
		Name:           s.Name,
		Role:           s.Role,
		LoginAt:        jwt.NewNumericDate(s.LoginAt),
		RecentSearches: s.RecentSearches,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(m.secret)
}

// Decode verifies a token and rebuilds the session it carries.
func (m *Manager) Decode(tokenString string) (Session, error) {
	c := claims{}
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return Session{}, err
	}
	if !token.Valid {
		return Session{}, errors.New("invalid token")
	}

	userID, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || userID < 1 {
		return Session{}, errors.New("invalid subject")
	}

	s := Session{
		ID:             c.ID,
		UserID:         userID,
		Username:       c.Username,
		Email:          c.Email,
		Name:           c.Name,
		Role:           c.Role,
		RecentSearches: c.RecentSearches,
	}
	if c.LoginAt != nil {
		s.LoginAt = c.LoginAt.Time
	}
	return s, nil
}

// Save writes s to the response cookie and returns the token.
func (m *Manager) Save(w http.ResponseWriter, s Session) (string, error) {
	token, err := m.Encode(s)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Load returns the session of the request. Missing, expired or tampered
// tokens yield an anonymous session.
func (m *Manager) Load(r *http.Request) Session {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(m.cookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return Session{}
	}
	s, err := m.Decode(token)
	if err != nil {
		return Session{}
	}
	return s
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware loads the session of every request into its context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
