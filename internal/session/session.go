// Package session holds the identity of the caller for one request.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// ErrNotAuthenticated is returned when an operation needs a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// MaxRecentSearches is how many search terms a session remembers.
const MaxRecentSearches = 5

// Session is the per-user context bound at login. The zero value is an
// anonymous session.
type Session struct {
	ID       string     `json:"id,omitempty"`
	UserID   int        `json:"user_id,omitempty"`
	Username string     `json:"username,omitempty"`
	Email    string     `json:"email,omitempty"`
	Name     string     `json:"full_name,omitempty"`
	Role     types.Role `json:"role,omitempty"`
	LoginAt  time.Time  `json:"login_at,omitempty"`

	// RecentSearches is most recent first, without duplicates.
	RecentSearches []string `json:"recent_searches,omitempty"`
}

// New starts a fresh session for user. Nothing carries over from an earlier
// session, including recent searches.
func New(user types.User, now time.Time) Session {
	return Session{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Name:     user.FullName,
		Role:     user.Role,
		LoginAt:  now,
	}
}

func (s Session) IsAuthenticated() bool {
	return s.UserID > 0
}

func (s Session) CurrentUserID() (int, error) {
	if !s.IsAuthenticated() {
		return 0, ErrNotAuthenticated
	}
	return s.UserID, nil
}

func (s Session) CurrentRole() (types.Role, error) {
	if !s.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	return s.Role, nil
}

// IsAdmin is false for anonymous sessions.
func (s Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Role == types.RoleAdmin
}

// AddRecentSearch records term at the front of the list. A term already in
// the list moves to the front; the oldest entries beyond MaxRecentSearches
// are dropped. Blank terms are ignored.
func (s *Session) AddRecentSearch(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	recent := make([]string, 0, MaxRecentSearches)
	recent = append(recent, term)
	for _, existing := range s.RecentSearches {
		if existing == term {
			continue
		}
		if len(recent) == MaxRecentSearches {
			break
		}
		recent = append(recent, existing)
	}
	s.RecentSearches = recent
}

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or an anonymous session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(contextKey{}).(Session)
	return s
}
