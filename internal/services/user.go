package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/logging"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	maxUsernameLength = 50
	maxEmailLength    = 100
	maxFullNameLength = 100

	// bcrypt ignores input past 72 bytes and x/crypto rejects it.
	maxPasswordBytes = 72
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID int) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	List(ctx context.Context, page types.Page) ([]types.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, user types.User) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetActive(ctx context.Context, id int, active bool) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	log      logging.Logger
	hashCost int
	now      func() time.Time
}

func NewUserService(repo UserRepository, log logging.Logger) *UserService {
	return &UserService{
		repo:     repo,
		log:      log.With("service", "users"),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// CreateUserInput is the data needed to create an account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	FullName string
	// Role defaults to staff when empty.
	Role types.Role
}

// RegisterInput is the self-service sign-up form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// UpdateUserInput replaces the profile fields of an account.
type UpdateUserInput struct {
	Username string
	Email    string
	FullName string
	Role     types.Role
}

// Register creates a staff account after checking the password confirmation.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (int, error) {
	if in.Password != in.ConfirmPassword {
		return 0, invalid("confirm_password", "Passwords do not match")
	}
	return s.Create(ctx, CreateUserInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
		Role:     types.RoleStaff,
	})
}

// Create validates the input, rejects taken usernames and emails, hashes the
// password and stores an active account. It returns the new user id.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (int, error) {
	if in.Role == "" {
		in.Role = types.RoleStaff
	}
	profile, err := normalizeProfile(in.Username, in.Email, in.FullName, in.Role)
	if err != nil {
		return 0, err
	}
	if err := validatePassword(in.Password); err != nil {
		return 0, err
	}

	if err := s.checkUnique(ctx, profile.Username, profile.Email, 0); err != nil {
		return 0, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		s.log.Error(ctx, "hash password failed", "err", err)
		return 0, ErrStore
	}
	profile.PasswordHash = string(hashed)

	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		return 0, s.fail(ctx, "create user failed", err)
	}
	s.log.Info(ctx, "user created", "user_id", created.ID, "username", created.Username, "role", created.Role)
	return created.ID, nil
}

// Authenticate checks credentials and starts a new session for the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, session.Session{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, session.Session{}, ErrInvalidCredentials
		}
		return types.User{}, session.Session{}, s.fail(ctx, "load user failed", err)
	}
	if !user.Active {
		return types.User{}, session.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, session.Session{}, ErrInvalidCredentials
	}

	return user, session.New(user, s.now()), nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, s.fail(ctx, "get user failed", err)
	}
	return user, nil
}

// ListAll returns users newest first.
func (s *UserService) ListAll(ctx context.Context, page types.Page) ([]types.User, error) {
	users, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, s.fail(ctx, "list users failed", err)
	}
	return users, nil
}

// CountAll counts active and inactive users.
func (s *UserService) CountAll(ctx context.Context) (int, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return 0, s.fail(ctx, "count users failed", err)
	}
	return total, nil
}

// Update replaces username, email, full name and role. Uniqueness is checked
// against every other user.
func (s *UserService) Update(ctx context.Context, id int, in UpdateUserInput) error {
	profile, err := normalizeProfile(in.Username, in.Email, in.FullName, in.Role)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return s.fail(ctx, "get user failed", err)
	}
	if err := s.checkUnique(ctx, profile.Username, profile.Email, id); err != nil {
		return err
	}

	profile.ID = id
	if err := s.repo.Update(ctx, profile); err != nil {
		return s.fail(ctx, "update user failed", err)
	}
	return nil
}

// ChangePassword re-hashes the password. Existing sessions stay valid.
func (s *UserService) ChangePassword(ctx context.Context, id int, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		s.log.Error(ctx, "hash password failed", "err", err)
		return ErrStore
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hashed)); err != nil {
		return s.fail(ctx, "update password failed", err)
	}
	return nil
}

// Deactivate blocks future logins. The account and its logs are kept and a
// second call is a no-op.
func (s *UserService) Deactivate(ctx context.Context, id int) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return s.fail(ctx, "deactivate user failed", err)
	}
	s.log.Info(ctx, "user deactivated", "user_id", id)
	return nil
}

// Activate re-enables a deactivated account.
func (s *UserService) Activate(ctx context.Context, id int) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return s.fail(ctx, "activate user failed", err)
	}
	s.log.Info(ctx, "user activated", "user_id", id)
	return nil
}

func (s *UserService) checkUnique(ctx context.Context, username, email string, excludeID int) error {
	taken, err := s.repo.UsernameTaken(ctx, username, excludeID)
	if err != nil {
		return s.fail(ctx, "check username failed", err)
	}
	if taken {
		return ErrDuplicateUsername
	}
	taken, err = s.repo.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return s.fail(ctx, "check email failed", err)
	}
	if taken {
		return ErrDuplicateEmail
	}
	return nil
}

// fail logs unexpected repository errors and returns the classified error.
func (s *UserService) fail(ctx context.Context, msg string, err error) error {
	classified := storeError(err)
	if errors.Is(classified, ErrStore) {
		s.log.Error(ctx, msg, "err", err)
	}
	return classified
}

func normalizeProfile(username, email, fullName string, role types.Role) (types.User, error) {
	user := types.User{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		FullName: strings.TrimSpace(fullName),
		Role:     role,
	}
	switch {
	case user.Username == "":
		return types.User{}, invalid("username", "Username is required")
	case len(user.Username) > maxUsernameLength:
		return types.User{}, invalid("username", "Username is too long")
	case user.Email == "":
		return types.User{}, invalid("email", "Email is required")
	case len(user.Email) > maxEmailLength || !validEmail(user.Email):
		return types.User{}, invalid("email", "Invalid email format")
	case user.FullName == "":
		return types.User{}, invalid("full_name", "Full name is required")
	case len(user.FullName) > maxFullNameLength:
		return types.User{}, invalid("full_name", "Full name is too long")
	case !user.Role.Valid():
		return types.User{}, invalid("role", "Invalid role")
	}
	return user, nil
}

// validEmail accepts a bare address, not "Name <addr>" forms.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "Password must be at least 6 characters long")
	}
	if len(password) > maxPasswordBytes {
		return invalid("password", "Password is too long")
	}
	return nil
}
