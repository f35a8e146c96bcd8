package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/authz"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/logging"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

const (
	// RecentWindowDays is how far back a log counts as recent in statistics.
	RecentWindowDays = 30
	// DashboardRecentLogs is the size of the dashboard's latest activity list.
	DashboardRecentLogs = 5

	maxServerNameLength = 100
)

// LogRepository defines persistence operations for maintenance logs.
type LogRepository interface {
	Create(ctx context.Context, input types.LogInput, performedBy int) (types.MaintenanceLog, error)
	GetByID(ctx context.Context, id int) (types.MaintenanceLog, error)
	List(ctx context.Context, filter types.LogFilter, page types.Page, orderBy string, dir types.OrderDir) ([]types.MaintenanceLog, error)
	Count(ctx context.Context, filter types.LogFilter) (int, error)
	Update(ctx context.Context, id int, input types.LogInput) error
	Delete(ctx context.Context, id int) error
	ServerNames(ctx context.Context) ([]string, error)
	Statistics(ctx context.Context, recentSince time.Time) (types.Statistics, error)
	Search(ctx context.Context, term string, page types.Page) ([]types.MaintenanceLog, error)
	SearchCount(ctx context.Context, term string) (int, error)
}

// LogService encapsulates maintenance log use-cases. Every mutation checks
// the caller's permission before touching the repository.
type LogService struct {
	repo   LogRepository
	events EventPublisher
	log    logging.Logger
	now    func() time.Time
}

// NewLogService constructs a LogService. events may be nil.
func NewLogService(repo LogRepository, events EventPublisher, log logging.Logger) *LogService {
	if events == nil {
		events = noopPublisher{}
	}
	return &LogService{
		repo:   repo,
		events: events,
		log:    log.With("service", "logs"),
		now:    time.Now,
	}
}

// ListQuery selects and orders a page of logs.
type ListQuery struct {
	Filter   types.LogFilter
	Page     types.Page
	OrderBy  string
	OrderDir types.OrderDir
}

// Create stores a log performed by the session's user and returns its id.
func (s *LogService) Create(ctx context.Context, sess session.Session, in types.LogInput) (int, error) {
	userID, err := sess.CurrentUserID()
	if err != nil {
		return 0, err
	}
	in, err = normalizeLogInput(in)
	if err != nil {
		return 0, err
	}

	created, err := s.repo.Create(ctx, in, userID)
	if err != nil {
		return 0, s.fail(ctx, "create log failed", err)
	}

	s.log.Info(ctx, "log created", "log_id", created.ID, "server", created.ServerName, "user_id", userID)
	s.publish(ctx, LogEvent{
		Type:       LogCreated,
		LogID:      created.ID,
		ServerName: created.ServerName,
		Status:     created.Status,
		ActorID:    userID,
	})
	return created.ID, nil
}

// Get returns one log with its performer's name.
func (s *LogService) Get(ctx context.Context, sess session.Session, id int) (types.MaintenanceLog, error) {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return types.MaintenanceLog{}, err
	}
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.MaintenanceLog{}, s.fail(ctx, "get log failed", err)
	}
	if err := authz.RequireView(sess, entry); err != nil {
		return types.MaintenanceLog{}, err
	}
	return entry, nil
}

// Update replaces the mutable fields of a log owned by the caller, or of any
// log when the caller is an admin.
func (s *LogService) Update(ctx context.Context, sess session.Session, id int, in types.LogInput) error {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.fail(ctx, "get log failed", err)
	}
	if err := authz.RequireEditOrDelete(sess, existing); err != nil {
		return err
	}
	in, err = normalizeLogInput(in)
	if err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, in); err != nil {
		return s.fail(ctx, "update log failed", err)
	}

	s.log.Info(ctx, "log updated", "log_id", id, "user_id", sess.UserID)
	s.publish(ctx, LogEvent{
		Type:       LogUpdated,
		LogID:      id,
		ServerName: in.ServerName,
		Status:     in.Status,
		ActorID:    sess.UserID,
	})
	return nil
}

// Delete removes a log permanently under the same rule as Update.
func (s *LogService) Delete(ctx context.Context, sess session.Session, id int) error {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.fail(ctx, "get log failed", err)
	}
	if err := authz.RequireEditOrDelete(sess, existing); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(ctx, "delete log failed", err)
	}

	s.log.Info(ctx, "log deleted", "log_id", id, "user_id", sess.UserID)
	s.publish(ctx, LogEvent{
		Type:       LogDeleted,
		LogID:      id,
		ServerName: existing.ServerName,
		Status:     existing.Status,
		ActorID:    sess.UserID,
	})
	return nil
}

// List returns the logs matching q. Store failures are logged and produce an
// empty list.
func (s *LogService) List(ctx context.Context, sess session.Session, q ListQuery) ([]types.MaintenanceLog, error) {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return nil, err
	}
	logs, err := s.repo.List(ctx, q.Filter, q.Page, q.OrderBy, q.OrderDir)
	if err != nil {
		s.log.Error(ctx, "list logs failed", "err", err)
		return []types.MaintenanceLog{}, nil
	}
	return logs, nil
}

// Count returns the number of logs matching filter, or 0 on store failure.
func (s *LogService) Count(ctx context.Context, sess session.Session, filter types.LogFilter) (int, error) {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.log.Error(ctx, "count logs failed", "err", err)
		return 0, nil
	}
	return total, nil
}

// Recent returns the n most recently created logs.
func (s *LogService) Recent(ctx context.Context, sess session.Session, n int) ([]types.MaintenanceLog, error) {
	if n <= 0 {
		n = DashboardRecentLogs
	}
	return s.List(ctx, sess, ListQuery{
		Page:     types.NewPage(n, 0),
		OrderBy:  "created_at",
		OrderDir: types.OrderDesc,
	})
}

// ServerNames returns the distinct server names alphabetically.
func (s *LogService) ServerNames(ctx context.Context, sess session.Session) ([]string, error) {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return nil, err
	}
	names, err := s.repo.ServerNames(ctx)
	if err != nil {
		s.log.Error(ctx, "list server names failed", "err", err)
		return []string{}, nil
	}
	return names, nil
}

// Statistics aggregates all logs. Logs dated within the last
// RecentWindowDays days, or in the future, count as recent.
func (s *LogService) Statistics(ctx context.Context, sess session.Session) (types.Statistics, error) {
	if err := authz.RequireAuthenticated(sess); err != nil {
		return types.Statistics{}, err
	}
	y, m, d := s.now().Date()
	since := time.Date(y, m, d-RecentWindowDays, 0, 0, 0, 0, time.UTC)

	stats, err := s.repo.Statistics(ctx, since)
	if err != nil {
		s.log.Error(ctx, "load statistics failed", "err", err)
		return types.Statistics{ByStatus: []types.StatusCount{}, ByType: []types.TypeCount{}}, nil
	}
	return stats, nil
}

// SearchResult is one page of search hits plus the unpaginated total.
type SearchResult struct {
	Term  string                 `json:"term"`
	Logs  []types.MaintenanceLog `json:"logs"`
	Total int                    `json:"total"`
}

// Search runs a free-text search and records the term in the session's
// recent searches. A blank term returns no results.
func (s *LogService) Search(ctx context.Context, sess *session.Session, term string, page types.Page) (SearchResult, error) {
	if err := authz.RequireAuthenticated(*sess); err != nil {
		return SearchResult{}, err
	}
	term = strings.TrimSpace(term)
	result := SearchResult{Term: term, Logs: []types.MaintenanceLog{}}
	if term == "" {
		return result, nil
	}
	sess.AddRecentSearch(term)

	logs, err := s.repo.Search(ctx, term, page)
	if err != nil {
		s.log.Error(ctx, "search logs failed", "err", err)
		return result, nil
	}
	total, err := s.repo.SearchCount(ctx, term)
	if err != nil {
		s.log.Error(ctx, "count search results failed", "err", err)
		total = len(logs)
	}
	result.Logs = logs
	result.Total = total
	return result, nil
}

func (s *LogService) publish(ctx context.Context, event LogEvent) {
	event.At = s.now()
	if err := s.events.PublishLogEvent(ctx, event); err != nil {
		s.log.Warn(ctx, "publish log event failed", "type", event.Type, "log_id", event.LogID, "err", err)
	}
}

func (s *LogService) fail(ctx context.Context, msg string, err error) error {
	classified := storeError(err)
	if errors.Is(classified, ErrStore) {
		s.log.Error(ctx, msg, "err", err)
	}
	return classified
}

func normalizeLogInput(in types.LogInput) (types.LogInput, error) {
	in.ServerName = strings.TrimSpace(in.ServerName)
	in.Description = strings.TrimSpace(in.Description)
	if in.Outcome != nil {
		outcome := strings.TrimSpace(*in.Outcome)
		if outcome == "" {
			in.Outcome = nil
		} else {
			in.Outcome = &outcome
		}
	}

	switch {
	case in.ServerName == "":
		return types.LogInput{}, invalid("server_name", "Server name is required")
	case len(in.ServerName) > maxServerNameLength:
		return types.LogInput{}, invalid("server_name", "Server name is too long")
	case in.MaintenanceDate.IsZero():
		return types.LogInput{}, invalid("maintenance_date", "Maintenance date is required")
	case in.Description == "":
		return types.LogInput{}, invalid("description", "Description is required")
	case in.MaintenanceType == "":
		return types.LogInput{}, invalid("maintenance_type", "Maintenance type is required")
	case !in.MaintenanceType.Valid():
		return types.LogInput{}, invalid("maintenance_type", "Invalid maintenance type")
	case in.Status == "":
		return types.LogInput{}, invalid("status", "Status is required")
	case !in.Status.Valid():
		return types.LogInput{}, invalid("status", "Invalid status")
	}
	return in, nil
}
