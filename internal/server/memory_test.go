package server

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/storage"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// memoryDB backs both repository interfaces for router tests.
type memoryDB struct {
	mu     sync.Mutex
	users  map[int]types.User
	logs   map[int]types.MaintenanceLog
	userID int
	logID  int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{users: map[int]types.User{}, logs: map[int]types.MaintenanceLog{}}
}

type memoryUsers struct{ db *memoryDB }

type memoryLogs struct{ db *memoryDB }

func (m memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) UsernameTaken(_ context.Context, username string, excludeID int) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m memoryUsers) EmailTaken(_ context.Context, email string, excludeID int) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.userID++
	user.ID = m.db.userID
	user.Active = true
	user.CreatedAt = time.Date(2024, 1, 1, 0, m.db.userID, 0, 0, time.UTC)
	m.db.users[user.ID] = user
	return user, nil
}

func (m memoryUsers) List(_ context.Context, page types.Page) ([]types.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	users := make([]types.User, 0, len(m.db.users))
	for _, u := range m.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return paginate(users, page), nil
}

func (m memoryUsers) Count(context.Context) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.db.users), nil
}

func (m memoryUsers) Update(_ context.Context, user types.User) error {
	return m.modify(user.ID, func(u *types.User) {
		u.Username, u.Email, u.FullName, u.Role = user.Username, user.Email, user.FullName, user.Role
	})
}

func (m memoryUsers) UpdatePassword(_ context.Context, id int, hash string) error {
	return m.modify(id, func(u *types.User) { u.PasswordHash = hash })
}

func (m memoryUsers) SetActive(_ context.Context, id int, active bool) error {
	return m.modify(id, func(u *types.User) { u.Active = active })
}

func (m memoryUsers) modify(id int, fn func(*types.User)) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&u)
	m.db.users[id] = u
	return nil
}

func (m memoryLogs) Create(_ context.Context, in types.LogInput, performedBy int) (types.MaintenanceLog, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	performer, ok := m.db.users[performedBy]
	if !ok {
		return types.MaintenanceLog{}, store.ErrInvalidReference
	}
	m.db.logID++
	now := time.Now().UTC()
	entry := types.MaintenanceLog{
		ID:                  m.db.logID,
		ServerName:          in.ServerName,
		MaintenanceDate:     in.MaintenanceDate,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		Description:         in.Description,
		MaintenanceType:     in.MaintenanceType,
		Status:              in.Status,
		Outcome:             in.Outcome,
		PerformedBy:         performedBy,
		PerformedByName:     &performer.FullName,
		PerformedByUsername: &performer.Username,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.db.logs[entry.ID] = entry
	return entry, nil
}

func (m memoryLogs) GetByID(_ context.Context, id int) (types.MaintenanceLog, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	entry, ok := m.db.logs[id]
	if !ok {
		return types.MaintenanceLog{}, store.ErrNotFound
	}
	return entry, nil
}

func (m memoryLogs) List(_ context.Context, filter types.LogFilter, page types.Page, _ string, _ types.OrderDir) ([]types.MaintenanceLog, error) {
	return paginate(m.matching(filter), page), nil
}

func (m memoryLogs) Count(_ context.Context, filter types.LogFilter) (int, error) {
	return len(m.matching(filter)), nil
}

func (m memoryLogs) Update(_ context.Context, id int, in types.LogInput) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	entry, ok := m.db.logs[id]
	if !ok {
		return store.ErrNotFound
	}
	entry.ServerName = in.ServerName
	entry.MaintenanceDate = in.MaintenanceDate
	entry.StartTime = in.StartTime
	entry.EndTime = in.EndTime
	entry.Description = in.Description
	entry.MaintenanceType = in.MaintenanceType
	entry.Status = in.Status
	entry.Outcome = in.Outcome
	entry.UpdatedAt = time.Now().UTC()
	m.db.logs[id] = entry
	return nil
}

func (m memoryLogs) Delete(_ context.Context, id int) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.logs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.db.logs, id)
	return nil
}

func (m memoryLogs) ServerNames(context.Context) ([]string, error) {
	seen := map[string]bool{}
	names := []string{}
	for _, entry := range m.matching(types.LogFilter{}) {
		if !seen[entry.ServerName] {
			seen[entry.ServerName] = true
			names = append(names, entry.ServerName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m memoryLogs) Statistics(_ context.Context, since time.Time) (types.Statistics, error) {
	stats := types.Statistics{ByStatus: []types.StatusCount{}, ByType: []types.TypeCount{}}
	for _, entry := range m.matching(types.LogFilter{}) {
		stats.TotalLogs++
		if !entry.MaintenanceDate.Before(since) {
			stats.RecentLogs++
		}
	}
	return stats, nil
}

func (m memoryLogs) Search(_ context.Context, term string, page types.Page) ([]types.MaintenanceLog, error) {
	return paginate(m.search(term), page), nil
}

func (m memoryLogs) SearchCount(_ context.Context, term string) (int, error) {
	return len(m.search(term)), nil
}

func (m memoryLogs) search(term string) []types.MaintenanceLog {
	term = strings.ToLower(term)
	var hits []types.MaintenanceLog
	for _, entry := range m.matching(types.LogFilter{}) {
		if strings.Contains(strings.ToLower(entry.ServerName), term) ||
			strings.Contains(strings.ToLower(entry.Description), term) {
			hits = append(hits, entry)
		}
	}
	return hits
}

func (m memoryLogs) matching(filter types.LogFilter) []types.MaintenanceLog {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	logs := []types.MaintenanceLog{}
	for _, entry := range m.db.logs {
		if filter.ServerName != nil && !strings.Contains(strings.ToLower(entry.ServerName), strings.ToLower(*filter.ServerName)) {
			continue
		}
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		if filter.PerformedBy != nil && entry.PerformedBy != *filter.PerformedBy {
			continue
		}
		logs = append(logs, entry)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	return logs
}

func paginate[T any](items []T, page types.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit != nil && *page.Limit < len(items) {
		items = items[:*page.Limit]
	}
	return items
}

type memoryObjects struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.modified[key] = time.Now()
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) List(_ context.Context, prefix string) ([]storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects := []storage.Object{}
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.Object{Key: key, Size: int64(len(data)), ModifiedAt: m.modified[key]})
		}
	}
	return objects, nil
}
