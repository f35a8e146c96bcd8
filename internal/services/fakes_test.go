package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/storage"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

var errDBDown = errors.New("db down")

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
	clock  time.Time
	err    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: map[int]types.User{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) UsernameTaken(_ context.Context, username string, excludeID int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) EmailTaken(_ context.Context, email string, excludeID int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, u := range f.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	user.ID = f.nextID
	user.Active = true
	user.CreatedAt = f.clock
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) List(_ context.Context, page types.Page) ([]types.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	users := make([]types.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return applyPage(users, page), nil
}

func (f *fakeUserRepo) Count(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.users), nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) error {
	if f.err != nil {
		return f.err
	}
	existing, ok := f.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.FullName = user.FullName
	existing.Role = user.Role
	f.users[user.ID] = existing
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int, hash string) error {
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) SetActive(_ context.Context, id int, active bool) error {
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Active = active
	f.users[id] = u
	return nil
}

func applyPage[T any](items []T, page types.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit != nil && *page.Limit < len(items) {
		items = items[:*page.Limit]
	}
	return items
}

type listCall struct {
	filter  types.LogFilter
	page    types.Page
	orderBy string
	dir     types.OrderDir
}

type fakeLogRepo struct {
	logs      map[int]types.MaintenanceLog
	nextID    int
	err       error
	mutations int
	lastList  listCall
	statsFrom time.Time
	hits      []types.MaintenanceLog
	hitTotal  int
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: map[int]types.MaintenanceLog{}}
}

func (f *fakeLogRepo) seed(entry types.MaintenanceLog) types.MaintenanceLog {
	f.nextID++
	entry.ID = f.nextID
	f.logs[entry.ID] = entry
	return entry
}

func (f *fakeLogRepo) Create(_ context.Context, in types.LogInput, performedBy int) (types.MaintenanceLog, error) {
	if f.err != nil {
		return types.MaintenanceLog{}, f.err
	}
	f.mutations++
	now := time.Now()
	return f.seed(types.MaintenanceLog{
		ServerName:      in.ServerName,
		MaintenanceDate: in.MaintenanceDate,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Description:     in.Description,
		MaintenanceType: in.MaintenanceType,
		Status:          in.Status,
		Outcome:         in.Outcome,
		PerformedBy:     performedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}), nil
}

func (f *fakeLogRepo) GetByID(_ context.Context, id int) (types.MaintenanceLog, error) {
	if f.err != nil {
		return types.MaintenanceLog{}, f.err
	}
	entry, ok := f.logs[id]
	if !ok {
		return types.MaintenanceLog{}, store.ErrNotFound
	}
	return entry, nil
}

func (f *fakeLogRepo) List(_ context.Context, filter types.LogFilter, page types.Page, orderBy string, dir types.OrderDir) ([]types.MaintenanceLog, error) {
	f.lastList = listCall{filter: filter, page: page, orderBy: orderBy, dir: dir}
	if f.err != nil {
		return nil, f.err
	}
	logs := make([]types.MaintenanceLog, 0, len(f.logs))
	for _, entry := range f.logs {
		logs = append(logs, entry)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID > logs[j].ID })
	return applyPage(logs, page), nil
}

func (f *fakeLogRepo) Count(_ context.Context, _ types.LogFilter) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.logs), nil
}

func (f *fakeLogRepo) Update(_ context.Context, id int, in types.LogInput) error {
	if f.err != nil {
		return f.err
	}
	entry, ok := f.logs[id]
	if !ok {
		return store.ErrNotFound
	}
	f.mutations++
	entry.ServerName = in.ServerName
	entry.MaintenanceDate = in.MaintenanceDate
	entry.StartTime = in.StartTime
	entry.EndTime = in.EndTime
	entry.Description = in.Description
	entry.MaintenanceType = in.MaintenanceType
	entry.Status = in.Status
	entry.Outcome = in.Outcome
	entry.UpdatedAt = time.Now()
	f.logs[id] = entry
	return nil
}

func (f *fakeLogRepo) Delete(_ context.Context, id int) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.logs[id]; !ok {
		return store.ErrNotFound
	}
	f.mutations++
	delete(f.logs, id)
	return nil
}

func (f *fakeLogRepo) ServerNames(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	names := []string{}
	for _, entry := range f.logs {
		if !seen[entry.ServerName] {
			seen[entry.ServerName] = true
			names = append(names, entry.ServerName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeLogRepo) Statistics(_ context.Context, since time.Time) (types.Statistics, error) {
	f.statsFrom = since
	if f.err != nil {
		return types.Statistics{}, f.err
	}
	stats := types.Statistics{TotalLogs: len(f.logs), ByStatus: []types.StatusCount{}, ByType: []types.TypeCount{}}
	for _, entry := range f.logs {
		if !entry.MaintenanceDate.Before(since) {
			stats.RecentLogs++
		}
	}
	return stats, nil
}

func (f *fakeLogRepo) Search(context.Context, string, types.Page) ([]types.MaintenanceLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeLogRepo) SearchCount(context.Context, string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.hitTotal, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LogEvent
	err    error
}

func (p *recordingPublisher) PublishLogEvent(_ context.Context, event LogEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type memoryObjects struct {
	objects  map[string][]byte
	types    map[string]string
	modified map[string]time.Time
	clock    time.Time
	err      error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{
		objects:  map[string][]byte{},
		types:    map[string]string{},
		modified: map[string]time.Time{},
		clock:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.clock = m.clock.Add(time.Minute)
	m.objects[key] = data
	m.types[key] = contentType
	m.modified[key] = m.clock
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) List(_ context.Context, prefix string) ([]storage.Object, error) {
	if m.err != nil {
		return nil, m.err
	}
	objects := []storage.Object{}
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.Object{Key: key, Size: int64(len(data)), ModifiedAt: m.modified[key]})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ModifiedAt.After(objects[j].ModifiedAt) })
	return objects, nil
}
