package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogRepoWithMock(t *testing.T) (*MaintenanceLogRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMaintenanceLogRepository(db), mock, db
}

var logColumnsOut = []string{
	"id", "server_name", "maintenance_date", "start_time", "end_time",
	"description", "maintenance_type", "status", "outcome", "performed_by",
	"created_at", "updated_at", "full_name", "username",
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLogCreate_Success(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	start := types.TimeOfDay{Hour: 9}
	outcome := "patched"
	input := types.LogInput{
		ServerName:      "web-01",
		MaintenanceDate: date(2024, 3, 1),
		StartTime:       &start,
		Description:     "Kernel update",
		MaintenanceType: types.TypeUpgrade,
		Status:          types.StatusCompleted,
		Outcome:         &outcome,
	}

	q := `(?s)^\s*INSERT\s+INTO\s+maintenance_logs\s*\(server_name,.*performed_by,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,.*\$11\)\s*RETURNING\s+id\s*$`
	mock.ExpectQuery(q).
		WithArgs("web-01", "2024-03-01", "09:00:00", nil, "Kernel update", "upgrade", "completed", "patched", 7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	got, err := repo.Create(context.Background(), input, 7)
	require.NoError(t, err)
	assert.Equal(t, 12, got.ID)
	assert.Equal(t, 7, got.PerformedBy)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogCreate_UnknownPerformer(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+maintenance_logs`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "maintenance_logs_performed_by_fkey"})

	_, err := repo.Create(context.Background(), types.LogInput{
		ServerName:      "db-01",
		MaintenanceDate: date(2024, 3, 1),
		Description:     "Backup check",
		MaintenanceType: types.TypeRoutine,
		Status:          types.StatusScheduled,
	}, 99)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestLogGetByID_Found(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(logColumnsOut).AddRow(
		int64(3), "web-01", date(2024, 3, 1), "09:00:00", "10:30:00",
		"Kernel update", "upgrade", "completed", nil, int64(7),
		created, created, "Alice Admin", "alice",
	)
	mock.ExpectQuery(`(?s)FROM\s+maintenance_logs\s+ml\s+LEFT\s+JOIN\s+users\s+u\s+ON\s+u\.id\s*=\s*ml\.performed_by\s+WHERE\s+ml\.id\s*=\s*\$1\s*$`).
		WithArgs(3).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "web-01", got.ServerName)
	require.NotNil(t, got.StartTime)
	assert.Equal(t, "09:00:00", got.StartTime.String())
	require.NotNil(t, got.EndTime)
	assert.Equal(t, "10:30:00", got.EndTime.String())
	assert.Nil(t, got.Outcome)
	require.NotNil(t, got.PerformedByName)
	assert.Equal(t, "Alice Admin", *got.PerformedByName)
	assert.Equal(t, types.TypeUpgrade, got.MaintenanceType)
	assert.Equal(t, types.StatusCompleted, got.Status)
}

func TestLogGetByID_MissingPerformer(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(logColumnsOut).AddRow(
		int64(4), "db-01", date(2024, 3, 2), nil, nil,
		"Disk swap", "repair", "failed", "controller dead", int64(42),
		created, created, nil, nil,
	)
	mock.ExpectQuery(`WHERE\s+ml\.id\s*=\s*\$1`).WithArgs(4).WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.PerformedByName)
	assert.Nil(t, got.PerformedByUsername)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, "controller dead", *got.Outcome)
}

func TestLogGetByID_NotFound(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+ml\.id\s*=\s*\$1`).WithArgs(404).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogList_FiltersAndPagination(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	server := "WEB"
	status := types.StatusCompleted
	mt := types.TypeRoutine
	from := date(2024, 1, 1)
	to := date(2024, 1, 31)
	performer := 7
	filter := types.LogFilter{
		ServerName:      &server,
		Status:          &status,
		MaintenanceType: &mt,
		DateFrom:        &from,
		DateTo:          &to,
		PerformedBy:     &performer,
	}

	want := regexp.QuoteMeta(
		` WHERE ml.server_name ILIKE $1 AND ml.status = $2 AND ml.maintenance_type = $3` +
			` AND ml.maintenance_date >= $4 AND ml.maintenance_date <= $5 AND ml.performed_by = $6` +
			` ORDER BY ml.server_name ASC, ml.id ASC LIMIT $7 OFFSET $8`)
	mock.ExpectQuery(want).
		WithArgs("%WEB%", "completed", "routine", "2024-01-01", "2024-01-31", 7, 10, 20).
		WillReturnRows(sqlmock.NewRows(logColumnsOut))

	got, err := repo.List(context.Background(), filter, types.NewPage(10, 20), "server_name", "asc")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogList_UnknownOrderFallsBack(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	want := regexp.QuoteMeta(`LEFT JOIN users u ON u.id = ml.performed_by ORDER BY ml.maintenance_date DESC, ml.id DESC`) + `\s*$`
	mock.ExpectQuery(want).WillReturnRows(sqlmock.NewRows(logColumnsOut))

	_, err := repo.List(context.Background(), types.LogFilter{}, types.Page{}, "password_hash; DROP TABLE users", "sideways")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogList_EscapesWildcards(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	server := "db_1%"
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE ml.server_name ILIKE $1`)).
		WithArgs(`%db\_1\%%`).
		WillReturnRows(sqlmock.NewRows(logColumnsOut))

	_, err := repo.List(context.Background(), types.LogFilter{ServerName: &server}, types.Page{}, "", "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogCount(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	status := types.StatusFailed
	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM maintenance_logs ml WHERE ml\.status = \$1$`).
		WithArgs("failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	total, err := repo.Count(context.Background(), types.LogFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestLogUpdate(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	input := types.LogInput{
		ServerName:      "web-02",
		MaintenanceDate: date(2024, 4, 2),
		Description:     "Reboot",
		MaintenanceType: types.TypeEmergency,
		Status:          types.StatusInProgress,
	}
	q := `(?s)UPDATE\s+maintenance_logs\s+SET\s+server_name\s*=\s*\$1,.*updated_at\s*=\s*\$9\s+WHERE\s+id\s*=\s*\$10`

	mock.ExpectExec(q).
		WithArgs("web-02", "2024-04-02", nil, nil, "Reboot", "emergency", "in_progress", nil, sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), 5, input))

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), 6, input), ErrNotFound)
}

func TestLogDelete(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM maintenance_logs WHERE id = \$1$`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 3))

	mock.ExpectExec(`^DELETE FROM maintenance_logs WHERE id = \$1$`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 3), ErrNotFound)

	mock.ExpectExec(`^DELETE FROM maintenance_logs`).WillReturnError(errors.New("db down"))
	err := repo.Delete(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLogServerNames(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`SELECT DISTINCT server_name FROM maintenance_logs ORDER BY server_name ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"server_name"}).AddRow("a-01").AddRow("b-01"))

	names, err := repo.ServerNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-01", "b-01"}, names)
}

func TestLogStatistics(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM maintenance_logs$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("completed", int64(2)).AddRow("failed", int64(1)))
	mock.ExpectQuery(`GROUP BY maintenance_type`).
		WillReturnRows(sqlmock.NewRows([]string{"maintenance_type", "count"}).AddRow("routine", int64(3)))
	mock.ExpectQuery(`WHERE maintenance_date >= \$1`).
		WithArgs("2024-02-14").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	stats, err := repo.Statistics(context.Background(), date(2024, 2, 14))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalLogs)
	assert.Equal(t, []types.StatusCount{{Status: types.StatusCompleted, Count: 2}, {Status: types.StatusFailed, Count: 1}}, stats.ByStatus)
	assert.Equal(t, []types.TypeCount{{MaintenanceType: types.TypeRoutine, Count: 3}}, stats.ByType)
	assert.Equal(t, 1, stats.RecentLogs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogStatistics_Empty(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM maintenance_logs$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`GROUP BY status`).WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))
	mock.ExpectQuery(`GROUP BY maintenance_type`).WillReturnRows(sqlmock.NewRows([]string{"maintenance_type", "count"}))
	mock.ExpectQuery(`WHERE maintenance_date >= \$1`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	stats, err := repo.Statistics(context.Background(), date(2024, 2, 14))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalLogs)
	assert.NotNil(t, stats.ByStatus)
	assert.Empty(t, stats.ByStatus)
	assert.NotNil(t, stats.ByType)
	assert.Empty(t, stats.ByType)
	assert.Zero(t, stats.RecentLogs)
}

func TestLogSearch(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	want := regexp.QuoteMeta(
		`WHERE (ml.server_name ILIKE $1 OR ml.description ILIKE $1 OR ml.outcome ILIKE $1 OR u.full_name ILIKE $1)` +
			` ORDER BY ml.maintenance_date DESC, ml.id DESC LIMIT $2`)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(want).
		WithArgs("%alice%", 5).
		WillReturnRows(sqlmock.NewRows(logColumnsOut).AddRow(
			int64(1), "web-01", date(2024, 3, 1), nil, nil,
			"Patch", "security", "completed", nil, int64(7),
			created, created, "Alice Admin", "alice",
		))

	logs, err := repo.Search(context.Background(), " alice ", types.NewPage(5, 0))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, types.TypeSecurity, logs[0].MaintenanceType)
}

func TestLogSearchCount(t *testing.T) {
	repo, mock, _ := newLogRepoWithMock(t)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM maintenance_logs ml LEFT JOIN users u ON u\.id = ml\.performed_by WHERE \(`).
		WithArgs("%kernel%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	total, err := repo.SearchCount(context.Background(), "kernel")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}
