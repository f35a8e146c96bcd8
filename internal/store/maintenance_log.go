package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// MaintenanceLogRepository handles persistence for maintenance logs.
type MaintenanceLogRepository struct {
	db *sql.DB
}

func NewMaintenanceLogRepository(db *sql.DB) *MaintenanceLogRepository {
	return &MaintenanceLogRepository{db: db}
}

const logSelect = `
		SELECT ml.id, ml.server_name, ml.maintenance_date, ml.start_time::text, ml.end_time::text,
			ml.description, ml.maintenance_type, ml.status, ml.outcome, ml.performed_by,
			ml.created_at, ml.updated_at, u.full_name, u.username
		FROM maintenance_logs ml
		LEFT JOIN users u ON u.id = ml.performed_by`

const searchPredicate = ` WHERE (ml.server_name ILIKE $1 OR ml.description ILIKE $1 OR ml.outcome ILIKE $1 OR u.full_name ILIKE $1)`

func scanLog(row rowScanner) (types.MaintenanceLog, error) {
	var (
		log          types.MaintenanceLog
		startTime    sql.NullString
		endTime      sql.NullString
		outcome      sql.NullString
		performerNm  sql.NullString
		performerUsr sql.NullString
	)
	if err := row.Scan(
		&log.ID,
		&log.ServerName,
		&log.MaintenanceDate,
		&startTime,
		&endTime,
		&log.Description,
		&log.MaintenanceType,
		&log.Status,
		&outcome,
		&log.PerformedBy,
		&log.CreatedAt,
		&log.UpdatedAt,
		&performerNm,
		&performerUsr,
	); err != nil {
		return types.MaintenanceLog{}, err
	}

	var err error
	if log.StartTime, err = nullTimeOfDay(startTime); err != nil {
		return types.MaintenanceLog{}, err
	}
	if log.EndTime, err = nullTimeOfDay(endTime); err != nil {
		return types.MaintenanceLog{}, err
	}
	log.Outcome = nullStringPtr(outcome)
	log.PerformedByName = nullStringPtr(performerNm)
	log.PerformedByUsername = nullStringPtr(performerUsr)
	return log, nil
}

func nullTimeOfDay(v sql.NullString) (*types.TimeOfDay, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := types.ParseTimeOfDay(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timeOfDayArg(t *types.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r *MaintenanceLogRepository) collect(ctx context.Context, query string, args ...any) ([]types.MaintenanceLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]types.MaintenanceLog, 0)
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// Create inserts a log performed by performedBy and returns it with its id.
func (r *MaintenanceLogRepository) Create(ctx context.Context, input types.LogInput, performedBy int) (types.MaintenanceLog, error) {
	now := time.Now()
	log := types.MaintenanceLog{
		ServerName:      input.ServerName,
		MaintenanceDate: input.MaintenanceDate,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		Description:     input.Description,
		MaintenanceType: input.MaintenanceType,
		Status:          input.Status,
		Outcome:         input.Outcome,
		PerformedBy:     performedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	const query = `
		INSERT INTO maintenance_logs (server_name, maintenance_date, start_time, end_time, description,
			maintenance_type, status, outcome, performed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		log.ServerName,
		dateOnly(log.MaintenanceDate),
		timeOfDayArg(log.StartTime),
		timeOfDayArg(log.EndTime),
		log.Description,
		string(log.MaintenanceType),
		string(log.Status),
		stringArg(log.Outcome),
		log.PerformedBy,
		log.CreatedAt,
		log.UpdatedAt,
	).Scan(&log.ID); err != nil {
		return types.MaintenanceLog{}, translateError(err)
	}
	return log, nil
}

func (r *MaintenanceLogRepository) GetByID(ctx context.Context, id int) (types.MaintenanceLog, error) {
	const query = logSelect + ` WHERE ml.id = $1`
	log, err := scanLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MaintenanceLog{}, ErrNotFound
		}
		return types.MaintenanceLog{}, err
	}
	return log, nil
}

// List returns the logs matching filter in the requested order.
func (r *MaintenanceLogRepository) List(ctx context.Context, filter types.LogFilter, page types.Page, orderBy string, dir types.OrderDir) ([]types.MaintenanceLog, error) {
	where := logFilterWhere(filter)
	clause, args := pageClause(page, where.args)
	query := logSelect + where.String() + orderClause(orderBy, dir) + clause
	return r.collect(ctx, query, args...)
}

// Count returns the number of logs matching filter.
func (r *MaintenanceLogRepository) Count(ctx context.Context, filter types.LogFilter) (int, error) {
	where := logFilterWhere(filter)
	query := `SELECT COUNT(*) FROM maintenance_logs ml` + where.String()
	var total int
	if err := r.db.QueryRowContext(ctx, query, where.args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Update replaces the mutable fields of a log and refreshes updated_at.
// performed_by and created_at are never touched.
func (r *MaintenanceLogRepository) Update(ctx context.Context, id int, input types.LogInput) error {
	const query = `
		UPDATE maintenance_logs
		SET server_name = $1,
			maintenance_date = $2,
			start_time = $3,
			end_time = $4,
			description = $5,
			maintenance_type = $6,
			status = $7,
			outcome = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		input.ServerName,
		dateOnly(input.MaintenanceDate),
		timeOfDayArg(input.StartTime),
		timeOfDayArg(input.EndTime),
		input.Description,
		string(input.MaintenanceType),
		string(input.Status),
		stringArg(input.Outcome),
		time.Now(),
		id,
	)
	if err != nil {
		return translateError(err)
	}
	return expectAffected(result)
}

func (r *MaintenanceLogRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM maintenance_logs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ServerNames returns the distinct server names in alphabetical order.
func (r *MaintenanceLogRepository) ServerNames(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT server_name FROM maintenance_logs ORDER BY server_name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// Statistics aggregates the whole table. Logs dated on or after recentSince
// count as recent; later dates are not capped.
func (r *MaintenanceLogRepository) Statistics(ctx context.Context, recentSince time.Time) (types.Statistics, error) {
	stats := types.Statistics{
		ByStatus: make([]types.StatusCount, 0),
		ByType:   make([]types.TypeCount, 0),
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM maintenance_logs`).Scan(&stats.TotalLogs); err != nil {
		return types.Statistics{}, fmt.Errorf("count logs: %w", err)
	}

	statusRows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM maintenance_logs GROUP BY status ORDER BY status`)
	if err != nil {
		return types.Statistics{}, fmt.Errorf("count by status: %w", err)
	}
	for statusRows.Next() {
		var sc types.StatusCount
		if err := statusRows.Scan(&sc.Status, &sc.Count); err != nil {
			statusRows.Close()
			return types.Statistics{}, err
		}
		stats.ByStatus = append(stats.ByStatus, sc)
	}
	statusRows.Close()
	if err := statusRows.Err(); err != nil {
		return types.Statistics{}, err
	}

	typeRows, err := r.db.QueryContext(ctx, `SELECT maintenance_type, COUNT(*) FROM maintenance_logs GROUP BY maintenance_type ORDER BY maintenance_type`)
	if err != nil {
		return types.Statistics{}, fmt.Errorf("count by type: %w", err)
	}
	for typeRows.Next() {
		var tc types.TypeCount
		if err := typeRows.Scan(&tc.MaintenanceType, &tc.Count); err != nil {
			typeRows.Close()
			return types.Statistics{}, err
		}
		stats.ByType = append(stats.ByType, tc)
	}
	typeRows.Close()
	if err := typeRows.Err(); err != nil {
		return types.Statistics{}, err
	}

	const recentQuery = `SELECT COUNT(*) FROM maintenance_logs WHERE maintenance_date >= $1`
	if err := r.db.QueryRowContext(ctx, recentQuery, dateOnly(recentSince)).Scan(&stats.RecentLogs); err != nil {
		return types.Statistics{}, fmt.Errorf("count recent logs: %w", err)
	}
	return stats, nil
}

// Search matches term as a case-insensitive substring of the server name,
// description, outcome or performer name. Newest maintenance first.
func (r *MaintenanceLogRepository) Search(ctx context.Context, term string, page types.Page) ([]types.MaintenanceLog, error) {
	args := []any{containsPattern(term)}
	clause, args := pageClause(page, args)
	query := logSelect + searchPredicate + ` ORDER BY ml.maintenance_date DESC, ml.id DESC` + clause
	return r.collect(ctx, query, args...)
}

// SearchCount counts the rows Search would return without pagination.
func (r *MaintenanceLogRepository) SearchCount(ctx context.Context, term string) (int, error) {
	query := `SELECT COUNT(*) FROM maintenance_logs ml LEFT JOIN users u ON u.id = ml.performed_by` + searchPredicate
	var total int
	if err := r.db.QueryRowContext(ctx, query, containsPattern(term)).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
