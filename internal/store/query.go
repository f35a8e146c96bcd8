package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// whereBuilder collects AND-ed predicates and numbers their placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a predicate. The format must contain exactly one %d which is
// replaced by the placeholder index of arg.
func (b *whereBuilder) add(format string, arg any) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, fmt.Sprintf(format, len(b.args)))
}

func (b *whereBuilder) String() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func logFilterWhere(filter types.LogFilter) *whereBuilder {
	b := &whereBuilder{}
	if filter.ServerName != nil && strings.TrimSpace(*filter.ServerName) != "" {
		b.add("ml.server_name ILIKE $%d", containsPattern(*filter.ServerName))
	}
	if filter.Status != nil {
		b.add("ml.status = $%d", string(*filter.Status))
	}
	if filter.MaintenanceType != nil {
		b.add("ml.maintenance_type = $%d", string(*filter.MaintenanceType))
	}
	if filter.DateFrom != nil {
		b.add("ml.maintenance_date >= $%d", dateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		b.add("ml.maintenance_date <= $%d", dateOnly(*filter.DateTo))
	}
	if filter.PerformedBy != nil {
		b.add("ml.performed_by = $%d", *filter.PerformedBy)
	}
	return b
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a user term into a substring LIKE pattern with
// wildcards in the term matched literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

func dateOnly(t time.Time) string {
	return t.Format(types.DateLayout)
}

var logOrderColumns = map[string]string{
	"id":               "ml.id",
	"server_name":      "ml.server_name",
	"maintenance_date": "ml.maintenance_date",
	"start_time":       "ml.start_time",
	"end_time":         "ml.end_time",
	"description":      "ml.description",
	"maintenance_type": "ml.maintenance_type",
	"status":           "ml.status",
	"outcome":          "ml.outcome",
	"performed_by":     "ml.performed_by",
	"created_at":       "ml.created_at",
	"updated_at":       "ml.updated_at",
}

const defaultLogOrder = "maintenance_date"

// orderClause resolves a caller supplied sort key against the column
// whitelist. Unknown columns fall back to maintenance_date, unknown
// directions to DESC.
func orderClause(orderBy string, dir types.OrderDir) string {
	column, ok := logOrderColumns[strings.ToLower(strings.TrimSpace(orderBy))]
	if !ok {
		column = logOrderColumns[defaultLogOrder]
	}
	direction := types.OrderDesc
	if strings.EqualFold(strings.TrimSpace(string(dir)), string(types.OrderAsc)) {
		direction = types.OrderAsc
	}
	return fmt.Sprintf(" ORDER BY %s %s, ml.id %s", column, direction, direction)
}

// pageClause appends LIMIT/OFFSET placeholders after the existing args.
func pageClause(page types.Page, args []any) (string, []any) {
	var clause string
	if page.Limit != nil {
		args = append(args, *page.Limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return clause, args
}
