package types

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// MaintenanceType classifies the kind of work performed.
type MaintenanceType string

const (
	TypeRoutine   MaintenanceType = "routine"
	TypeEmergency MaintenanceType = "emergency"
	TypeUpgrade   MaintenanceType = "upgrade"
	TypeRepair    MaintenanceType = "repair"
	TypeSecurity  MaintenanceType = "security"
)

// MaintenanceTypes lists every maintenance type in display order.
var MaintenanceTypes = []MaintenanceType{TypeRoutine, TypeEmergency, TypeUpgrade, TypeRepair, TypeSecurity}

func (t MaintenanceType) Valid() bool {
	for _, known := range MaintenanceTypes {
		if t == known {
			return true
		}
	}
	return false
}

func ParseMaintenanceType(raw string) (MaintenanceType, error) {
	t := MaintenanceType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown maintenance type %q", raw)
	}
	return t, nil
}

// Status is the lifecycle state of a maintenance activity.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// MaintenanceLog is a single maintenance activity on a named server.
type MaintenanceLog struct {
	// ID is the unique identifier of the log.
	ID int `json:"id" db:"id"`

	// ServerName is free text identifying the machine.
	ServerName string `json:"server_name" db:"server_name"`

	// MaintenanceDate is the calendar date of the activity (time part is zero, UTC).
	MaintenanceDate time.Time `json:"maintenance_date" db:"maintenance_date"`

	// StartTime and EndTime are optional wall-clock times. No ordering between
	// them is enforced.
	StartTime *TimeOfDay `json:"start_time,omitempty" db:"start_time"`
	EndTime   *TimeOfDay `json:"end_time,omitempty" db:"end_time"`

	// Description of the work. Required.
	Description string `json:"description" db:"description"`

	MaintenanceType MaintenanceType `json:"maintenance_type" db:"maintenance_type"`
	Status          Status          `json:"status" db:"status"`

	// Outcome is an optional free-text result.
	Outcome *string `json:"outcome,omitempty" db:"outcome"`

	// PerformedBy is the id of the user who created the log. It never changes.
	PerformedBy int `json:"performed_by" db:"performed_by"`

	// PerformedByName and PerformedByUsername come from the performer's user
	// row and are nil when that row is missing.
	PerformedByName     *string `json:"performed_by_name,omitempty" db:"performed_by_name"`
	PerformedByUsername *string `json:"performed_by_username,omitempty" db:"performed_by_username"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LogInput carries the mutable fields of a maintenance log.
type LogInput struct {
	ServerName      string
	MaintenanceDate time.Time
	StartTime       *TimeOfDay
	EndTime         *TimeOfDay
	Description     string
	MaintenanceType MaintenanceType
	Status          Status
	Outcome         *string
}

// LogFilter selects maintenance logs. Nil fields are not applied; set fields
// are combined with AND.
type LogFilter struct {
	// ServerName matches as a case-insensitive substring.
	ServerName *string

	Status          *Status
	MaintenanceType *MaintenanceType

	// DateFrom and DateTo bound maintenance_date, both inclusive.
	DateFrom *time.Time
	DateTo   *time.Time

	PerformedBy *int
}

// Page limits a listing. A nil Limit returns every row from Offset on.
type Page struct {
	Limit  *int
	Offset int
}

// NewPage builds a bounded page.
func NewPage(limit, offset int) Page {
	return Page{Limit: &limit, Offset: offset}
}

// OrderDir is the sort direction of a listing.
type OrderDir string

const (
	OrderAsc  OrderDir = "ASC"
	OrderDesc OrderDir = "DESC"
)

// StatusCount is the number of logs in a status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// TypeCount is the number of logs of a maintenance type.
type TypeCount struct {
	MaintenanceType MaintenanceType `json:"maintenance_type"`
	Count           int             `json:"count"`
}

// Statistics aggregates the whole log table.
type Statistics struct {
	TotalLogs  int           `json:"total_logs"`
	ByStatus   []StatusCount `json:"by_status"`
	ByType     []TypeCount   `json:"by_type"`
	RecentLogs int           `json:"recent_logs"`
}
