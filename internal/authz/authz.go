// Package authz decides what a session may do with maintenance logs and
// user accounts. Every decision is a pure function of its inputs.
package authz

import (
	"errors"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// ErrAccessDenied is returned when an authenticated session lacks permission.
var ErrAccessDenied = errors.New("access denied")

// CanView allows any authenticated session to read any log.
func CanView(s session.Session, _ types.MaintenanceLog) bool {
	return s.IsAuthenticated()
}

// CanEditOrDelete allows admins, and the user who performed the log.
func CanEditOrDelete(s session.Session, log types.MaintenanceLog) bool {
	if !s.IsAuthenticated() {
		return false
	}
	return s.Role == types.RoleAdmin || s.UserID == log.PerformedBy
}

// CanManageUsers allows admins only.
func CanManageUsers(s session.Session) bool {
	return s.IsAdmin()
}

// RequireAuthenticated returns session.ErrNotAuthenticated for anonymous sessions.
func RequireAuthenticated(s session.Session) error {
	if !s.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}

func RequireView(s session.Session, log types.MaintenanceLog) error {
	if err := RequireAuthenticated(s); err != nil {
		return err
	}
	if !CanView(s, log) {
		return ErrAccessDenied
	}
	return nil
}

func RequireEditOrDelete(s session.Session, log types.MaintenanceLog) error {
	if err := RequireAuthenticated(s); err != nil {
		return err
	}
	if !CanEditOrDelete(s, log) {
		return ErrAccessDenied
	}
	return nil
}

func RequireManageUsers(s session.Session) error {
	if err := RequireAuthenticated(s); err != nil {
		return err
	}
	if !CanManageUsers(s) {
		return ErrAccessDenied
	}
	return nil
}

// CanExport allows admins to export the log table.
func CanExport(s session.Session) bool {
	return s.IsAdmin()
}

func RequireExport(s session.Session) error {
	if err := RequireAuthenticated(s); err != nil {
		return err
	}
	if !CanExport(s) {
		return ErrAccessDenied
	}
	return nil
}
