// Package policy holds the role capability matrix and the visibility scope
// every listing and detail path must apply.
package policy

import (
	"github.com/mirmex/helpdesk/internal/domain"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// Action enumerates the operations the policy gates.
type Action string

const (
	ActionViewAllTickets  Action = "view_all_tickets"
	ActionCreateTicket    Action = "create_ticket"
	ActionAssign          Action = "assign_technician"
	ActionChangeStatus    Action = "change_status"
	ActionBypassEdit      Action = "bypass_edit"
	ActionComment         Action = "comment"
	ActionManageEquipment Action = "manage_equipment"
	ActionManageUsers     Action = "manage_users"
	ActionViewReports     Action = "view_reports"
)

// Ownership describes the actor's relationship to the ticket under
// consideration. Irrelevant for actions that do not target a ticket.
type Ownership struct {
	IsReporter   bool
	IsTechnician bool
}

// Allowed implements the capability matrix. Technicians act only on tickets
// assigned to them; reporters only comment on their own.
func Allowed(role domain.Role, own Ownership, action Action) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleDispatcher:
		switch action {
		case ActionBypassEdit, ActionManageUsers:
			return false
		}
		return true
	case domain.RoleTechnician:
		switch action {
		case ActionChangeStatus:
			return own.IsTechnician
		case ActionComment:
			return own.IsTechnician
		}
		return false
	case domain.RoleReporter:
		switch action {
		case ActionCreateTicket:
			return true
		case ActionComment:
			return own.IsReporter
		}
		return false
	}
	return false
}

// Authorize returns a Forbidden error when the matrix denies the action.
func Authorize(role domain.Role, own Ownership, action Action) error {
	if !Allowed(role, own, action) {
		return apperrors.NewForbidden("action not permitted for role")
	}
	return nil
}

// Scope restricts which tickets an actor may see. A nil pointer pair means
// unrestricted (admin/dispatcher).
type Scope struct {
	ReporterID   *string
	TechnicianID *string
}

// Unrestricted reports whether the scope imposes no filter.
func (s Scope) Unrestricted() bool {
	return s.ReporterID == nil && s.TechnicianID == nil
}

// Contains reports whether the ticket falls inside the scope. Tickets
// outside scope must surface as not found, never forbidden.
func (s Scope) Contains(t *domain.Ticket) bool {
	if t == nil {
		return false
	}
	if s.Unrestricted() {
		return true
	}
	if s.ReporterID != nil && t.ReporterID == *s.ReporterID {
		return true
	}
	if s.TechnicianID != nil && t.TechnicianID != nil && *t.TechnicianID == *s.TechnicianID {
		return true
	}
	return false
}

// VisibleScope derives the listing filter for an actor: admin and dispatcher
// see everything, a technician sees tickets assigned to them, a reporter
// sees tickets they filed.
func VisibleScope(role domain.Role, actorID string) Scope {
	switch role {
	case domain.RoleAdmin, domain.RoleDispatcher:
		return Scope{}
	case domain.RoleTechnician:
		return Scope{TechnicianID: &actorID}
	default:
		return Scope{ReporterID: &actorID}
	}
}
