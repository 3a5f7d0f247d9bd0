package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirmex/helpdesk/internal/domain"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

func TestAllowedMatrix(t *testing.T) {
	mine := Ownership{IsReporter: true}
	assigned := Ownership{IsTechnician: true}
	none := Ownership{}

	tests := []struct {
		name   string
		role   domain.Role
		own    Ownership
		action Action
		want   bool
	}{
		{"admin bypass edit", domain.RoleAdmin, none, ActionBypassEdit, true},
		{"admin manage users", domain.RoleAdmin, none, ActionManageUsers, true},
		{"admin comment anywhere", domain.RoleAdmin, none, ActionComment, true},

		{"dispatcher assign", domain.RoleDispatcher, none, ActionAssign, true},
		{"dispatcher change status", domain.RoleDispatcher, none, ActionChangeStatus, true},
		{"dispatcher reports", domain.RoleDispatcher, none, ActionViewReports, true},
		{"dispatcher equipment", domain.RoleDispatcher, none, ActionManageEquipment, true},
		{"dispatcher no bypass edit", domain.RoleDispatcher, none, ActionBypassEdit, false},
		{"dispatcher no user management", domain.RoleDispatcher, none, ActionManageUsers, false},

		{"technician status on own assignment", domain.RoleTechnician, assigned, ActionChangeStatus, true},
		{"technician status on foreign ticket", domain.RoleTechnician, none, ActionChangeStatus, false},
		{"technician comment on own assignment", domain.RoleTechnician, assigned, ActionComment, true},
		{"technician comment on foreign ticket", domain.RoleTechnician, none, ActionComment, false},
		{"technician no assign", domain.RoleTechnician, assigned, ActionAssign, false},
		{"technician no reports", domain.RoleTechnician, assigned, ActionViewReports, false},

		{"reporter create", domain.RoleReporter, none, ActionCreateTicket, true},
		{"reporter comment on own", domain.RoleReporter, mine, ActionComment, true},
		{"reporter comment on foreign", domain.RoleReporter, none, ActionComment, false},
		{"reporter no status change", domain.RoleReporter, mine, ActionChangeStatus, false},
		{"reporter no assign", domain.RoleReporter, mine, ActionAssign, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.role, tt.own, tt.action))
		})
	}
}

func TestAuthorize(t *testing.T) {
	err := Authorize(domain.RoleReporter, Ownership{}, ActionAssign)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	assert.NoError(t, Authorize(domain.RoleAdmin, Ownership{}, ActionAssign))
}

func TestVisibleScope(t *testing.T) {
	actorID := "actor-1"

	assert.True(t, VisibleScope(domain.RoleAdmin, actorID).Unrestricted())
	assert.True(t, VisibleScope(domain.RoleDispatcher, actorID).Unrestricted())

	techScope := VisibleScope(domain.RoleTechnician, actorID)
	assert.False(t, techScope.Unrestricted())
	assert.Equal(t, actorID, *techScope.TechnicianID)
	assert.Nil(t, techScope.ReporterID)

	repScope := VisibleScope(domain.RoleReporter, actorID)
	assert.False(t, repScope.Unrestricted())
	assert.Equal(t, actorID, *repScope.ReporterID)
	assert.Nil(t, repScope.TechnicianID)
}

func TestScopeContains(t *testing.T) {
	actorID := "actor-1"
	otherID := "someone-else"

	reporterTicket := &domain.Ticket{ReporterID: actorID}
	foreignTicket := &domain.Ticket{ReporterID: otherID}
	assignedTicket := &domain.Ticket{ReporterID: otherID, TechnicianID: &actorID}
	unassignedTicket := &domain.Ticket{ReporterID: otherID}

	assert.True(t, VisibleScope(domain.RoleAdmin, actorID).Contains(foreignTicket))

	repScope := VisibleScope(domain.RoleReporter, actorID)
	assert.True(t, repScope.Contains(reporterTicket))
	assert.False(t, repScope.Contains(foreignTicket))

	techScope := VisibleScope(domain.RoleTechnician, actorID)
	assert.True(t, techScope.Contains(assignedTicket))
	assert.False(t, techScope.Contains(unassignedTicket))
	assert.False(t, techScope.Contains(nil))
}
