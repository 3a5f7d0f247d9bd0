package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRolePrecedence(t *testing.T) {
	tests := []struct {
		name        string
		isSuperuser bool
		groups      []string
		want        Role
	}{
		{"superuser wins over everything", true, []string{GroupTechnician}, RoleAdmin},
		{"admin group", false, []string{GroupAdmin}, RoleAdmin},
		{"admin beats dispatcher", false, []string{GroupDispatcher, GroupAdmin}, RoleAdmin},
		{"dispatcher beats technician", false, []string{GroupTechnician, GroupDispatcher}, RoleDispatcher},
		{"technician", false, []string{GroupTechnician}, RoleTechnician},
		{"unknown group falls through", false, []string{"accounting"}, RoleReporter},
		{"no groups", false, nil, RoleReporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRole(tt.isSuperuser, tt.groups))
		})
	}
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleReporter, RoleFor(nil))

	u := &User{IsSuperuser: false, Groups: []string{GroupDispatcher}}
	assert.Equal(t, RoleDispatcher, RoleFor(u))
}

func TestInGroup(t *testing.T) {
	u := &User{Groups: []string{GroupTechnician}}
	assert.True(t, u.InGroup(GroupTechnician))
	assert.False(t, u.InGroup(GroupAdmin))
}
