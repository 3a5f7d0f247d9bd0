package domain

// Role is the single authorization role derived for an actor. Every actor
// maps to exactly one role; resolution happens once per request and the
// result is passed explicitly through all subsequent calls.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleTechnician Role = "technician"
	RoleReporter   Role = "reporter"
)

const (
	GroupAdmin      = "admin"
	GroupDispatcher = "dispatcher"
	GroupTechnician = "technician"
)

// ResolveRole derives the role for a directory record. Superuser or admin
// group wins, then dispatcher, then technician; everyone else is a reporter.
func ResolveRole(isSuperuser bool, groups []string) Role {
	if isSuperuser {
		return RoleAdmin
	}
	has := func(name string) bool {
		for _, g := range groups {
			if g == name {
				return true
			}
		}
		return false
	}
	switch {
	case has(GroupAdmin):
		return RoleAdmin
	case has(GroupDispatcher):
		return RoleDispatcher
	case has(GroupTechnician):
		return RoleTechnician
	default:
		return RoleReporter
	}
}

// RoleFor derives the role for a user record.
func RoleFor(u *User) Role {
	if u == nil {
		return RoleReporter
	}
	return ResolveRole(u.IsSuperuser, u.Groups)
}
