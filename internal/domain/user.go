package domain

import "time"

// User is an account in the identity directory. Group membership plus the
// superuser flag determine the single role the resolver derives.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	Groups       []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InGroup reports whether the user belongs to the named group.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}
