package auth

import "strings"

type Role string

const (
	// RoleAdmin may create and delete events.
	RoleAdmin Role = "admin"
	// RoleWriter may create events.
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleWriter):
		return RoleWriter
	default:
		return RoleReader
	}
}

func HasRole(role string, allowed ...Role) bool {
	current := NormalizeRole(role)
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}
