package auth

import (
	"context"
	"fmt"
	"strings"
)

// Role is a user's position in the approval hierarchy.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
)

var roleRank = map[Role]int{
	RoleEmployee:   1,
	RoleSupervisor: 2,
	RoleManager:    3,
	RoleAdmin:      4,
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks the same as or above min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Principal is the authenticated caller attached to every request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type principalKey struct{}

// WithPrincipal stores p on ctx for code that only sees a context.Context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
