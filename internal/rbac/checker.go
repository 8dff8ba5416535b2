// Package rbac maps roles to permissions for the HTTP layer. The core
// packages never consult it.
package rbac

import (
	"context"
	"strings"
)

// Policy lists the permissions granted to each role. A permission ending
// in "*" grants every permission with that prefix.
type Policy map[string][]string

func (p Policy) Has(role, perm string) bool {
	for _, granted := range p[role] {
		if granted == "*" || granted == perm {
			return true
		}
		if prefix, ok := strings.CutSuffix(granted, "*"); ok && strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

func (p Policy) Any(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Has(role, perm) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(ctxKey{}).(string)
	return role
}
