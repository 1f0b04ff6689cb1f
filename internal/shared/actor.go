package shared

import "context"

// Role enumerates workflow actor roles recognised by transition guards.
type Role string

const (
	// RoleStoreManager manages college store stock and dispatches.
	RoleStoreManager Role = "store_manager"
	// RoleCollegeAdmin approves indents at the college tier.
	RoleCollegeAdmin Role = "college_admin"
	// RoleSuperAdmin approves indents at the final tier.
	RoleSuperAdmin Role = "super_admin"
	// RoleCentralStore operates the central store and procurement documents.
	RoleCentralStore Role = "central_store"
	// RoleInspector performs quality inspection on goods receipts.
	RoleInspector Role = "inspector"
	// RoleProcurementOfficer manages requirements, quotations and POs.
	RoleProcurementOfficer Role = "procurement_officer"
)

// IsValid reports whether the role is one of the known workflow roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStoreManager, RoleCollegeAdmin, RoleSuperAdmin, RoleCentralStore, RoleInspector, RoleProcurementOfficer:
		return true
	default:
		return false
	}
}

// Actor identifies the user performing a transition. Authentication is
// external; the workflow core only pattern-matches the role.
type Actor struct {
	ID   int64
	Role Role
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The second return is
// false when no actor was set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
