package rbac

// Resolver answers permission checks against an immutable matrix.
// It is safe for concurrent use; absence of a permission is not an error.
type Resolver struct {
	matrix Matrix
}

// NewResolver constructs a Resolver over the given matrix.
func NewResolver(matrix Matrix) *Resolver {
	return &Resolver{matrix: matrix}
}

// NewDefaultResolver constructs a Resolver over DefaultMatrix.
func NewDefaultResolver() *Resolver {
	return NewResolver(DefaultMatrix())
}

// HasPermission reports whether role may perform action on resource.
//
// Evaluation order: unknown roles deny; the universal grant (*, ADMIN)
// allows everything; then an exact grant; then ADMIN on the same resource,
// which subsumes every finer action.
func (r *Resolver) HasPermission(role Role, resource Resource, action Action) bool {
	grants, ok := r.matrix[role]
	if !ok {
		return false
	}
	if grants.Has(Grant{ResourceAll, ActionAdmin}) {
		return true
	}
	if grants.Has(Grant{resource, action}) {
		return true
	}
	if grants.Has(Grant{resource, ActionAdmin}) {
		return true
	}
	return false
}
