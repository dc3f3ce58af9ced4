package rbac

// Resolver answers module-access and action-level questions for a set of
// roles held by an identity. All predicates are pure functions over the
// static catalog: no I/O, deterministic, safe for concurrent use.
type Resolver struct {
	catalog *Catalog

	bulkUsers    RoleSet
	deleteUsers  RoleSet
	companyEdit  RoleSet
	directCreate RoleSet
}

// NewResolver builds a resolver over the given catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{
		catalog:      catalog,
		bulkUsers:    union(catalog.admin, catalog.hr),
		deleteUsers:  union(catalog.admin, NewRoleSet(RoleSupervisor, RoleHRLead, RoleSupportLead)),
		companyEdit:  union(catalog.admin, catalog.supervision),
		directCreate: NewRoleSet(RoleOwner, RoleManager, RoleSupportLead, RoleHRLead),
	}
}

// HasModuleAccess reports whether the role set may enter the module.
// Admin-tier roles pass every module check. Empty or unrecognized role
// sets resolve to false, never to an error.
func (r *Resolver) HasModuleAccess(roles []string, module string) bool {
	if len(roles) == 0 {
		return false
	}
	if r.catalog.admin.Intersects(roles) {
		return true
	}
	return r.catalog.PermittedRoles(module).Intersects(roles)
}

// CanBulkEditUsers: bulk user mutations are limited to admin and HR.
func (r *Resolver) CanBulkEditUsers(roles []string) bool {
	return r.bulkUsers.Intersects(roles)
}

// CanDeleteUsers: user deletion extends the admin tier with supervisory and
// lead roles.
func (r *Resolver) CanDeleteUsers(roles []string) bool {
	return r.deleteUsers.Intersects(roles)
}

// CanEditCompanies covers single edits, deletions and bulk edits of
// companies with one predicate: admin or supervisory.
func (r *Resolver) CanEditCompanies(roles []string) bool {
	return r.companyEdit.Intersects(roles)
}

// CanDeleteCompanies uses the same criterion as editing.
func (r *Resolver) CanDeleteCompanies(roles []string) bool {
	return r.companyEdit.Intersects(roles)
}

// CanBulkEditCompanies uses the same criterion as editing.
func (r *Resolver) CanBulkEditCompanies(roles []string) bool {
	return r.companyEdit.Intersects(roles)
}

// CanAssignRole delegates to the catalog's assignment partial order.
func (r *Resolver) CanAssignRole(grantorRoles []string, target string) bool {
	return r.catalog.CanAssignRole(grantorRoles, target)
}

// RequiresApproval reports whether a sensitive create operation submitted
// by the role set must be queued for review instead of executing directly.
func (r *Resolver) RequiresApproval(roles []string) bool {
	return !r.directCreate.Intersects(roles)
}
