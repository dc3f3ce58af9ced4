package rbac

// Staff role names as provisioned by the identity provider. Unknown names
// simply resolve to no permission anywhere in this package.
const (
	RoleOwner       = "AexfyOwner"
	RoleManager     = "Gerente"
	RoleHRLead      = "Jefe RRHH"
	RoleHR          = "RRHH"
	RoleSupportLead = "Jefe de soporte"
	RoleSupport     = "Soporte"
	RoleSupervisor  = "Supervisor"
	RoleSeller      = "Vendedor"
	RoleTrainer     = "Capacitador"
	RoleInstaller   = "Instalador"
)

// Module keys gated by the permission matrix.
const (
	ModuleStaff     = "staff"
	ModuleUsers     = "usuarios"
	ModuleCompanies = "empresas"
	ModuleRequests  = "solicitudes"
	ModuleAudit     = "auditoria"
	ModuleReports   = "reportes"
	ModuleTerminal  = "terminal"
)

// RoleSet is an immutable set of role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role names, dropping empties.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Intersects reports whether any of the given roles is in the set.
func (s RoleSet) Intersects(roles []string) bool {
	for _, r := range roles {
		if _, ok := s[r]; ok {
			return true
		}
	}
	return false
}

// Contains reports whether the role is in the set.
func (s RoleSet) Contains(role string) bool {
	_, ok := s[role]
	return ok
}

func union(sets ...RoleSet) RoleSet {
	out := RoleSet{}
	for _, s := range sets {
		for r := range s {
			out[r] = struct{}{}
		}
	}
	return out
}

// Catalog holds the static role classification tables. It is built once at
// process start and never mutated afterwards, so it is safe to share across
// goroutines without locking.
type Catalog struct {
	admin       RoleSet
	hr          RoleSet
	support     RoleSet
	supervision RoleSet
	commercial  RoleSet
	install     RoleSet

	modules map[string]RoleSet

	// operational roles a mid-tier grantor may hand out
	operational RoleSet
}

// NewCatalog constructs the catalog with the fixed AEXFY role tables.
func NewCatalog() *Catalog {
	c := &Catalog{
		admin:       NewRoleSet(RoleOwner, RoleManager),
		hr:          NewRoleSet(RoleHRLead, RoleHR),
		support:     NewRoleSet(RoleSupportLead, RoleSupport),
		supervision: NewRoleSet(RoleSupervisor),
		commercial:  NewRoleSet(RoleSeller, RoleTrainer),
		install:     NewRoleSet(RoleInstaller),
		operational: NewRoleSet(RoleSupervisor, RoleInstaller, RoleSeller, RoleTrainer),
	}
	c.modules = map[string]RoleSet{
		ModuleStaff:     union(c.admin, c.hr, c.supervision),
		ModuleUsers:     union(c.admin, c.hr, c.supervision),
		ModuleCompanies: union(c.admin, c.supervision, c.commercial),
		ModuleRequests:  union(c.admin, c.hr, c.supervision),
		ModuleAudit:     union(c.admin, c.support),
		ModuleReports:   union(c.admin),
		ModuleTerminal:  union(c.admin),
	}
	return c
}

// PermittedRoles returns the roles allowed into a module. Unknown modules
// return an empty set.
func (c *Catalog) PermittedRoles(module string) RoleSet {
	return c.modules[module]
}

// IsAdminRole reports whether the role belongs to the admin tier that
// bypasses every module check.
func (c *Catalog) IsAdminRole(role string) bool {
	return c.admin.Contains(role)
}

// AdminRoles returns the admin tier set.
func (c *Catalog) AdminRoles() RoleSet { return c.admin }

// CanAssignRole reports whether any of the grantor's roles may assign the
// target staff role. The order of the checks encodes the tier hierarchy:
// only the owner can mint another owner, the owner can mint anything,
// managers and supervisors are limited to operational roles, and the HR
// class can mint anything below owner.
func (c *Catalog) CanAssignRole(grantorRoles []string, target string) bool {
	if target == RoleOwner {
		return containsRole(grantorRoles, RoleOwner)
	}
	if containsRole(grantorRoles, RoleOwner) {
		return true
	}
	if containsRole(grantorRoles, RoleManager) {
		return c.operational.Contains(target)
	}
	if c.hr.Intersects(grantorRoles) {
		return true
	}
	if c.admin.Intersects(grantorRoles) {
		return true
	}
	if c.supervision.Intersects(grantorRoles) {
		return target == RoleInstaller || target == RoleSeller || target == RoleTrainer
	}
	return false
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
