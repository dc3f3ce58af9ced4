package rbac

import "errors"

// ErrZoneNotAssigned is returned when a zone-restricted identity has no
// zone on record. Zone-scoped operations fail closed on it.
var ErrZoneNotAssigned = errors.New("rbac: zone not assigned")

// ZonePolicy classifies roles into zone-restricted and zone-exempt and
// computes the zone an operation must be confined to. Like the catalog,
// the tables are immutable after construction.
type ZonePolicy struct {
	restricted RoleSet
	exempt     RoleSet
}

// NewZonePolicy constructs the policy with the fixed AEXFY zone tables.
func NewZonePolicy() *ZonePolicy {
	return &ZonePolicy{
		restricted: NewRoleSet(RoleSupervisor, RoleSeller, RoleTrainer, RoleInstaller),
		exempt:     NewRoleSet(RoleOwner, RoleManager),
	}
}

// RequiresZoneRestriction reports whether the role set must operate inside
// a single zone. Exemption dominates: a set holding both an exempt and a
// restricted role is not restricted.
func (p *ZonePolicy) RequiresZoneRestriction(roles []string) bool {
	if len(roles) == 0 {
		return false
	}
	if p.exempt.Intersects(roles) {
		return false
	}
	return p.restricted.Intersects(roles)
}

// EnforceZone resolves the zone a restricted operation must run in. The
// identity's stored zone always wins over a zone supplied in the request
// payload. A restricted identity with no stored zone is refused.
func (p *ZonePolicy) EnforceZone(roles []string, identityZone, requestedZone string) (string, error) {
	if !p.RequiresZoneRestriction(roles) {
		return requestedZone, nil
	}
	if identityZone == "" {
		return "", ErrZoneNotAssigned
	}
	return identityZone, nil
}

// ClearZoneIfExempt drops the zone attribute for zone-exempt role sets so
// that later zone-based filtering never spuriously excludes them.
func (p *ZonePolicy) ClearZoneIfExempt(roles []string, zone string) string {
	if p.exempt.Intersects(roles) {
		return ""
	}
	return zone
}
