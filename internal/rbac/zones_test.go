package rbac

import (
	"errors"
	"testing"
)

func TestRequiresZoneRestriction(t *testing.T) {
	p := NewZonePolicy()
	cases := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"supervisor restricted", []string{RoleSupervisor}, true},
		{"seller restricted", []string{RoleSeller}, true},
		{"owner exempt", []string{RoleOwner}, false},
		{"exemption dominates", []string{RoleManager, RoleSupervisor}, false},
		{"hr neither", []string{RoleHR}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.RequiresZoneRestriction(tc.roles); got != tc.want {
				t.Fatalf("RequiresZoneRestriction(%v) = %v, want %v", tc.roles, got, tc.want)
			}
		})
	}
}

func TestEnforceZone(t *testing.T) {
	p := NewZonePolicy()

	zone, err := p.EnforceZone([]string{RoleSupervisor}, "NG", "CT")
	if err != nil || zone != "NG" {
		t.Fatalf("identity zone should override requested zone, got %q, err %v", zone, err)
	}

	_, err = p.EnforceZone([]string{RoleSeller}, "", "CT")
	if !errors.Is(err, ErrZoneNotAssigned) {
		t.Fatalf("missing identity zone should fail closed, got %v", err)
	}

	zone, err = p.EnforceZone([]string{RoleOwner}, "", "CT")
	if err != nil || zone != "CT" {
		t.Fatalf("exempt roles keep the requested zone, got %q, err %v", zone, err)
	}
}

func TestClearZoneIfExempt(t *testing.T) {
	p := NewZonePolicy()
	if got := p.ClearZoneIfExempt([]string{RoleManager}, "NG"); got != "" {
		t.Fatalf("exempt role should carry a cleared zone, got %q", got)
	}
	if got := p.ClearZoneIfExempt([]string{RoleSupervisor}, "NG"); got != "NG" {
		t.Fatalf("restricted role should keep zone, got %q", got)
	}
}
