package rbac

import "testing"

func TestCanAssignRole(t *testing.T) {
	c := NewCatalog()

	cases := []struct {
		name    string
		grantor []string
		target  string
		want    bool
	}{
		{"owner assigns owner", []string{RoleOwner}, RoleOwner, true},
		{"manager cannot assign owner", []string{RoleManager}, RoleOwner, false},
		{"hr cannot assign owner", []string{RoleHRLead}, RoleOwner, false},
		{"owner assigns anything", []string{RoleOwner}, RoleHRLead, true},
		{"manager assigns supervisor", []string{RoleManager}, RoleSupervisor, true},
		{"manager assigns seller", []string{RoleManager}, RoleSeller, true},
		{"manager cannot assign hr lead", []string{RoleManager}, RoleHRLead, false},
		{"hr assigns manager", []string{RoleHR}, RoleManager, true},
		{"hr lead assigns support", []string{RoleHRLead}, RoleSupport, true},
		{"supervisor assigns installer", []string{RoleSupervisor}, RoleInstaller, true},
		{"supervisor assigns trainer", []string{RoleSupervisor}, RoleTrainer, true},
		{"supervisor cannot assign supervisor", []string{RoleSupervisor}, RoleSupervisor, false},
		{"seller assigns nothing", []string{RoleSeller}, RoleInstaller, false},
		{"empty grantor", nil, RoleSeller, false},
		{"unknown role assigns nothing", []string{"Contador"}, RoleSeller, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.CanAssignRole(tc.grantor, tc.target); got != tc.want {
				t.Fatalf("CanAssignRole(%v, %q) = %v, want %v", tc.grantor, tc.target, got, tc.want)
			}
		})
	}
}

func TestIsAdminRole(t *testing.T) {
	c := NewCatalog()
	if !c.IsAdminRole(RoleOwner) || !c.IsAdminRole(RoleManager) {
		t.Fatalf("admin tier roles not recognized")
	}
	if c.IsAdminRole(RoleSupervisor) || c.IsAdminRole("") {
		t.Fatalf("non-admin role recognized as admin")
	}
}

func TestPermittedRolesUnknownModule(t *testing.T) {
	c := NewCatalog()
	if got := c.PermittedRoles("inventario"); len(got) != 0 {
		t.Fatalf("unknown module should permit no roles, got %v", got)
	}
}
