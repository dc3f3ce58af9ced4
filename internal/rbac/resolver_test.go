package rbac

import "testing"

func newResolver() *Resolver {
	return NewResolver(NewCatalog())
}

func TestHasModuleAccessAdminBypassesEverything(t *testing.T) {
	r := newResolver()
	modules := []string{
		ModuleStaff, ModuleUsers, ModuleCompanies, ModuleRequests,
		ModuleAudit, ModuleReports, ModuleTerminal, "desconocido",
	}
	for _, admin := range []string{RoleOwner, RoleManager} {
		for _, m := range modules {
			if !r.HasModuleAccess([]string{admin}, m) {
				t.Fatalf("admin role %q denied module %q", admin, m)
			}
		}
	}
}

func TestHasModuleAccess(t *testing.T) {
	r := newResolver()
	cases := []struct {
		name   string
		roles  []string
		module string
		want   bool
	}{
		{"hr enters staff", []string{RoleHR}, ModuleStaff, true},
		{"seller enters companies", []string{RoleSeller}, ModuleCompanies, true},
		{"seller denied staff", []string{RoleSeller}, ModuleStaff, false},
		{"support enters audit", []string{RoleSupport}, ModuleAudit, true},
		{"support denied requests", []string{RoleSupport}, ModuleRequests, false},
		{"supervisor enters requests", []string{RoleSupervisor}, ModuleRequests, true},
		{"only admin enters terminal", []string{RoleHRLead, RoleSupervisor}, ModuleTerminal, false},
		{"empty role set", nil, ModuleStaff, false},
		{"unknown roles", []string{"Contador", "Bodeguero"}, ModuleUsers, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.HasModuleAccess(tc.roles, tc.module); got != tc.want {
				t.Fatalf("HasModuleAccess(%v, %q) = %v, want %v", tc.roles, tc.module, got, tc.want)
			}
		})
	}
}

func TestActionPredicates(t *testing.T) {
	r := newResolver()

	if !r.CanBulkEditUsers([]string{RoleHR}) {
		t.Fatalf("HR should bulk edit users")
	}
	if r.CanBulkEditUsers([]string{RoleSupervisor}) {
		t.Fatalf("supervisor should not bulk edit users")
	}
	if !r.CanDeleteUsers([]string{RoleSupportLead}) {
		t.Fatalf("support lead should delete users")
	}
	if r.CanDeleteUsers([]string{RoleSeller}) {
		t.Fatalf("seller should not delete users")
	}
	if !r.CanEditCompanies([]string{RoleSupervisor}) {
		t.Fatalf("supervisor should edit companies")
	}
	if r.CanEditCompanies([]string{RoleHRLead}) {
		t.Fatalf("HR lead should not edit companies")
	}
	if r.CanBulkEditCompanies([]string{RoleSeller}) {
		t.Fatalf("seller should not bulk edit companies")
	}
	if !r.CanDeleteCompanies([]string{RoleManager}) {
		t.Fatalf("manager should delete companies")
	}
}

func TestRequiresApproval(t *testing.T) {
	r := newResolver()
	cases := []struct {
		roles []string
		want  bool
	}{
		{[]string{RoleOwner}, false},
		{[]string{RoleManager}, false},
		{[]string{RoleHRLead}, false},
		{[]string{RoleSupportLead}, false},
		{[]string{RoleHR}, true},
		{[]string{RoleSupervisor}, true},
		{[]string{RoleSeller}, true},
		{[]string{RoleSeller, RoleHRLead}, false},
		{nil, true},
	}
	for _, tc := range cases {
		if got := r.RequiresApproval(tc.roles); got != tc.want {
			t.Fatalf("RequiresApproval(%v) = %v, want %v", tc.roles, got, tc.want)
		}
	}
}
