package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/solicitudes":                "/v1/solicitudes",
		"/v1/solicitudes/01ABC":          "/v1/solicitudes/:id",
		"/v1/solicitudes/01ABC/decision": "/v1/solicitudes/:id/decision",
		"/v1/empresas/01XYZ":             "/v1/empresas/:id",
		"/v1/auditoria/01XYZ":            "/v1/auditoria/:id",
		"/v1/staff":                      "/v1/staff",
		"/v1/solicitudes?estado=pending": "/v1/solicitudes",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
