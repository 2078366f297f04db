package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/auth/login":                    "/v1/auth/login",
		"/v1/tenants/acme/workflows":        "/v1/tenants/:id/workflows",
		"/v1/tenants/acme/stats":            "/v1/tenants/:id/stats",
		"/v1/users/01J5X2/deactivate":       "/v1/users/:id/deactivate",
		"/v1/tenants/acme/stats?limit=10":   "/v1/tenants/:id/stats",
		"/v1/auth/me":                       "/v1/auth/me",
		"/healthz":                          "/healthz",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
