package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/auth/login":                    "/v1/auth/login",
		"/v1/users/42":                      "/v1/users/:id",
		"/v1/users/42/roles":                "/v1/users/:id/roles",
		"/v1/users/42/roles/Ranger":         "/v1/users/:id/roles/:role",
		"/v1/users/42/password":             "/v1/users/:id/password",
		"/v1/users/42/roles/Ranger/extra":   "/v1/users/42/roles/Ranger/extra",
		"/v1/users/42/roles?include=counts": "/v1/users/:id/roles",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
