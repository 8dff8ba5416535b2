package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyHas(t *testing.T) {
	c := Default
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"candidate", "session:start", true},
		{"candidate", "test:create", false},
		{"author", "test:publish", true},
		{"author", "session:admin", false},
		{"admin", "session:admin", true},
		{"nobody", "test:view", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Has(tc.role, tc.perm), "%s/%s", tc.role, tc.perm)
	}
	assert.True(t, c.Any("candidate", "session:view-all", "session:view-own"))
}

func TestRequire(t *testing.T) {
	h := Require("test:create")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{"author": 204, "candidate": 403, "": 403} {
		r := httptest.NewRequest(http.MethodPost, "/tests", nil)
		r = r.WithContext(WithRole(r.Context(), role))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code, role)
	}
}
