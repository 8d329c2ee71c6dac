package role

import (
	"testing"

	"github.com/hitoshi/salonlink/internal/model"
)

func TestDashboardPath(t *testing.T) {
	tests := []struct {
		role model.Role
		want string
	}{
		{model.RoleAdmin, "/dashboard/admin"},
		{model.RoleStylist, "/dashboard/stylist"},
		{model.RoleClient, "/dashboard/client"},
		{"", "/dashboard/client"},
		{"owner", "/dashboard/client"},
	}

	for _, tt := range tests {
		if got := DashboardPath(tt.role); got != tt.want {
			t.Errorf("DashboardPath(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestResolve_ProfileRoleWins(t *testing.T) {
	profile := &model.UserProfile{ID: "u1", Role: model.RoleAdmin}
	user := &model.AuthUser{ID: "u1", Metadata: map[string]any{"role": "stylist"}}

	if got := Resolve(profile, user); got != model.RoleAdmin {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleAdmin)
	}
}

func TestResolve_FallsBackToMetadata(t *testing.T) {
	user := &model.AuthUser{ID: "u1", Metadata: map[string]any{"role": "Stylist"}}

	if got := Resolve(nil, user); got != model.RoleStylist {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleStylist)
	}
}

func TestResolve_UnknownProfileRoleFallsBackToMetadata(t *testing.T) {
	profile := &model.UserProfile{ID: "u1", Role: "superuser"}
	user := &model.AuthUser{ID: "u1", Metadata: map[string]any{"role": "stylist"}}

	if got := Resolve(profile, user); got != model.RoleStylist {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleStylist)
	}
}

func TestResolve_MetadataAdminRequiresAppMetadata(t *testing.T) {
	user := &model.AuthUser{ID: "u1", Metadata: map[string]any{"role": "admin"}}
	if got := Resolve(nil, user); got != model.RoleClient {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleClient)
	}

	user.AppMetadata = map[string]any{"role": "admin"}
	if got := Resolve(nil, user); got != model.RoleAdmin {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleAdmin)
	}
}

func TestResolve_DefaultsToClient(t *testing.T) {
	if got := Resolve(nil, nil); got != model.RoleClient {
		t.Errorf("Resolve(nil, nil) = %q, want %q", got, model.RoleClient)
	}

	user := &model.AuthUser{ID: "u1", Metadata: map[string]any{"role": 42}}
	if got := Resolve(nil, user); got != model.RoleClient {
		t.Errorf("Resolve() = %q, want %q", got, model.RoleClient)
	}
}
