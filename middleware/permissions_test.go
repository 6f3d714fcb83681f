package middleware

import (
	"testing"

	"greenvale_go/models"
)

func TestRoleHasPermission(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		permission string
		expected   bool
	}{
		{name: "admin manages fees", role: models.RoleAdmin, permission: PermManageFees, expected: true},
		{name: "admin records payments", role: models.RoleAdmin, permission: PermRecordPayments, expected: true},
		{name: "teacher assigns homework", role: models.RoleTeacher, permission: PermAssignHomework, expected: true},
		{name: "teacher cannot record payments", role: models.RoleTeacher, permission: PermRecordPayments, expected: false},
		{name: "student views statements", role: models.RoleStudent, permission: PermViewStatements, expected: true},
		{name: "student cannot grade", role: models.RoleStudent, permission: PermGradeHomework, expected: false},
		{name: "guardian views statements", role: models.RoleGuardian, permission: PermViewStatements, expected: true},
		{name: "guardian cannot submit homework", role: models.RoleGuardian, permission: PermSubmitHomework, expected: false},
		{name: "unknown role", role: "owner", permission: PermViewStatements, expected: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleHasPermission(tc.role, tc.permission); got != tc.expected {
				t.Fatalf("RoleHasPermission(%q, %q) = %v, expected %v",
					tc.role, tc.permission, got, tc.expected)
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	adminPerms := PermissionsForRole(models.RoleAdmin)
	if len(adminPerms) == 0 {
		t.Fatal("expected admin to hold permissions")
	}
	for _, p := range adminPerms {
		if !RoleHasPermission(models.RoleAdmin, p) {
			t.Errorf("PermissionsForRole returned %q which RoleHasPermission denies", p)
		}
	}

	if perms := PermissionsForRole("nobody"); perms != nil {
		t.Fatalf("expected nil for unknown role, got %v", perms)
	}
}
