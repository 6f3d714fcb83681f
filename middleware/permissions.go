package middleware

import (
	"greenvale_go/models"

	"github.com/gofiber/fiber/v2"
)

// Permission names guarding route groups. Permissions are resolved through
// an explicit role -> permission-set table rather than switching on role
// names at each call site.
const (
	PermManageUsers      = "users.manage"
	PermViewStudents     = "students.view"
	PermManageStudents   = "students.manage"
	PermManageAcademics  = "academics.manage"
	PermManageFees       = "fees.manage"
	PermRecordPayments   = "payments.record"
	PermViewStatements   = "statements.view"
	PermAssignHomework   = "homework.assign"
	PermGradeHomework    = "homework.grade"
	PermSubmitHomework   = "homework.submit"
	PermSendSMS          = "sms.send"
	PermViewDashboard    = "dashboard.view"
	PermViewActivityLogs = "logs.view"
)

// rolePermissions is the permission table built once at package init.
// Guardians and students only read what concerns them; row-level scoping
// (own fees, own grade's homework) is enforced inside the controllers.
var rolePermissions = map[string]map[string]struct{}{
	models.RoleAdmin: permSet(
		PermManageUsers, PermViewStudents, PermManageStudents,
		PermManageAcademics, PermManageFees, PermRecordPayments,
		PermViewStatements, PermAssignHomework, PermGradeHomework,
		PermSendSMS, PermViewDashboard, PermViewActivityLogs,
	),
	models.RoleTeacher: permSet(
		PermViewStudents, PermAssignHomework, PermGradeHomework,
	),
	models.RoleStudent: permSet(
		PermViewStatements, PermSubmitHomework,
	),
	models.RoleGuardian: permSet(
		PermViewStatements,
	),
}

func permSet(perms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// RoleHasPermission reports whether the role grants the permission.
func RoleHasPermission(role, permission string) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}

// PermissionsForRole returns the sorted-stable slice of permissions granted
// to a role. Used by the profile endpoint so clients can shape their UI.
func PermissionsForRole(role string) []string {
	set, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	return perms
}

// RequirePermission checks the permission table for the authenticated role
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*Claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing user claims",
			})
		}

		if !RoleHasPermission(claims.Role, permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}

		return c.Next()
	}
}
