package rbac

import "qrattendance/internal/models"

const (
	ViewLocations   = "view-locations"
	CreateLocations = "create-locations"
	EditLocations   = "edit-locations"
	DeleteLocations = "delete-locations"

	ViewEmployees   = "view-employees"
	CreateEmployees = "create-employees"
	EditEmployees   = "edit-employees"
	DeleteEmployees = "delete-employees"

	ViewAttendances    = "view-attendances"
	CreateAttendances  = "create-attendances"
	EditAttendances    = "edit-attendances"
	DeleteAttendances  = "delete-attendances"
	CheckInAttendance  = "check-in-attendance"
	CheckOutAttendance = "check-out-attendance"

	ViewUsers   = "view-users"
	CreateUsers = "create-users"
	EditUsers   = "edit-users"
	DeleteUsers = "delete-users"

	ViewRoles         = "view-roles"
	AssignRoles       = "assign-roles"
	RevokeRoles       = "revoke-roles"
	AssignPermissions = "assign-permissions"
	RevokePermissions = "revoke-permissions"

	ViewReports   = "view-reports"
	ExportReports = "export-reports"
)

// Permissions is the full seeded catalog, in seed order.
var Permissions = []string{
	ViewLocations, CreateLocations, EditLocations, DeleteLocations,
	ViewEmployees, CreateEmployees, EditEmployees, DeleteEmployees,
	ViewAttendances, CreateAttendances, EditAttendances, DeleteAttendances,
	CheckInAttendance, CheckOutAttendance,
	ViewUsers, CreateUsers, EditUsers, DeleteUsers,
	ViewRoles, AssignRoles, RevokeRoles, AssignPermissions, RevokePermissions,
	ViewReports, ExportReports,
}

// RolePermissions is the seeded permission set of each fixed role.
var RolePermissions = map[string][]string{
	models.RoleAdministrator: Permissions,
	models.RoleManager: {
		ViewLocations, CreateLocations, EditLocations, DeleteLocations,
		ViewEmployees, CreateEmployees, EditEmployees, DeleteEmployees,
		ViewAttendances, CreateAttendances, EditAttendances, DeleteAttendances,
		CheckInAttendance, CheckOutAttendance,
		ViewReports, ExportReports,
	},
	models.RoleSupervisor: {
		ViewLocations,
		ViewEmployees,
		ViewAttendances, CreateAttendances, EditAttendances,
		CheckInAttendance, CheckOutAttendance,
		ViewReports,
	},
}

// DefaultRole is attached to self-registered users.
const DefaultRole = models.RoleSupervisor
