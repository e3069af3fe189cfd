package models

// GuardAPI is the only guard namespace roles and permissions live under.
const GuardAPI = "api"

const (
	RoleAdministrator = "administrator"
	RoleManager       = "manager"
	RoleSupervisor    = "supervisor"
)

type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	GuardName   string   `json:"guard_name"`
	Permissions []string `json:"permissions,omitempty"`
}

type Permission struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	GuardName string `json:"guard_name"`
}
