package auth

// Role names seeded at provisioning time.
const (
	RoleAdministrator = "Administrator"
	RoleDataManager   = "Data Manager"
	RoleRanger        = "Ranger"
	RoleSupervisor    = "Supervisor"
	RolePublicUser    = "Public User"
)

// DefaultRole is assigned to every freshly registered user.
const DefaultRole = RolePublicUser

// Permission codes checked across the service.
const (
	PermMonitorViewRegion    = "monitor:view_region"
	PermResourceViewPublic   = "resource:view_public"
	PermResourceCreateUpdate = "resource:create_update"
	PermWarningManageRules   = "warning:manage_rules"
	PermEquipmentMaintLog    = "equipment:maintenance_log"
	PermRoleManage           = "role:manage"
)

// Catalog is the reference data the auth subsystem depends on: the role
// set, the permission set, and the role-permission links.
type Catalog struct {
	Roles       []Role
	Permissions []string
	Links       []CatalogLink
}

// CatalogLink ties a role name to a permission code.
type CatalogLink struct {
	RoleName       string
	PermissionCode string
}

// BuiltinCatalog returns the reference data provisioned at startup and
// repaired on demand. Public User keeps read-only access; Administrator
// holds every permission.
func BuiltinCatalog() Catalog {
	perms := []string{
		PermMonitorViewRegion,
		PermResourceViewPublic,
		PermResourceCreateUpdate,
		PermWarningManageRules,
		PermEquipmentMaintLog,
		PermRoleManage,
	}
	links := []CatalogLink{
		{RolePublicUser, PermResourceViewPublic},
		{RolePublicUser, PermMonitorViewRegion},
		{RoleDataManager, PermResourceCreateUpdate},
		{RoleDataManager, PermResourceViewPublic},
		{RoleRanger, PermWarningManageRules},
		{RoleRanger, PermEquipmentMaintLog},
		{RoleSupervisor, PermMonitorViewRegion},
		{RoleSupervisor, PermResourceViewPublic},
	}
	for _, p := range perms {
		links = append(links, CatalogLink{RoleAdministrator, p})
	}
	return Catalog{
		Roles: []Role{
			{Name: RoleAdministrator, Description: "Maintains accounts and permission assignments."},
			{Name: RoleDataManager, Description: "Enters and validates resource records."},
			{Name: RoleRanger, Description: "Handles warnings and logs field maintenance."},
			{Name: RoleSupervisor, Description: "Read access to system-wide data."},
			{Name: RolePublicUser, Description: "Views public data and submits feedback."},
		},
		Permissions: perms,
		Links:       links,
	}
}
