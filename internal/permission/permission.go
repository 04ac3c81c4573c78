package permission

// PermissionAction represents the action to take for a permission check.
type PermissionAction string

const (
	ActionAllow PermissionAction = "allow"
	ActionDeny  PermissionAction = "deny"
	ActionAsk   PermissionAction = "ask"
)

// PermissionType represents the type of permission being checked.
type PermissionType string

const (
	PermBash        PermissionType = "bash"
	PermEdit        PermissionType = "edit"
	PermWebFetch    PermissionType = "webfetch"
	PermExternalDir PermissionType = "external_directory"
	PermDoomLoop    PermissionType = "doom_loop"
)

