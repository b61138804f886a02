package permissions

// Default role names bootstrapped with every church.
const (
	RoleSuperAdmin = "Super-Admin"
	RoleAdmin      = "Admin"
	RoleMember     = "Member"
)

// RoleTemplate describes a default role before it is bound to a church.
type RoleTemplate struct {
	Name        string
	Description string
	Permissions []Permission
}

// adminGroups excludes the HQ-only church_request group and self-service.
var adminGroups = []Group{
	GroupChurch,
	GroupLevel,
	GroupRequest,
	GroupChurchLevel,
	GroupRole,
	GroupMember,
	GroupContact,
	GroupEvent,
	GroupGroup,
	GroupGroupMember,
	GroupGroupEvent,
}

// DefaultRoles returns the roles a new church starts with. A root church
// gets Super-Admin, Admin and Member; a child church gets Admin and Member.
func DefaultRoles(isRoot bool) []RoleTemplate {
	var out []RoleTemplate
	if isRoot {
		out = append(out, RoleTemplate{
			Name:        RoleSuperAdmin,
			Description: "Full control over the church network",
			Permissions: All(),
		})
	}
	out = append(out,
		RoleTemplate{
			Name:        RoleAdmin,
			Description: "Manages the church, its structure and its people",
			Permissions: InGroup(adminGroups...),
		},
		RoleTemplate{
			Name:        RoleMember,
			Description: "Self-service access",
			Permissions: InGroup(GroupMe),
		},
	)
	return out
}
