package auth

type permissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// rolePermissions is indexed by Role; RoleUnknown maps to the empty set.
// Read-only after package initialization.
var rolePermissions = [roleCount]permissionSet{
	RoleUnknown: newPermissionSet(),
	RoleAdmin:   newPermissionSet(AllPermissions...),
	RoleAccountant: newPermissionSet(
		PermDonationsView,
		PermDonationsCreate,
		PermDonationsEdit,
		PermMembersView,
		PermReportsExport,
		PermDocumentsView,
	),
	RoleStaff: newPermissionSet(
		PermDonationsView,
		PermDonationsCreate,
		PermMembersView,
		PermMembersCreate,
		PermSocialAidView,
		PermSocialAidCreate,
		PermDocumentsView,
		PermDocumentsCreate,
	),
	RoleMember: newPermissionSet(
		PermDonationsView,
		PermMembersView,
		PermSocialAidView,
		PermDocumentsView,
	),
}

// HasPermission reports whether role holds every required permission.
// An empty requirement is always satisfied; an unknown role holds nothing.
func HasPermission(role Role, required ...Permission) bool {
	if len(required) == 0 {
		return true
	}
	if !role.Valid() {
		return false
	}
	granted := rolePermissions[role]
	for _, p := range required {
		if _, ok := granted[p]; !ok {
			return false
		}
	}
	return true
}

// PermissionsFor lists the permissions of role in catalog order
func PermissionsFor(role Role) []Permission {
	if !role.Valid() {
		return nil
	}
	granted := rolePermissions[role]
	perms := make([]Permission, 0, len(granted))
	for _, p := range AllPermissions {
		if _, ok := granted[p]; ok {
			perms = append(perms, p)
		}
	}
	return perms
}

// Missing returns the required permissions role does not hold
func Missing(role Role, required ...Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !HasPermission(role, p) {
			missing = append(missing, p)
		}
	}
	return missing
}
