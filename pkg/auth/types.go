package auth

import (
	"fmt"
	"strings"
)

// Identity is the authenticated subject of a request.
// It is resolved once per request and never persisted.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Can reports whether the identity holds every given permission
func (i *Identity) Can(required ...Permission) bool {
	if i == nil {
		return false
	}
	return HasPermission(i.Role, required...)
}

// Role is an authorization tier with a fixed permission set
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleAccountant
	RoleStaff
	RoleMember

	roleCount
)

// LeastPrivilegedRole is assigned when a user record carries no role
const LeastPrivilegedRole = RoleMember

var roleNames = [roleCount]string{
	RoleUnknown:    "",
	RoleAdmin:      "admin",
	RoleAccountant: "muhasebe",
	RoleStaff:      "gorevli",
	RoleMember:     "uye",
}

var roleAliases = map[string]Role{
	"admin":      RoleAdmin,
	"muhasebe":   RoleAccountant,
	"accountant": RoleAccountant,
	"gorevli":    RoleStaff,
	"staff":      RoleStaff,
	"uye":        RoleMember,
	"member":     RoleMember,
}

// ParseRole maps a stored role name to a Role. Unknown names yield RoleUnknown.
func ParseRole(s string) Role {
	if r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r
	}
	return RoleUnknown
}

// Roles returns every known role
func Roles() []Role {
	return []Role{RoleAdmin, RoleAccountant, RoleStaff, RoleMember}
}

// String returns the stored name of the role
func (r Role) String() string {
	if r.Valid() {
		return roleNames[r]
	}
	return "unknown"
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r > RoleUnknown && r < roleCount
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// Permission is a capability token of the form "<resource>.<action>"
type Permission string

const (
	PermDonationsView   Permission = "donations.view"
	PermDonationsCreate Permission = "donations.create"
	PermDonationsEdit   Permission = "donations.edit"
	PermDonationsDelete Permission = "donations.delete"

	PermMembersView   Permission = "members.view"
	PermMembersCreate Permission = "members.create"
	PermMembersEdit   Permission = "members.edit"
	PermMembersDelete Permission = "members.delete"

	PermSocialAidView    Permission = "social-aid.view"
	PermSocialAidCreate  Permission = "social-aid.create"
	PermSocialAidEdit    Permission = "social-aid.edit"
	PermSocialAidApprove Permission = "social-aid.approve"

	PermDocumentsView   Permission = "documents.view"
	PermDocumentsCreate Permission = "documents.create"
	PermDocumentsDelete Permission = "documents.delete"

	PermReportsExport  Permission = "reports.export"
	PermSettingsManage Permission = "settings.manage"

	PermUsersView   Permission = "users.view"
	PermUsersCreate Permission = "users.create"
	PermUsersEdit   Permission = "users.edit"
	PermUsersDelete Permission = "users.delete"
)

// AllPermissions is the permission catalog
var AllPermissions = []Permission{
	PermDonationsView, PermDonationsCreate, PermDonationsEdit, PermDonationsDelete,
	PermMembersView, PermMembersCreate, PermMembersEdit, PermMembersDelete,
	PermSocialAidView, PermSocialAidCreate, PermSocialAidEdit, PermSocialAidApprove,
	PermDocumentsView, PermDocumentsCreate, PermDocumentsDelete,
	PermReportsExport, PermSettingsManage,
	PermUsersView, PermUsersCreate, PermUsersEdit, PermUsersDelete,
}

// Resource returns the part before the dot
func (p Permission) Resource() string {
	if i := strings.LastIndexByte(string(p), '.'); i >= 0 {
		return string(p[:i])
	}
	return string(p)
}

// Action returns the part after the dot
func (p Permission) Action() string {
	if i := strings.LastIndexByte(string(p), '.'); i >= 0 {
		return string(p[i+1:])
	}
	return ""
}

// ParsePermission validates a permission against the catalog
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.TrimSpace(s))
	for _, known := range AllPermissions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown permission %q", s)
}
