package users

import "strings"

// User is the profile returned by the backend permission-info call.
// The session core only relies on ID and the display fields; everything else
// is carried through for the UI.
type User struct {
	ID       int64  `json:"id"`                 // Unique identifier for the user
	Username string `json:"username"`           // Login name
	Nickname string `json:"nickname,omitempty"` // Display name chosen by the user
	Avatar   string `json:"avatar,omitempty"`   // Avatar image URL
	Email    string `json:"email,omitempty"`    // Contact email
	Mobile   string `json:"mobile,omitempty"`   // Contact mobile number
	Status   int    `json:"status,omitempty"`   // Account status, 0 = enabled
	DeptID   int64  `json:"deptId,omitempty"`   // Department the user belongs to
	DeptName string `json:"deptName,omitempty"` // Department display name
	Remark   string `json:"remark,omitempty"`
}

// DisplayName prefers the nickname and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if n := strings.TrimSpace(u.Nickname); n != "" {
		return n
	}
	return u.Username
}

// Menu is a node of the backend menu tree.
type Menu struct {
	ID            int64  `json:"id"`
	ParentID      int64  `json:"parentId"`
	Name          string `json:"name"`
	Path          string `json:"path,omitempty"`
	Component     string `json:"component,omitempty"`
	ComponentName string `json:"componentName,omitempty"`
	Icon          string `json:"icon,omitempty"`
	Visible       bool   `json:"visible,omitempty"`
	KeepAlive     bool   `json:"keepAlive,omitempty"`
	AlwaysShow    bool   `json:"alwaysShow,omitempty"`
	Children      []Menu `json:"children,omitempty"`
}

// PermissionInfo is the response of the permission-info call. Only User is
// consumed by the session controller.
type PermissionInfo struct {
	User        *User    `json:"user"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	Menus       []Menu   `json:"menus"`
}

// HasRole reports whether role is one of the granted roles.
func (p *PermissionInfo) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether perm is granted. The backend uses "*:*:*" for super admins.
func (p *PermissionInfo) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == perm || granted == "*:*:*" {
			return true
		}
	}
	return false
}
