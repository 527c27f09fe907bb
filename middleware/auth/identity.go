package auth

// Identity is the resolved caller of a request
type Identity struct {
	Subject string `json:"id"`
	Role    string `json:"role"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Well-known roles
const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleMember    = "member"
)

// HasRole reports whether the identity holds one of roles. A nil identity has none.
func (i *Identity) HasRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(RoleAdmin)
func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// Is reports whether the identity's subject equals id
func (i *Identity) Is(id string) bool {
	return i != nil && id != "" && i.Subject == id
}
