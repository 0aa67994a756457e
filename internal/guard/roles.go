package guard

// Role names issued by the CRM backend in the session token.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
	RoleViewer  = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Roles allowed to change WhatsApp accounts and properties.
var Editors = []string{RoleManager, RoleAgent}
