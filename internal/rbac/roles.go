package rbac

// Role names carried in access tokens.
const (
	RoleAdmin        = "admin"
	RoleSalesManager = "sales_manager"
	RoleSalesAgent   = "sales_agent"
	RoleAnalyst      = "analyst"
)

var known = map[string]bool{
	RoleAdmin:        true,
	RoleSalesManager: true,
	RoleSalesAgent:   true,
	RoleAnalyst:      true,
}

func IsAdmin(role string) bool { return role == RoleAdmin }

func Valid(role string) bool { return known[role] }

// Staff is every role allowed to read and write customer records.
var Staff = []string{RoleSalesManager, RoleSalesAgent}

// Readers can additionally view analytics.
var Readers = []string{RoleSalesManager, RoleSalesAgent, RoleAnalyst}
