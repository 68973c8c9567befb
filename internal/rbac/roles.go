package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleAnalyst  = "analyst"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// Valid reports whether role is one of the known roles.
func Valid(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleAnalyst:
		return true
	}
	return false
}

// Writers may place calls, create leads and send SMS.
var Writers = []string{RoleAdmin, RoleOperator}

// Readers may read call status, leads and analytics.
var Readers = []string{RoleAdmin, RoleOperator, RoleAnalyst}
