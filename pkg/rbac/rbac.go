package rbac

// Role is a principal's role as carried in its token
type Role string

const (
	Superadmin Role = "superadmin"
	Admin      Role = "admin"
	Manager    Role = "manager"
	Cashier    Role = "cashier"
	Kitchen    Role = "kitchen"
)

// parent maps each role to the role directly above it. Kitchen has no parent.
var parent = map[Role]Role{
	Cashier: Manager,
	Manager: Admin,
	Admin:   Superadmin,
}

func Parse(s string) (Role, bool) {
	r := Role(s)
	switch r {
	case Superadmin, Admin, Manager, Cashier, Kitchen:
		return r, true
	}
	return "", false
}

// Satisfies reports whether a caller holding r may run an operation that requires role required:
// r equals required or is one of its ancestors.
func (r Role) Satisfies(required Role) bool {
	if r == "" {
		return false
	}
	for cur := required; cur != ""; cur = parent[cur] {
		if cur == r {
			return true
		}
	}
	return false
}

// SatisfiesAny reports whether r satisfies at least one of the given roles
func (r Role) SatisfiesAny(required ...Role) bool {
	for _, req := range required {
		if r.Satisfies(req) {
			return true
		}
	}
	return false
}

// BranchScoped reports whether principals of this role belong to a single branch
func (r Role) BranchScoped() bool {
	return r == Manager || r == Cashier || r == Kitchen
}

func (r Role) String() string {
	return string(r)
}
