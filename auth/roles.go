package auth

// UserRole is the account's role
type UserRole = string

const (
	// RoleFarmer owns animals and their health records
	RoleFarmer UserRole = "farmer"
	// RoleVeterinarian acts on animals explicitly assigned to them
	RoleVeterinarian UserRole = "veterinarian"
	// RoleAdmin bypasses ownership checks for all actions
	RoleAdmin UserRole = "admin"
)

// Action is a policy verb
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource is a policy subject
type Resource string

const (
	ResourceAnimal       Resource = "animal"
	ResourceHealthRecord Resource = "health-record"
	ResourceUser         Resource = "user"
	ResourceDashboard    Resource = "dashboard"
	ResourceVetDirectory Resource = "vet-directory"
)

// OwnershipFacts carries the relationship between the caller and the target
// record. Callers resolve the facts against their stores; the policy itself
// never performs lookups so it stays pure and independently testable.
type OwnershipFacts struct {
	// Owns is true when the target animal or record belongs to the farmer
	Owns bool
	// Assigned is true when the target animal is assigned to the veterinarian
	Assigned bool
}

// grant describes under which relationship a tuple is allowed.
type grant int

const (
	grantAlways grant = iota
	grantIfOwns
	grantIfAssigned
)

// policyTable is the static access table. Any (role, resource, action) tuple
// absent from the table is denied.
var policyTable = map[UserRole]map[Resource]map[Action]grant{
	RoleFarmer: {
		ResourceAnimal: {
			ActionCreate: grantAlways,
			ActionRead:   grantIfOwns,
			ActionUpdate: grantIfOwns,
			ActionDelete: grantIfOwns,
		},
		ResourceHealthRecord: {
			ActionRead: grantIfOwns,
		},
		ResourceDashboard: {
			ActionRead: grantIfOwns,
		},
		// farmers browse the directory to pick a vet to assign
		ResourceVetDirectory: {
			ActionRead: grantAlways,
		},
	},
	RoleVeterinarian: {
		ResourceAnimal: {
			ActionRead:   grantIfAssigned,
			ActionUpdate: grantIfAssigned,
		},
		ResourceHealthRecord: {
			ActionCreate: grantIfAssigned,
			ActionRead:   grantIfAssigned,
		},
		ResourceDashboard: {
			ActionRead: grantIfAssigned,
		},
	},
	RoleAdmin: {
		ResourceAnimal: {
			ActionCreate: grantAlways,
			ActionRead:   grantAlways,
			ActionUpdate: grantAlways,
			ActionDelete: grantAlways,
		},
		ResourceHealthRecord: {
			ActionCreate: grantAlways,
			ActionRead:   grantAlways,
			ActionDelete: grantAlways,
		},
		ResourceUser: {
			ActionCreate: grantAlways,
			ActionRead:   grantAlways,
			ActionUpdate: grantAlways,
			ActionDelete: grantAlways,
		},
		ResourceDashboard: {
			ActionRead: grantAlways,
		},
		ResourceVetDirectory: {
			ActionRead: grantAlways,
		},
	},
}

// Can evaluates the access policy for a (role, resource, action) tuple with
// the supplied ownership facts. Deny by default.
func Can(role UserRole, resource Resource, action Action, facts OwnershipFacts) bool {
	resources, ok := policyTable[role]
	if !ok {
		return false
	}

	actions, ok := resources[resource]
	if !ok {
		return false
	}

	g, ok := actions[action]
	if !ok {
		return false
	}

	switch g {
	case grantAlways:
		return true
	case grantIfOwns:
		return facts.Owns
	case grantIfAssigned:
		return facts.Assigned
	default:
		return false
	}
}

// IsValid checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleFarmer, RoleVeterinarian, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleFarmer,
		RoleVeterinarian,
		RoleAdmin,
	}
}
