package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmkeep/farmkeep/auth"
)

func TestCan(t *testing.T) {
	owns := auth.OwnershipFacts{Owns: true}
	assigned := auth.OwnershipFacts{Assigned: true}
	none := auth.OwnershipFacts{}

	t.Run("farmer animal access", func(t *testing.T) {
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionCreate, none))
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionRead, owns))
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionUpdate, owns))
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionDelete, owns))

		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionRead, none))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionUpdate, none))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionDelete, none))
	})

	t.Run("farmer cannot write health records", func(t *testing.T) {
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceHealthRecord, auth.ActionRead, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceHealthRecord, auth.ActionCreate, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceHealthRecord, auth.ActionDelete, owns))
	})

	t.Run("vet acts only on assigned animals", func(t *testing.T) {
		assert.True(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionRead, assigned))
		assert.True(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionUpdate, assigned))
		assert.True(t, auth.Can(auth.RoleVeterinarian, auth.ResourceHealthRecord, auth.ActionCreate, assigned))
		assert.True(t, auth.Can(auth.RoleVeterinarian, auth.ResourceHealthRecord, auth.ActionRead, assigned))

		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionRead, none))
		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionUpdate, owns))
		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionDelete, assigned))
		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceAnimal, auth.ActionCreate, assigned))
	})

	t.Run("ownership does not stand in for assignment", func(t *testing.T) {
		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceHealthRecord, auth.ActionCreate, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, auth.ActionRead, assigned))
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		for _, action := range []auth.Action{auth.ActionCreate, auth.ActionRead, auth.ActionUpdate, auth.ActionDelete} {
			assert.True(t, auth.Can(auth.RoleAdmin, auth.ResourceAnimal, action, none), "animal %s", action)
			assert.True(t, auth.Can(auth.RoleAdmin, auth.ResourceUser, action, none), "user %s", action)
		}
		assert.True(t, auth.Can(auth.RoleAdmin, auth.ResourceDashboard, auth.ActionRead, none))
	})

	t.Run("dashboards follow the relationship", func(t *testing.T) {
		assert.True(t, auth.Can(auth.RoleFarmer, auth.ResourceDashboard, auth.ActionRead, owns))
		assert.True(t, auth.Can(auth.RoleVeterinarian, auth.ResourceDashboard, auth.ActionRead, assigned))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceDashboard, auth.ActionRead, none))
		assert.False(t, auth.Can(auth.RoleVeterinarian, auth.ResourceDashboard, auth.ActionRead, none))
	})

	t.Run("unknown tuples deny", func(t *testing.T) {
		assert.False(t, auth.Can("auditor", auth.ResourceAnimal, auth.ActionRead, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceUser, auth.ActionRead, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, "unknown-resource", auth.ActionRead, owns))
		assert.False(t, auth.Can(auth.RoleFarmer, auth.ResourceAnimal, "transmogrify", owns))
		assert.False(t, auth.Can("", "", "", auth.OwnershipFacts{}))
	})
}

func TestParseRole(t *testing.T) {
	for _, role := range auth.GetAllRoles() {
		parsed, ok := auth.ParseRole(string(role))
		assert.True(t, ok)
		assert.Equal(t, role, parsed)
	}

	_, ok := auth.ParseRole("superuser")
	assert.False(t, ok)

	_, ok = auth.ParseRole("")
	assert.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to auth.UserStatus
		want     bool
	}{
		{auth.UserStatusPending, auth.UserStatusActive, true},
		{auth.UserStatusPending, auth.UserStatusDisabled, true},
		{auth.UserStatusPending, auth.UserStatusSuspended, false},
		{auth.UserStatusActive, auth.UserStatusSuspended, true},
		{auth.UserStatusActive, auth.UserStatusDisabled, true},
		{auth.UserStatusActive, auth.UserStatusPending, false},
		{auth.UserStatusSuspended, auth.UserStatusActive, true},
		{auth.UserStatusSuspended, auth.UserStatusDisabled, true},
		{auth.UserStatusSuspended, auth.UserStatusPending, false},
		{auth.UserStatusDisabled, auth.UserStatusActive, false},
		{auth.UserStatusDisabled, auth.UserStatusPending, false},
		{auth.UserStatusDisabled, auth.UserStatusSuspended, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, auth.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
