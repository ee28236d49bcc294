package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManagerOperation(t *testing.T) {
	for _, r := range []Role{Manager, Admin, Superadmin} {
		assert.True(t, r.Satisfies(Manager), r)
	}
	for _, r := range []Role{Cashier, Kitchen} {
		assert.False(t, r.Satisfies(Manager), r)
	}
}

func TestKitchenIsDisjointLeaf(t *testing.T) {
	assert.True(t, Kitchen.Satisfies(Kitchen))
	assert.False(t, Kitchen.Satisfies(Cashier))
	assert.False(t, Manager.Satisfies(Kitchen))
	assert.False(t, Superadmin.Satisfies(Kitchen))
}

func TestCashierOperation(t *testing.T) {
	assert.True(t, Superadmin.Satisfies(Cashier))
	assert.True(t, Cashier.Satisfies(Cashier))
	assert.False(t, Cashier.Satisfies(Admin))
}

func TestSatisfiesAny(t *testing.T) {
	assert.True(t, Kitchen.SatisfiesAny(Kitchen, Cashier))
	assert.True(t, Admin.SatisfiesAny(Kitchen, Cashier))
	assert.False(t, Role("").SatisfiesAny(Kitchen, Cashier))
}

func TestParse(t *testing.T) {
	r, ok := Parse("manager")
	assert.True(t, ok)
	assert.Equal(t, Manager, r)

	_, ok = Parse("owner")
	assert.False(t, ok)
}
