package branch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuditriaji/restopos-backend/pkg/apperr"
	"github.com/yuditriaji/restopos-backend/pkg/database"
	"github.com/yuditriaji/restopos-backend/pkg/database/dbtest"
)

func TestCreateBranchValidatesAndScopesNames(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	acme := dbtest.SeedShop(t, db, "Acme", "Downtown")
	other := dbtest.SeedShop(t, db, "Other", "Uptown")

	_, err := s.Create(ctx, acme.Shop.ID, Input{Name: "Mall"})
	assert.EqualError(t, err, "Please fill in all fields")

	_, err = s.Create(ctx, acme.Shop.ID, Input{Name: "Mall", Address: "A", Contact: "1", OpeningTime: "9am"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Create(ctx, acme.Shop.ID, Input{Name: "Mall", Address: "A", Contact: "1", CardTax: decimal.NewFromInt(101)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = s.Create(ctx, acme.Shop.ID, Input{Name: "downtown", Address: "A", Contact: "1"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	uptown, err := s.Create(ctx, acme.Shop.ID, Input{Name: "Uptown", Address: "A", Contact: "1", OpeningTime: "10:00", ClosingTime: "22:30"})
	require.NoError(t, err)
	assert.False(t, uptown.ShiftStatus)
	assert.Zero(t, uptown.DayNumber)

	count, err := s.Count(ctx, acme.Shop.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	_, err = s.Get(ctx, other.Shop.ID, uptown.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateBranchIsPartial(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	_, err := s.Create(ctx, f.Shop.ID, Input{Name: "Uptown", Address: "A", Contact: "1"})
	require.NoError(t, err)

	name := "Harbour"
	tables := 12
	branch, err := s.Update(ctx, f.Shop.ID, f.Branch.ID, Patch{Name: &name, TotalTables: &tables})
	require.NoError(t, err)
	assert.Equal(t, "Harbour", branch.Name)
	assert.Equal(t, 12, branch.TotalTables)
	assert.Equal(t, "123 St", branch.Address)
	assert.Equal(t, "09:00", branch.OpeningTime)

	taken := "uptown"
	_, err = s.Update(ctx, f.Shop.ID, f.Branch.ID, Patch{Name: &taken})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = s.UpdateTimings(ctx, f.Shop.ID, f.Branch.ID, "25:00", "23:00")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	branch, err = s.UpdateTimings(ctx, f.Shop.ID, f.Branch.ID, "08:00", "20:00")
	require.NoError(t, err)
	assert.Equal(t, "08:00", branch.OpeningTime)
	assert.Equal(t, "20:00", branch.ClosingTime)
}

func TestDeleteBranchWithStaffConflicts(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	cashier := dbtest.SeedCashier(t, db, f, "cash1")

	_, err := s.Delete(ctx, f.Shop.ID, f.Branch.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	require.NoError(t, db.Delete(&cashier).Error)
	_, err = s.Delete(ctx, f.Shop.ID, f.Branch.ID)
	require.NoError(t, err)

	_, err = s.Get(ctx, f.Shop.ID, f.Branch.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeletedBranchKeepsItsName(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")

	mall, err := s.Create(ctx, f.Shop.ID, Input{Name: "Mall", Address: "A", Contact: "1"})
	require.NoError(t, err)
	_, err = s.Delete(ctx, f.Shop.ID, mall.ID)
	require.NoError(t, err)

	_, err = s.Create(ctx, f.Shop.ID, Input{Name: "Mall", Address: "B", Contact: "2"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	name := "mall"
	_, err = s.Update(ctx, f.Shop.ID, f.Branch.ID, Patch{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	other := dbtest.SeedShop(t, db, "Other", "Uptown")
	_, err = s.Create(ctx, other.Shop.ID, Input{Name: "Mall", Address: "C", Contact: "3"})
	require.NoError(t, err)
}

func TestOpenAndCloseShifts(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")
	manager := uuid.New()

	branch, shift, err := s.Open(ctx, f.Shop.ID, f.Branch.ID, manager)
	require.NoError(t, err)
	assert.True(t, branch.ShiftStatus)
	assert.Equal(t, 1, branch.DayNumber)
	assert.Equal(t, 1, shift.DayNumber)
	assert.Equal(t, manager, shift.OpenedBy)

	_, _, err = s.Open(ctx, f.Shop.ID, f.Branch.ID, manager)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	branch, changed, err := s.Close(ctx, f.Shop.ID, f.Branch.ID, manager)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, branch.ShiftStatus)
	assert.Equal(t, 1, branch.DayNumber)

	_, changed, err = s.Close(ctx, f.Shop.ID, f.Branch.ID, manager)
	require.NoError(t, err)
	assert.False(t, changed)

	branch, _, err = s.Open(ctx, f.Shop.ID, f.Branch.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, branch.DayNumber)

	shifts, err := s.Shifts(ctx, f.Shop.ID, f.Branch.ID, 0)
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, 2, shifts[0].DayNumber)
	assert.Nil(t, shifts[0].ClosedAt)
	require.NotNil(t, shifts[1].ClosedAt)
	require.NotNil(t, shifts[1].ClosedBy)
	assert.Equal(t, manager, *shifts[1].ClosedBy)

	other := dbtest.SeedShop(t, db, "Other", "Uptown")
	_, _, err = s.Open(ctx, other.Shop.ID, f.Branch.ID, manager)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCashAndTax(t *testing.T) {
	db := dbtest.Open(t)
	s := NewStore(db)
	ctx := context.Background()
	f := dbtest.SeedShop(t, db, "Acme", "Downtown")

	_, err := s.UpdateCashOnHand(ctx, f.Shop.ID, f.Branch.ID, decimal.NewFromInt(-1))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	branch, err := s.UpdateCashOnHand(ctx, f.Shop.ID, f.Branch.ID, decimal.RequireFromString("1500.50"))
	require.NoError(t, err)
	assert.Equal(t, "1500.5", branch.CashOnHand.String())

	_, err = s.UpdateTax(ctx, f.Shop.ID, f.Branch.ID, nil, nil)
	assert.EqualError(t, err, "Please provide tax")

	card := decimal.RequireFromString("2.5")
	branch, err = s.UpdateTax(ctx, f.Shop.ID, f.Branch.ID, &card, nil)
	require.NoError(t, err)
	assert.True(t, branch.CardTax.Equal(card))
	assert.True(t, branch.CashTax.Equal(decimal.NewFromInt(5)))
	assert.NotNil(t, branch.TaxLastUpdated)

	var stored database.Branch
	require.NoError(t, db.First(&stored, "id = ?", f.Branch.ID).Error)
	assert.True(t, stored.CardTax.Equal(card))
}
