package services_test

import (
	"context"
	"testing"

	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addresses(users []services.AffiliateUser) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Address)
	}
	return out
}

func TestGetAffiliateUsersDirectOnly(t *testing.T) {
	f := newFixture(t)
	f.scenario(t)

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	// newest first within a depth
	assert.Equal(t, []string{addrC, addrB}, addresses(page.Users))

	c := page.Users[0]
	assert.Equal(t, "carol", c.Username)
	assert.Equal(t, "carol@example.com", c.Email)
	assert.Equal(t, models.RolePro, c.RoleTier)
	assert.Equal(t, 6, c.ProfileLevel)
	assert.Equal(t, 1, c.AffiliateLevel)
	assert.Equal(t, addrA, c.SponsorAddress)
	assert.True(t, c.HasProfile)
}

func TestGetAffiliateUsersNetworkTagsDepthAndSponsor(t *testing.T) {
	f := newFixture(t)
	f.scenario(t)
	f.profile(t, addrA, models.RoleRoyal, 7, "alice")

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{IncludeNetwork: true})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalCount)
	assert.Equal(t, []string{addrC, addrB, addrD}, addresses(page.Users))

	d := page.Users[2]
	assert.Equal(t, 2, d.AffiliateLevel)
	assert.Equal(t, addrB, d.SponsorAddress)
	assert.Equal(t, "bob", d.SponsorUsername)
	assert.Equal(t, "dave", d.Username)
	assert.Equal(t, "alice", page.Users[0].SponsorUsername)
}

func TestGetAffiliateUsersFilters(t *testing.T) {
	f := newFixture(t)
	f.scenario(t)
	ctx := context.Background()

	page, err := f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{IncludeNetwork: true, RoleFilter: "royal"})
	require.NoError(t, err)
	assert.Equal(t, []string{addrD}, addresses(page.Users))

	page, err = f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{IncludeNetwork: true, LevelFilter: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{addrC, addrB}, addresses(page.Users))

	page, err = f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{IncludeNetwork: true, RoleFilter: "ALL", Search: "CAR"})
	require.NoError(t, err)
	assert.Equal(t, []string{addrC}, addresses(page.Users))

	page, err = f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{IncludeNetwork: true, Search: "dave@example"})
	require.NoError(t, err)
	assert.Equal(t, []string{addrD}, addresses(page.Users))
}

func TestGetAffiliateUsersSearchIgnoresDiacritics(t *testing.T) {
	f := newFixture(t)
	f.profile(t, addrB, models.RoleNomad, 1, "Zoë")
	f.refer(addrA, addrB, 1)

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{Search: "zoe"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}

func TestGetAffiliateUsersPagination(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 7; i++ {
		f.refer(addrA, chainAddr(i), i)
	}
	ctx := context.Background()

	page, err := f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{Limit: 3, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 7, page.TotalCount)
	assert.Equal(t, []string{chainAddr(1), chainAddr(2), chainAddr(3)}, addresses(page.Users))

	page, err = f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{Limit: 3, Offset: 6})
	require.NoError(t, err)
	assert.Equal(t, []string{chainAddr(7)}, addresses(page.Users))

	page, err = f.svc.GetAffiliateUsers(ctx, addrA, services.UserFilter{Limit: 3, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	assert.NotNil(t, page.Users)
	assert.Equal(t, 7, page.TotalCount)
}

func TestGetAffiliateUsersMissingProfileDefaults(t *testing.T) {
	f := newFixture(t)
	f.refer(addrA, addrE, 1)

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	u := page.Users[0]
	assert.False(t, u.HasProfile)
	assert.Equal(t, models.RoleNomad, u.RoleTier)
	assert.Equal(t, 1, u.ProfileLevel)
	assert.Equal(t, models.KYCNotVerified, u.KYCStatus)
	assert.Empty(t, u.Username)
}

func TestGetAffiliateUsersCommissionPerRow(t *testing.T) {
	f := newFixture(t)
	f.scenario(t)
	f.commission(addrA, addrB, "10.25", models.CommissionSignup, models.CommissionConfirmed, 5)
	f.commission(addrA, addrB, "4.75", models.CommissionPurchase, models.CommissionPaid, 4)
	f.commission(addrA, addrB, "100", models.CommissionPurchase, models.CommissionPending, 3)
	f.commission(addrA, addrD, "2", models.CommissionTradingFee, models.CommissionConfirmed, 2)
	f.commission(addrC, addrD, "50", models.CommissionTradingFee, models.CommissionConfirmed, 1)

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{IncludeNetwork: true})
	require.NoError(t, err)
	byAddr := map[string]decimal.Decimal{}
	for _, u := range page.Users {
		byAddr[u.Address] = u.Commission
	}
	assert.True(t, decimal.NewFromInt(15).Equal(byAddr[addrB]), "got %s", byAddr[addrB])
	assert.True(t, decimal.NewFromInt(2).Equal(byAddr[addrD]), "got %s", byAddr[addrD])
	assert.True(t, byAddr[addrC].IsZero())
}

func TestGetAffiliateUsersDepthBounded(t *testing.T) {
	f := newFixture(t)
	prev := addrA
	for i := 1; i <= 9; i++ {
		f.refer(prev, chainAddr(i), 100-i)
		prev = chainAddr(i)
	}
	f.refer(chainAddr(3), addrA, 1) // cycle back to the root

	page, err := f.svc.GetAffiliateUsers(context.Background(), addrA, services.UserFilter{IncludeNetwork: true})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	for _, u := range page.Users {
		assert.LessOrEqual(t, u.AffiliateLevel, services.MaxNetworkDepth)
		assert.NotEqual(t, addrA, u.Address)
	}
}
