package services_test

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedSuffix = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}$`)

func TestGetOrCreateReferralCodeFromVanity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rc, err := f.svc.GetOrCreateReferralCode(ctx, addrA, "Alice Wonderland!")
	require.NoError(t, err)
	require.Len(t, rc.Code, 12)
	assert.Equal(t, "ALICEWON", rc.Code[:8])
	assert.Regexp(t, generatedSuffix, rc.Code[8:])
	assert.True(t, rc.IsDefault)
	assert.True(t, rc.IsActive)
	assert.Equal(t, addrA, rc.OwnerAddress)

	again, err := f.svc.GetOrCreateReferralCode(ctx, addrA, "something else")
	require.NoError(t, err)
	assert.Equal(t, rc.Code, again.Code)
	assert.Len(t, f.store.Codes, 1)
}

func TestGetOrCreateReferralCodeFromUsername(t *testing.T) {
	f := newFixture(t)
	f.profile(t, addrB, models.RoleNomad, 1, "Bób")

	rc, err := f.svc.GetOrCreateReferralCode(context.Background(), addrB, "")
	require.NoError(t, err)
	assert.Equal(t, "BOB", rc.Code[:3])
	assert.Len(t, rc.Code, 7)
}

func TestGetOrCreateReferralCodeFallbackPrefix(t *testing.T) {
	f := newFixture(t)
	rc, err := f.svc.GetOrCreateReferralCode(context.Background(), addrC, "  ")
	require.NoError(t, err)
	assert.Equal(t, "REF", rc.Code[:3])
}

func TestGetDefaultReferralCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetDefaultReferralCode(ctx, addrA)
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	assert.Empty(t, f.store.Codes)

	f.code("ALICE1", addrA)
	rc, err := f.svc.GetDefaultReferralCode(ctx, strings.ToUpper(addrA))
	require.NoError(t, err)
	assert.Equal(t, "ALICE1", rc.Code)

	_, err = f.svc.GetDefaultReferralCode(ctx, " ")
	assert.ErrorIs(t, err, services.ErrInvalidAddress)
}
