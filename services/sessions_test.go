package services_test

import (
	"context"
	"testing"
	"time"

	"affiliate-engine/models"
	"affiliate-engine/services"
	"affiliate-engine/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackReferralClickOpensSession(t *testing.T) {
	f := newFixture(t)
	f.code("ALICE1", addrA)

	s, err := f.svc.TrackReferralClick(context.Background(), "alice1", services.ClickMeta{
		VisitorID:   "visitor-1",
		LandingPath: "/join",
		UserAgent:   "Mozilla/5.0",
		ClientIP:    "203.0.113.9",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "ALICE1", s.ReferralCode)
	assert.Equal(t, addrA, s.ReferrerAddress)
	assert.Equal(t, baseTime.Add(30*24*time.Hour), s.ExpiresAt)
	assert.Equal(t, utils.HashIdentifier("203.0.113.9"), s.IPHash)
	assert.NotEqual(t, "203.0.113.9", s.IPHash)

	assert.Equal(t, 1, f.store.Codes[0].TotalClicks)
	assert.Len(t, f.store.Sessions, 1)
}

func TestTrackReferralClickRejectsBadCodes(t *testing.T) {
	f := newFixture(t)
	f.code("OFF", addrA, func(rc *models.ReferralCode) { rc.IsActive = false })
	ctx := context.Background()

	_, err := f.svc.TrackReferralClick(ctx, "NOPE", services.ClickMeta{})
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	_, err = f.svc.TrackReferralClick(ctx, "OFF", services.ClickMeta{})
	assert.ErrorIs(t, err, services.ErrCodeInactive)
	assert.Empty(t, f.store.Sessions)
}

func TestProcessReferralFromSession(t *testing.T) {
	f := newFixture(t)
	f.code("ALICE1", addrA)
	ctx := context.Background()

	s, err := f.svc.TrackReferralClick(ctx, "ALICE1", services.ClickMeta{})
	require.NoError(t, err)

	f.now = baseTime.Add(24 * time.Hour)
	rel, err := f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrB)
	require.NoError(t, err)
	assert.Equal(t, addrA, rel.ReferrerAddress)

	stored, err := f.store.FindSession(ctx, s.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.Converted)
	require.NotNil(t, stored.ConvertedUserAddress)
	assert.Equal(t, addrB, *stored.ConvertedUserAddress)
	assert.Equal(t, 1, f.store.Codes[0].SuccessfulConversions)

	_, err = f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrC)
	assert.ErrorIs(t, err, services.ErrSessionConverted)
}

// redeemHookStore runs beforeRedeem once, ahead of the first RedeemCode call
type redeemHookStore struct {
	services.Store
	beforeRedeem func()
}

func (s *redeemHookStore) RedeemCode(ctx context.Context, code *models.ReferralCode, rel *models.AffiliateRelationship) error {
	if hook := s.beforeRedeem; hook != nil {
		s.beforeRedeem = nil
		hook()
	}
	return s.Store.RedeemCode(ctx, code, rel)
}

func TestProcessReferralFromSessionConvertsOnce(t *testing.T) {
	hooked := &redeemHookStore{}
	f := newFixture(t, withStore(func(inner services.Store) services.Store {
		hooked.Store = inner
		return hooked
	}))
	f.code("ALICE1", addrA)
	ctx := context.Background()

	s, err := f.svc.TrackReferralClick(ctx, "ALICE1", services.ClickMeta{})
	require.NoError(t, err)

	var concurrentErr error
	hooked.beforeRedeem = func() {
		_, concurrentErr = f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrC)
	}

	rel, err := f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrB)
	require.NoError(t, err)
	assert.Equal(t, addrB, rel.RefereeAddress)
	assert.ErrorIs(t, concurrentErr, services.ErrSessionConverted)

	assert.Len(t, f.store.Relationships, 1)
	assert.Equal(t, 1, f.store.Codes[0].UsageCount)
	assert.Equal(t, 1, f.store.Codes[0].SuccessfulConversions)
}

func TestProcessReferralFromSessionRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ProcessReferralFromSession(ctx, "missing", addrB)
		assert.ErrorIs(t, err, services.ErrSessionNotFound)
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t)
		f.code("ALICE1", addrA)
		s, err := f.svc.TrackReferralClick(ctx, "ALICE1", services.ClickMeta{})
		require.NoError(t, err)
		f.now = baseTime.Add(31 * 24 * time.Hour)
		_, err = f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrB)
		assert.ErrorIs(t, err, services.ErrSessionNotFound)
		assert.Empty(t, f.store.Relationships)
	})

	t.Run("self referral leaves session open", func(t *testing.T) {
		f := newFixture(t)
		f.code("ALICE1", addrA)
		s, err := f.svc.TrackReferralClick(ctx, "ALICE1", services.ClickMeta{})
		require.NoError(t, err)
		_, err = f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrA)
		assert.ErrorIs(t, err, services.ErrSelfReferral)
		stored, err := f.store.FindSession(ctx, s.SessionID)
		require.NoError(t, err)
		assert.False(t, stored.Converted)
	})

	t.Run("already sponsored", func(t *testing.T) {
		f := newFixture(t)
		f.code("ALICE1", addrA)
		f.refer(addrC, addrB, 1)
		s, err := f.svc.TrackReferralClick(ctx, "ALICE1", services.ClickMeta{})
		require.NoError(t, err)
		_, err = f.svc.ProcessReferralFromSession(ctx, s.SessionID, addrB)
		assert.ErrorIs(t, err, services.ErrAlreadySponsored)
	})
}

func TestRunHousekeeping(t *testing.T) {
	f := newFixture(t)
	soon := baseTime.Add(time.Hour)
	f.code("ALICE1", addrA, func(rc *models.ReferralCode) { rc.ExpiresAt = &soon })
	f.code("BOB1", addrB)
	ctx := context.Background()

	_, err := f.svc.TrackReferralClick(ctx, "BOB1", services.ClickMeta{})
	require.NoError(t, err)

	f.now = baseTime.Add(40 * 24 * time.Hour)
	res, err := f.svc.RunHousekeeping(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredSessions)
	assert.Equal(t, int64(1), res.DeactivatedCodes)
	assert.False(t, f.store.Codes[0].IsActive)
	assert.Equal(t, "ALICE1", f.store.Codes[0].Code)
	assert.True(t, f.store.Codes[1].IsActive)

	res, err = f.svc.RunHousekeeping(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.ExpiredSessions)
	assert.Zero(t, res.DeactivatedCodes)
}
