package services

import (
	"context"
	"errors"

	"affiliate-engine/models"
	"affiliate-engine/utils"

	"github.com/google/uuid"
)

// ClickMeta describes the visitor behind a referral-link click
type ClickMeta struct {
	VisitorID   string
	LandingPath string
	UserAgent   string
	ClientIP    string
}

// TrackReferralClick opens a referral session for a link click, before the
// visitor's wallet is known. Exhausted codes still record clicks; redemption
// rejects them later.
func (s *AffiliateService) TrackReferralClick(ctx context.Context, code string, meta ClickMeta) (*models.ReferralSession, error) {
	code = normalizeCode(code)
	rc, err := s.usableCode(ctx, code)
	if err != nil && !errors.Is(err, ErrCodeExhausted) {
		if !IsRejection(err) {
			s.log.WithError(err).WithField("code", code).Error("failed to load referral code for click")
		}
		return nil, err
	}

	now := s.now()
	session := &models.ReferralSession{
		SessionID:       uuid.NewString(),
		ReferralCode:    rc.Code,
		ReferrerAddress: normalizeAddress(rc.OwnerAddress),
		VisitorID:       meta.VisitorID,
		LandingPath:     meta.LandingPath,
		UserAgentHash:   utils.HashIdentifier(meta.UserAgent),
		IPHash:          utils.HashIdentifier(meta.ClientIP),
		ExpiresAt:       now.Add(s.sessionTTL),
		CreatedAt:       now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		s.log.WithError(err).WithField("code", code).Error("failed to create referral session")
		return nil, err
	}
	if err := s.store.IncrementClicks(ctx, rc); err != nil {
		// the session is what conversion depends on; a lost click count is tolerable
		s.log.WithError(err).WithField("code", code).Warn("failed to increment referral clicks")
	}
	return session, nil
}

// ProcessReferralFromSession converts a click session once the visitor has
// authenticated with a wallet.
func (s *AffiliateService) ProcessReferralFromSession(ctx context.Context, sessionID, user string) (*models.AffiliateRelationship, error) {
	addr, err := requireAddress(user)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("user", addr).WithField("session", sessionID)

	session, err := s.store.FindSession(ctx, sessionID)
	if err != nil {
		log.WithError(err).Error("failed to load referral session")
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Converted {
		return nil, ErrSessionConverted
	}
	if !session.IsOpen(s.now()) {
		return nil, ErrSessionNotFound
	}

	// claim the session before redeeming so concurrent conversions lose
	if err := s.store.MarkSessionConverted(ctx, session.SessionID, addr, s.now()); err != nil {
		if !IsRejection(err) {
			log.WithError(err).Error("failed to claim referral session")
		}
		return nil, err
	}
	rel, err := s.ProcessReferralCode(ctx, session.ReferralCode, addr)
	if err != nil {
		if rerr := s.store.ReleaseSession(ctx, session.SessionID, addr); rerr != nil {
			log.WithError(rerr).Warn("failed to release referral session")
		}
		return nil, err
	}
	return rel, nil
}

// ExpireStaleSessions marks unconverted sessions past their expiry
func (s *AffiliateService) ExpireStaleSessions(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireSessions(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Error("failed to expire referral sessions")
		return 0, err
	}
	return n, nil
}
