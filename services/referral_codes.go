package services

import (
	"context"
	"fmt"
	"time"

	"affiliate-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CodeOperation names an operation on an existing referral code
type CodeOperation string

const (
	CodeOpRead                 CodeOperation = "read"
	CodeOpCreate               CodeOperation = "create"
	CodeOpUpdate               CodeOperation = "update"
	CodeOpDelete               CodeOperation = "delete"
	CodeOpIncrementUsage       CodeOperation = "increment_usage"
	CodeOpIncrementClicks      CodeOperation = "increment_clicks"
	CodeOpIncrementConversions CodeOperation = "increment_conversions"
)

// ValidateReferralCodeImmutability rejects update and delete. Relationships
// keep the code string, so a code's identity is fixed once created; only its
// counters move.
func ValidateReferralCodeImmutability(op CodeOperation) error {
	switch op {
	case CodeOpUpdate, CodeOpDelete:
		return ErrImmutableCode
	}
	return nil
}

// CheckExistingReferralRelationship returns the user's active sponsor edge, or nil
func (s *AffiliateService) CheckExistingReferralRelationship(ctx context.Context, user string) (*models.AffiliateRelationship, error) {
	addr, err := requireAddress(user)
	if err != nil {
		return nil, err
	}
	rel, err := s.store.FindActiveSponsor(ctx, addr)
	if err != nil {
		s.log.WithError(err).WithField("user", addr).Error("failed to check existing referral relationship")
		return nil, err
	}
	return rel, nil
}

// usableCode loads code and checks it can be redeemed right now
func (s *AffiliateService) usableCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	if code == "" {
		return nil, ErrCodeNotFound
	}
	rc, err := s.store.FindCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup referral code %s: %w", code, err)
	}
	if rc == nil {
		return nil, ErrCodeNotFound
	}
	switch {
	case !rc.IsActive:
		return rc, ErrCodeInactive
	case rc.IsExpired(s.now()):
		return rc, ErrCodeExpired
	case rc.IsExhausted():
		return rc, ErrCodeExhausted
	}
	return rc, nil
}

// ProcessReferralCode attaches user to the owner of code. The existing-sponsor
// check runs before the code is even looked up.
func (s *AffiliateService) ProcessReferralCode(ctx context.Context, code, user string) (*models.AffiliateRelationship, error) {
	addr, err := requireAddress(user)
	if err != nil {
		return nil, err
	}
	code = normalizeCode(code)
	log := s.log.WithField("user", addr).WithField("code", code)

	existing, err := s.store.FindActiveSponsor(ctx, addr)
	if err != nil {
		log.WithError(err).Error("failed to check existing sponsor")
		return nil, err
	}
	if existing != nil {
		s.recordRedemption(ctx, code, addr, existing.ReferrerAddress, models.RedemptionRejected, ErrAlreadySponsored)
		return nil, ErrAlreadySponsored
	}

	rc, err := s.usableCode(ctx, code)
	if err != nil {
		if !IsRejection(err) {
			log.WithError(err).Error("failed to load referral code")
			return nil, err
		}
		s.recordRedemption(ctx, code, addr, "", models.RedemptionRejected, err)
		return nil, err
	}
	owner := normalizeAddress(rc.OwnerAddress)
	if owner == addr {
		s.recordRedemption(ctx, code, addr, owner, models.RedemptionRejected, ErrSelfReferral)
		return nil, ErrSelfReferral
	}

	rel := &models.AffiliateRelationship{
		ID:                 uuid.NewString(),
		ReferrerAddress:    owner,
		RefereeAddress:     addr,
		RelationshipStatus: models.RelationshipActive,
		ReferralCode:       rc.Code,
		CreatedAt:          s.now(),
	}
	if err := s.store.RedeemCode(ctx, rc, rel); err != nil {
		if IsRejection(err) {
			s.recordRedemption(ctx, code, addr, owner, models.RedemptionRejected, err)
			return nil, err
		}
		log.WithError(err).Error("failed to create referral relationship")
		return nil, err
	}
	s.recordRedemption(ctx, code, addr, owner, models.RedemptionAttached, nil)
	s.invalidateUpline(ctx, owner)
	log.WithField("referrer", owner).Info("referral relationship created")
	return rel, nil
}

// ProcessAdminDefaultReferral redeems the configured admin fallback code. A
// user who already has a sponsor keeps it; the attempt is only recorded.
func (s *AffiliateService) ProcessAdminDefaultReferral(ctx context.Context, user string) (*models.AffiliateRelationship, error) {
	addr, err := requireAddress(user)
	if err != nil {
		return nil, err
	}
	if s.adminCode == "" {
		return nil, ErrCodeNotFound
	}
	existing, err := s.store.FindActiveSponsor(ctx, addr)
	if err != nil {
		s.log.WithError(err).WithField("user", addr).Error("failed to check existing sponsor")
		return nil, err
	}
	if existing != nil {
		s.recordRedemption(ctx, s.adminCode, addr, existing.ReferrerAddress, models.RedemptionInformational, nil)
		return existing, nil
	}
	return s.ProcessReferralCode(ctx, s.adminCode, addr)
}

func (s *AffiliateService) recordRedemption(ctx context.Context, code, user, referrer string, outcome models.RedemptionOutcome, reason error) {
	r := &models.ReferralRedemption{
		ID:              uuid.NewString(),
		Code:            code,
		UserAddress:     user,
		ReferrerAddress: normalizeAddress(referrer),
		Outcome:         outcome,
		CreatedAt:       s.now(),
	}
	if reason != nil {
		r.Reason = reason.Error()
	}
	if err := s.store.RecordRedemption(ctx, r); err != nil {
		s.log.WithError(err).WithField("user", user).WithField("code", code).Warn("failed to record redemption")
	}
}

// CodeValidation is the side-effect free answer for a signup form
type CodeValidation struct {
	Code         string `json:"code"`
	Valid        bool   `json:"valid"`
	Reason       string `json:"reason,omitempty"`
	OwnerAddress string `json:"owner_address,omitempty"`
}

func (s *AffiliateService) ValidateReferralCode(ctx context.Context, code string) (*CodeValidation, error) {
	code = normalizeCode(code)
	out := &CodeValidation{Code: code}
	rc, err := s.usableCode(ctx, code)
	if err != nil && !IsRejection(err) {
		s.log.WithError(err).WithField("code", code).Error("failed to validate referral code")
		return nil, err
	}
	if rc != nil {
		out.OwnerAddress = normalizeAddress(rc.OwnerAddress)
	}
	if err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	out.Valid = true
	return out, nil
}

// ReferralStats summarizes the owner's default code
type ReferralStats struct {
	Code           string          `json:"code"`
	TotalClicks    int             `json:"total_clicks"`
	UsageCount     int             `json:"usage_count"`
	UsageLimit     int             `json:"usage_limit"`
	Conversions    int             `json:"conversions"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

// GetReferralStats reports click/conversion counters; zero stats when the owner has no code
func (s *AffiliateService) GetReferralStats(ctx context.Context, owner string) (*ReferralStats, error) {
	addr, err := requireAddress(owner)
	if err != nil {
		return nil, err
	}
	rc, err := s.store.FindDefaultCode(ctx, addr)
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to load referral code")
		return nil, err
	}
	out := &ReferralStats{ConversionRate: decimal.Zero}
	if rc == nil {
		return out, nil
	}
	out.Code = rc.Code
	out.TotalClicks = rc.TotalClicks
	out.UsageCount = rc.UsageCount
	out.UsageLimit = rc.UsageLimit
	out.Conversions = rc.SuccessfulConversions
	out.ExpiresAt = rc.ExpiresAt
	if rc.TotalClicks > 0 {
		out.ConversionRate = decimal.NewFromInt(int64(rc.SuccessfulConversions)).
			Div(decimal.NewFromInt(int64(rc.TotalClicks))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return out, nil
}

// DeactivateExpiredCodes flips is_active off for codes past expires_at
func (s *AffiliateService) DeactivateExpiredCodes(ctx context.Context) (int64, error) {
	n, err := s.store.DeactivateExpiredCodes(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Error("failed to deactivate expired referral codes")
		return 0, err
	}
	return n, nil
}

// EnsureAdminReferralCode makes sure the configured admin default code exists
// and belongs to owner. An existing code is left untouched.
func (s *AffiliateService) EnsureAdminReferralCode(ctx context.Context, owner string) (*models.ReferralCode, error) {
	addr, err := requireAddress(owner)
	if err != nil {
		return nil, err
	}
	if s.adminCode == "" {
		return nil, ErrCodeNotFound
	}
	rc, err := s.store.FindCode(ctx, s.adminCode)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		if normalizeAddress(rc.OwnerAddress) != addr {
			s.log.WithField("code", rc.Code).WithField("owner", rc.OwnerAddress).Warn("admin referral code is owned by another address")
		}
		return rc, nil
	}
	rc = &models.ReferralCode{
		ID: uuid.NewString(),
		CodeFields: models.CodeFields{
			Code:         s.adminCode,
			OwnerAddress: addr,
			IsActive:     true,
		},
		Source: models.CodeSourcePrimary,
	}
	if err := s.store.CreateCode(ctx, rc); err != nil {
		return nil, err
	}
	s.log.WithField("code", rc.Code).Info("admin referral code created")
	return rc, nil
}
