package services

import (
	"context"
	"time"

	"affiliate-engine/models"
)

// SponsorInfo describes a user's sponsor. AffiliateLevel here is derived
// from the sponsor's profile level.
type SponsorInfo struct {
	Address        string          `json:"address"`
	Username       string          `json:"username"`
	RoleTier       models.RoleTier `json:"role_tier"`
	ProfileLevel   int             `json:"profile_level"`
	AffiliateLevel int             `json:"affiliate_level"`
	ReferralCode   string          `json:"referral_code,omitempty"`
	SponsoredAt    time.Time       `json:"sponsored_at"`
}

// GetSponsorInfo returns nil when the user has no active sponsor
func (s *AffiliateService) GetSponsorInfo(ctx context.Context, user string) (*SponsorInfo, error) {
	rel, err := s.CheckExistingReferralRelationship(ctx, user)
	if err != nil || rel == nil {
		return nil, err
	}
	sponsor := normalizeAddress(rel.ReferrerAddress)
	info := &SponsorInfo{
		Address:        sponsor,
		RoleTier:       models.RoleNomad,
		ProfileLevel:   1,
		AffiliateLevel: CalculateAffiliateLevel(1),
		ReferralCode:   rel.ReferralCode,
		SponsoredAt:    rel.CreatedAt,
	}
	p, err := s.store.FindProfile(ctx, sponsor)
	if err != nil {
		s.log.WithError(err).WithField("referrer", sponsor).Error("failed to load sponsor profile")
		return nil, err
	}
	if p != nil {
		info.Username = s.cipher.Decrypt(p.Username, sponsor)
		info.RoleTier = p.Tier()
		info.ProfileLevel = p.ProfileLevel
		info.AffiliateLevel = CalculateAffiliateLevel(p.ProfileLevel)
	}
	return info, nil
}
