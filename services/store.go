package services

import (
	"context"
	"time"

	"affiliate-engine/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface the affiliate engine needs.
// Lookups that find nothing return (nil, nil).
type Store interface {
	// ListActiveReferees returns active relationships whose referrer is in referrers
	ListActiveReferees(ctx context.Context, referrers []string) ([]models.AffiliateRelationship, error)
	FindActiveSponsor(ctx context.Context, referee string) (*models.AffiliateRelationship, error)

	ListProfiles(ctx context.Context, addresses []string) ([]models.UserProfile, error)
	FindProfile(ctx context.Context, address string) (*models.UserProfile, error)
	UpsertProfiles(ctx context.Context, profiles []models.UserProfile) error

	// ListCommissions returns the referrer's commissions in the given statuses, newest first
	ListCommissions(ctx context.Context, referrer string, statuses []models.CommissionStatus) ([]models.AffiliateCommission, error)
	// SumCommissionsByReferee sums confirmed/paid commissions per referee address
	SumCommissionsByReferee(ctx context.Context, referrer string, referees []string) (map[string]decimal.Decimal, error)

	// FindCode looks in referral_codes first, then extra_codes
	FindCode(ctx context.Context, code string) (*models.ReferralCode, error)
	FindDefaultCode(ctx context.Context, owner string) (*models.ReferralCode, error)
	// CreateCode returns ErrCodeTaken when the code string is already used
	CreateCode(ctx context.Context, code *models.ReferralCode) error
	// RedeemCode atomically bumps usage/conversion counters (respecting the
	// usage limit, ErrCodeExhausted otherwise) and inserts rel.
	RedeemCode(ctx context.Context, code *models.ReferralCode, rel *models.AffiliateRelationship) error
	IncrementClicks(ctx context.Context, code *models.ReferralCode) error
	DeactivateExpiredCodes(ctx context.Context, now time.Time) (int64, error)

	CreateSession(ctx context.Context, session *models.ReferralSession) error
	FindSession(ctx context.Context, sessionID string) (*models.ReferralSession, error)
	// MarkSessionConverted returns ErrSessionConverted if it was already converted
	MarkSessionConverted(ctx context.Context, sessionID, user string, at time.Time) error
	// ReleaseSession reopens a session converted by user
	ReleaseSession(ctx context.Context, sessionID, user string) error
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)

	RecordRedemption(ctx context.Context, r *models.ReferralRedemption) error
}

// FieldDecrypter decrypts stored PII for the owning address; it never fails.
type FieldDecrypter interface {
	Decrypt(value, address string) string
}

// MetricsCache caches dashboard aggregates. Get reports false on a miss.
type MetricsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Uploader stores generated reports and returns their URL
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}
