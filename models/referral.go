package models

import "time"

type RelationshipStatus string

const (
	RelationshipActive   RelationshipStatus = "active"
	RelationshipInactive RelationshipStatus = "inactive"
)

// AffiliateRelationship is a sponsor edge: referrer → referee.
// A referee has at most one active row (partial unique index).
type AffiliateRelationship struct {
	ID                 string             `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerAddress    string             `gorm:"type:varchar(128);index;not null" json:"referrer_address"`
	RefereeAddress     string             `gorm:"type:varchar(128);not null;index:uniq_active_referee,unique,where:relationship_status = 'active'" json:"referee_address"`
	RelationshipStatus RelationshipStatus `gorm:"type:varchar(16);index;not null;default:'active'" json:"relationship_status"`
	ReferralCode       string             `gorm:"type:varchar(32);index" json:"referral_code,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
}

func (AffiliateRelationship) TableName() string {
	return "affiliate_relationships"
}

type RedemptionOutcome string

const (
	RedemptionAttached      RedemptionOutcome = "attached"
	RedemptionInformational RedemptionOutcome = "informational"
	RedemptionRejected      RedemptionOutcome = "rejected"
)

// ReferralRedemption is the audit trail of code redemption attempts
type ReferralRedemption struct {
	ID              string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code            string            `gorm:"type:varchar(32);index" json:"code"`
	UserAddress     string            `gorm:"type:varchar(128);index;not null" json:"user_address"`
	ReferrerAddress string            `gorm:"type:varchar(128)" json:"referrer_address,omitempty"`
	Outcome         RedemptionOutcome `gorm:"type:varchar(16);not null" json:"outcome"`
	Reason          string            `gorm:"type:varchar(255)" json:"reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

func (ReferralRedemption) TableName() string {
	return "referral_redemptions"
}
