package models

import "time"

type CodeSource string

const (
	CodeSourcePrimary CodeSource = "referral_codes"
	CodeSourceExtra   CodeSource = "extra_codes"
)

// CodeFields is shared by referral_codes and extra_codes.
// Code and OwnerAddress never change once written; only the counters and
// the active flag do.
type CodeFields struct {
	Code                  string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	OwnerAddress          string     `gorm:"type:varchar(128);index;not null" json:"owner_address"`
	IsActive              bool       `gorm:"not null" json:"is_active"`
	UsageLimit            int        `gorm:"not null;default:0" json:"usage_limit"` // 0 = unlimited
	UsageCount            int        `gorm:"not null;default:0" json:"usage_count"`
	SuccessfulConversions int        `gorm:"not null;default:0" json:"successful_conversions"`
	TotalClicks           int        `gorm:"not null;default:0" json:"total_clicks"`
	ExpiresAt             *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

func (f CodeFields) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

func (f CodeFields) IsExhausted() bool {
	return f.UsageLimit > 0 && f.UsageCount >= f.UsageLimit
}

// ReferralCode is a user's own code; at most one per owner is the default.
type ReferralCode struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CodeFields `gorm:"embedded"`
	IsDefault  bool       `gorm:"index;not null;default:false" json:"is_default"`
	Source     CodeSource `gorm:"-" json:"source"`

	Timestamps
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}

// ExtraCode is a supplemental code (promotional or admin issued) that
// redeems exactly like a ReferralCode.
type ExtraCode struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CodeFields `gorm:"embedded"`
	Campaign   string `gorm:"type:varchar(64)" json:"campaign,omitempty"`

	Timestamps
}

func (ExtraCode) TableName() string {
	return "extra_codes"
}

// AsReferralCode gives extra codes the same shape as primary codes for redemption
func (e ExtraCode) AsReferralCode() ReferralCode {
	return ReferralCode{
		ID:         e.ID,
		CodeFields: e.CodeFields,
		Source:     CodeSourceExtra,
		Timestamps: e.Timestamps,
	}
}
