package models

import "time"

// ReferralSession records a referral-link click before the visitor's wallet
// is known. It is converted at most once.
type ReferralSession struct {
	SessionID            string     `gorm:"primaryKey;type:varchar(64)" json:"session_id"`
	ReferralCode         string     `gorm:"type:varchar(32);index;not null" json:"referral_code"`
	ReferrerAddress      string     `gorm:"type:varchar(128);index;not null" json:"referrer_address"`
	VisitorID            string     `gorm:"type:varchar(128);index" json:"visitor_id,omitempty"`
	LandingPath          string     `gorm:"type:varchar(512)" json:"landing_path,omitempty"`
	UserAgentHash        string     `gorm:"type:varchar(64)" json:"-"`
	IPHash               string     `gorm:"type:varchar(64)" json:"-"`
	Converted            bool       `gorm:"index;not null;default:false" json:"converted"`
	ConvertedAt          *time.Time `json:"converted_at,omitempty"`
	ConvertedUserAddress *string    `gorm:"type:varchar(128)" json:"converted_user_address,omitempty"`
	Expired              bool       `gorm:"not null;default:false" json:"expired"`
	ExpiresAt            time.Time  `gorm:"index" json:"expires_at"`
	CreatedAt            time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (ReferralSession) TableName() string {
	return "referral_sessions"
}

// IsOpen reports whether the session can still be converted
func (s ReferralSession) IsOpen(now time.Time) bool {
	return !s.Converted && !s.Expired && now.Before(s.ExpiresAt)
}
