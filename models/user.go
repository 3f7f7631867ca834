package models

import (
	"strings"
	"time"
)

// RoleTier is the platform membership class
type RoleTier string

const (
	RoleNomad RoleTier = "NOMAD"
	RolePro   RoleTier = "PRO"
	RoleRoyal RoleTier = "ROYAL"
)

var RoleTiers = []RoleTier{RoleNomad, RolePro, RoleRoyal}

// ParseRoleTier accepts any casing; ok is false for unknown tiers.
func ParseRoleTier(s string) (RoleTier, bool) {
	t := RoleTier(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case RoleNomad, RolePro, RoleRoyal:
		return t, true
	}
	return "", false
}

type KYCStatus string

const (
	KYCVerified    KYCStatus = "verified"
	KYCPending     KYCStatus = "pending"
	KYCNotVerified KYCStatus = "not_verified"
)

// UserProfile is one row per wallet address. Username and Email are stored
// encrypted with a key derived from WalletAddress (legacy rows may be plaintext).
// The profile/XP systems own this table; it is only mirrored and read here.
type UserProfile struct {
	ID            string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	WalletAddress string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"wallet_address"`
	Username      string    `gorm:"type:text" json:"username"`
	Email         string    `gorm:"type:text" json:"email"`
	RoleTier      RoleTier  `gorm:"type:varchar(16);index;not null;default:'NOMAD'" json:"role_tier"`
	ProfileLevel  int       `gorm:"not null;default:1" json:"profile_level"`
	TotalXP       int64     `gorm:"not null;default:0" json:"total_xp"`
	KYCStatus     KYCStatus `gorm:"type:varchar(16);not null;default:'not_verified'" json:"kyc_status"`
	JoinDate      time.Time `json:"join_date"`

	Timestamps
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// Tier falls back to NOMAD for rows written before tiers existed
func (p UserProfile) Tier() RoleTier {
	if t, ok := ParseRoleTier(string(p.RoleTier)); ok {
		return t
	}
	return RoleNomad
}
