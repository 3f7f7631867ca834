package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	CommissionSignup       CommissionType = "signup"
	CommissionSubscription CommissionType = "subscription"
	CommissionPurchase     CommissionType = "purchase"
	CommissionTradingFee   CommissionType = "trading_fee"
	CommissionOther        CommissionType = "other"
)

var CommissionTypes = []CommissionType{
	CommissionSignup, CommissionSubscription, CommissionPurchase, CommissionTradingFee, CommissionOther,
}

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionConfirmed CommissionStatus = "confirmed"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

// EarnedStatuses are the statuses that count toward commission totals
var EarnedStatuses = []CommissionStatus{CommissionConfirmed, CommissionPaid}

// AffiliateCommission is written by purchase/subscription flows; only Status changes afterwards.
type AffiliateCommission struct {
	ID               string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerAddress  string           `gorm:"type:varchar(128);index;not null" json:"referrer_address"`
	RefereeAddress   string           `gorm:"type:varchar(128);index;not null" json:"referee_address"`
	CommissionAmount decimal.Decimal  `gorm:"type:decimal(38,18);not null" json:"commission_amount"`
	CommissionType   CommissionType   `gorm:"type:varchar(32);not null" json:"commission_type"`
	Status           CommissionStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	EarnedAt         time.Time        `gorm:"index" json:"earned_at"`

	Timestamps
}

func (AffiliateCommission) TableName() string {
	return "affiliate_commissions"
}

// NormalizedType maps unknown stored types into the "other" bucket
func (c AffiliateCommission) NormalizedType() CommissionType {
	for _, t := range CommissionTypes {
		if c.CommissionType == t {
			return t
		}
	}
	return CommissionOther
}
