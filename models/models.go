package models

// All returns every model owned by this service, in migration order
func All() []interface{} {
	return []interface{}{
		&UserProfile{},
		&AffiliateRelationship{},
		&AffiliateCommission{},
		&ReferralCode{},
		&ExtraCode{},
		&ReferralSession{},
		&ReferralRedemption{},
	}
}
