package services

// CalculateAffiliateLevel maps a profile level to an affiliate level 1–5.
// Levels 1–4 mirror the profile level and anything from 5 up is 5. Role tier
// plays no part. Note that the network listing reports referral depth in its
// AffiliateLevel field instead; see AffiliateUser.
func CalculateAffiliateLevel(profileLevel int) int {
	switch {
	case profileLevel >= 5:
		return 5
	case profileLevel < 1:
		return 1
	default:
		return profileLevel
	}
}
