package services

import "errors"

// Business-rule rejections. Anything else returned by the service is an
// infrastructure failure (wrapped store error).
var (
	ErrInvalidAddress   = errors.New("wallet address is required")
	ErrAlreadySponsored = errors.New("user already has an active sponsor")
	ErrSelfReferral     = errors.New("cannot use your own referral code")
	ErrCodeNotFound     = errors.New("referral code not found")
	ErrCodeInactive     = errors.New("referral code is inactive")
	ErrCodeExpired      = errors.New("referral code has expired")
	ErrCodeExhausted    = errors.New("referral code usage limit reached")
	ErrCodeTaken        = errors.New("referral code already exists")
	ErrImmutableCode    = errors.New("referral codes cannot be updated or deleted")
	ErrSessionNotFound  = errors.New("referral session not found or expired")
	ErrSessionConverted = errors.New("referral session already converted")
	ErrExportDisabled   = errors.New("report export is not configured")
)

// IsRejection reports whether err is a business-rule rejection rather than a failure
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidAddress, ErrAlreadySponsored, ErrSelfReferral, ErrCodeNotFound,
		ErrCodeInactive, ErrCodeExpired, ErrCodeExhausted, ErrCodeTaken,
		ErrImmutableCode, ErrSessionNotFound, ErrSessionConverted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
