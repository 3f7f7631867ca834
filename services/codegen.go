package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"affiliate-engine/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	codePrefixMax  = 8
	codeSuffixLen  = 4
	codeGenRetries = 5
	// no 0/O or 1/I
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var randInt = func(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// codePrefix turns a vanity string or username into an uppercase prefix
func codePrefix(base string) string {
	p := strings.ToUpper(strings.ReplaceAll(slug.Make(base), "-", ""))
	if len(p) > codePrefixMax {
		p = p[:codePrefixMax]
	}
	if p == "" {
		p = "REF"
	}
	return p
}

func randomSuffix() (string, error) {
	var b strings.Builder
	for i := 0; i < codeSuffixLen; i++ {
		n, err := randInt(len(codeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n])
	}
	return b.String(), nil
}

// GetDefaultReferralCode returns the owner's default code without creating
// one; ErrCodeNotFound when there is none.
func (s *AffiliateService) GetDefaultReferralCode(ctx context.Context, owner string) (*models.ReferralCode, error) {
	addr, err := requireAddress(owner)
	if err != nil {
		return nil, err
	}
	rc, err := s.store.FindDefaultCode(ctx, addr)
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to load default referral code")
		return nil, err
	}
	if rc == nil {
		return nil, ErrCodeNotFound
	}
	return rc, nil
}

// GetOrCreateReferralCode returns the owner's default code, creating one when
// missing. The prefix comes from vanity, else the decrypted username.
func (s *AffiliateService) GetOrCreateReferralCode(ctx context.Context, owner, vanity string) (*models.ReferralCode, error) {
	addr, err := requireAddress(owner)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("referrer", addr)

	existing, err := s.store.FindDefaultCode(ctx, addr)
	if err != nil {
		log.WithError(err).Error("failed to load default referral code")
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	base := strings.TrimSpace(vanity)
	if base == "" {
		p, err := s.store.FindProfile(ctx, addr)
		if err != nil {
			log.WithError(err).Error("failed to load profile for code generation")
			return nil, err
		}
		if p != nil {
			base = s.cipher.Decrypt(p.Username, addr)
		}
	}
	prefix := codePrefix(base)

	for attempt := 0; attempt < codeGenRetries; attempt++ {
		suffix, err := randomSuffix()
		if err != nil {
			return nil, err
		}
		rc := &models.ReferralCode{
			ID: uuid.NewString(),
			CodeFields: models.CodeFields{
				Code:         prefix + suffix,
				OwnerAddress: addr,
				IsActive:     true,
			},
			IsDefault: true,
			Source:    models.CodeSourcePrimary,
		}
		err = s.store.CreateCode(ctx, rc)
		if err == nil {
			log.WithField("code", rc.Code).Info("referral code created")
			return rc, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			log.WithError(err).Error("failed to create referral code")
			return nil, err
		}
	}
	return nil, fmt.Errorf("generate referral code for %s: %w", addr, ErrCodeTaken)
}
