package services

import (
	"context"
	"strings"
	"time"

	"affiliate-engine/logger"

	"github.com/sirupsen/logrus"
)

const (
	// MaxNetworkDepth bounds every downline traversal
	MaxNetworkDepth = 5

	defaultSessionTTL = 30 * 24 * time.Hour
	defaultCacheTTL   = time.Minute
)

// Dependencies wires an AffiliateService. Cache and Uploader are optional.
type Dependencies struct {
	Store    Store
	Cipher   FieldDecrypter
	Cache    MetricsCache
	Uploader Uploader
	Logger   logrus.FieldLogger

	CacheTTL          time.Duration
	SessionTTL        time.Duration
	AdminReferralCode string

	Now func() time.Time
}

// AffiliateService computes referral networks, metrics and commissions, and
// runs the referral-code lifecycle. It holds no per-request state.
type AffiliateService struct {
	store    Store
	cipher   FieldDecrypter
	cache    MetricsCache
	uploader Uploader
	log      *logrus.Entry

	cacheTTL   time.Duration
	sessionTTL time.Duration
	adminCode  string
	nowFn      func() time.Time
}

func NewAffiliateService(deps Dependencies) *AffiliateService {
	s := &AffiliateService{
		store:      deps.Store,
		cipher:     deps.Cipher,
		cache:      deps.Cache,
		uploader:   deps.Uploader,
		log:        logger.Component(deps.Logger, "affiliate"),
		cacheTTL:   deps.CacheTTL,
		sessionTTL: deps.SessionTTL,
		adminCode:  normalizeCode(deps.AdminReferralCode),
		nowFn:      deps.Now,
	}
	if s.cipher == nil {
		s.cipher = plaintextCipher{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = defaultSessionTTL
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	return s
}

func (s *AffiliateService) now() time.Time {
	return s.nowFn().UTC()
}

type plaintextCipher struct{}

func (plaintextCipher) Decrypt(value, _ string) string { return value }

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func requireAddress(addr string) (string, error) {
	a := normalizeAddress(addr)
	if a == "" {
		return "", ErrInvalidAddress
	}
	return a, nil
}

// cached serves key from the cache, or runs load on a fresh value and
// stores the result. Cache failures are logged and never fail the request.
func cached[T any](ctx context.Context, s *AffiliateService, key string, load func(out *T) error) (*T, error) {
	if s.cache != nil {
		hit := new(T)
		ok, err := s.cache.Get(ctx, key, hit)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("metrics cache read failed")
		} else if ok {
			return hit, nil
		}
	}
	out := new(T)
	if err := load(out); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("metrics cache write failed")
		}
	}
	return out, nil
}

func metricsKey(addr string) string { return "affiliate:metrics:" + addr }
func networkKey(addr string) string { return "affiliate:network:" + addr }

// invalidateUpline drops cached aggregates for addr and its sponsors, up to
// MaxNetworkDepth levels, since all of them now have a different downline.
func (s *AffiliateService) invalidateUpline(ctx context.Context, addr string) {
	if s.cache == nil {
		return
	}
	var keys []string
	seen := map[string]bool{}
	cur := addr
	for depth := 0; depth < MaxNetworkDepth && cur != "" && !seen[cur]; depth++ {
		seen[cur] = true
		keys = append(keys, metricsKey(cur), networkKey(cur))
		rel, err := s.store.FindActiveSponsor(ctx, cur)
		if err != nil {
			s.log.WithError(err).WithField("user", cur).Warn("sponsor lookup failed during cache invalidation")
			break
		}
		if rel == nil {
			break
		}
		cur = normalizeAddress(rel.ReferrerAddress)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).WithField("referrer", addr).Warn("metrics cache invalidation failed")
	}
}
