package services_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"affiliate-engine/models"
	"affiliate-engine/repository"
	"affiliate-engine/services"
	"affiliate-engine/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0xaaaa000000000000000000000000000000000001"
	addrB = "0xbbbb000000000000000000000000000000000002"
	addrC = "0xcccc000000000000000000000000000000000003"
	addrD = "0xdddd000000000000000000000000000000000004"
	addrE = "0xeeee000000000000000000000000000000000005"

	testSecret = "test-salt"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *repository.MemoryStore
	cipher   *utils.FieldCipher
	cache    *memoryCache
	uploader *memoryUploader
	now      time.Time
	svc      *services.AffiliateService
}

type option func(*services.Dependencies, *fixture)

func withCache() option {
	return func(d *services.Dependencies, f *fixture) { d.Cache = f.cache }
}

func withUploader() option {
	return func(d *services.Dependencies, f *fixture) { d.Uploader = f.uploader }
}

func withAdminCode(code string) option {
	return func(d *services.Dependencies, _ *fixture) { d.AdminReferralCode = code }
}

// withStore wraps the memory store, e.g. to inject hooks
func withStore(wrap func(services.Store) services.Store) option {
	return func(d *services.Dependencies, _ *fixture) { d.Store = wrap(d.Store) }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	f := &fixture{
		store:    repository.NewMemoryStore(),
		cipher:   utils.NewFieldCipher(testSecret),
		cache:    newMemoryCache(),
		uploader: &memoryUploader{},
		now:      baseTime,
	}
	deps := services.Dependencies{
		Store:  f.store,
		Cipher: f.cipher,
		Logger: quiet,
		Now:    func() time.Time { return f.now },
	}
	for _, o := range opts {
		o(&deps, f)
	}
	f.svc = services.NewAffiliateService(deps)
	return f
}

// profile stores an encrypted profile for addr
func (f *fixture) profile(t *testing.T, addr string, tier models.RoleTier, level int, username string) {
	t.Helper()
	enc, err := f.cipher.Encrypt(username, addr)
	require.NoError(t, err)
	email, err := f.cipher.Encrypt(username+"@example.com", addr)
	require.NoError(t, err)
	require.NoError(t, f.store.UpsertProfiles(context.Background(), []models.UserProfile{{
		ID:            "p-" + addr,
		WalletAddress: addr,
		Username:      enc,
		Email:         email,
		RoleTier:      tier,
		ProfileLevel:  level,
		KYCStatus:     models.KYCVerified,
		JoinDate:      baseTime,
	}}))
}

// refer adds an active edge; minutesAgo orders join dates
func (f *fixture) refer(referrer, referee string, minutesAgo int) {
	f.store.AddRelationship(referrer, referee, "", baseTime.Add(-time.Duration(minutesAgo)*time.Minute))
}

func (f *fixture) code(code, owner string, mutate ...func(*models.ReferralCode)) {
	rc := models.ReferralCode{
		ID: "code-" + code,
		CodeFields: models.CodeFields{
			Code:         code,
			OwnerAddress: owner,
			IsActive:     true,
		},
		IsDefault: true,
	}
	for _, m := range mutate {
		m(&rc)
	}
	f.store.Codes = append(f.store.Codes, rc)
}

func (f *fixture) commission(referrer, referee, amount string, typ models.CommissionType, status models.CommissionStatus, minutesAgo int) {
	f.store.Commissions = append(f.store.Commissions, models.AffiliateCommission{
		ID:               referee + "-" + amount + "-" + string(status),
		ReferrerAddress:  referrer,
		RefereeAddress:   referee,
		CommissionAmount: decimal.RequireFromString(amount),
		CommissionType:   typ,
		Status:           status,
		EarnedAt:         baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
	})
}

// scenario builds A→B (NOMAD, 2), A→C (PRO, 6), B→D (ROYAL, 5)
func (f *fixture) scenario(t *testing.T) {
	t.Helper()
	f.profile(t, addrB, models.RoleNomad, 2, "bob")
	f.profile(t, addrC, models.RolePro, 6, "carol")
	f.profile(t, addrD, models.RoleRoyal, 5, "dave")
	f.refer(addrA, addrB, 30)
	f.refer(addrA, addrC, 20)
	f.refer(addrB, addrD, 10)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = b
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type memoryUploader struct {
	key         string
	body        string
	contentType string
}

func (u *memoryUploader) Upload(_ context.Context, key string, body []byte, contentType string) (string, error) {
	u.key, u.body, u.contentType = key, string(body), contentType
	return "https://cdn.example.com/" + key, nil
}

func (u *memoryUploader) lines() []string {
	return strings.Split(strings.TrimSpace(u.body), "\n")
}
