package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process services.Store for tests and local runs.
// It follows the same matching rules as GormStore: addresses compare
// case-insensitively and codes are matched upper-cased.
type MemoryStore struct {
	mu sync.Mutex

	Relationships []models.AffiliateRelationship
	Profiles      []models.UserProfile
	Commissions   []models.AffiliateCommission
	Codes         []models.ReferralCode
	ExtraCodes    []models.ExtraCode
	Sessions      []models.ReferralSession
	Redemptions   []models.ReferralRedemption
}

var _ services.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func setOf(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, v := range in {
		out[lower(v)] = true
	}
	return out
}

// AddRelationship appends an active edge created at the given time
func (m *MemoryStore) AddRelationship(referrer, referee, code string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Relationships = append(m.Relationships, models.AffiliateRelationship{
		ID:                 referrer + "->" + referee,
		ReferrerAddress:    referrer,
		RefereeAddress:     referee,
		RelationshipStatus: models.RelationshipActive,
		ReferralCode:       code,
		CreatedAt:          at,
	})
}

func (m *MemoryStore) ListActiveReferees(_ context.Context, referrers []string) ([]models.AffiliateRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := setOf(referrers)
	var out []models.AffiliateRelationship
	for _, r := range m.Relationships {
		if r.RelationshipStatus == models.RelationshipActive && want[lower(r.ReferrerAddress)] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindActiveSponsor(_ context.Context, referee string) (*models.AffiliateRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSponsorLocked(referee), nil
}

func (m *MemoryStore) activeSponsorLocked(referee string) *models.AffiliateRelationship {
	var found *models.AffiliateRelationship
	for i := range m.Relationships {
		r := m.Relationships[i]
		if r.RelationshipStatus != models.RelationshipActive || lower(r.RefereeAddress) != lower(referee) {
			continue
		}
		if found == nil || r.CreatedAt.Before(found.CreatedAt) {
			cp := r
			found = &cp
		}
	}
	return found
}

func (m *MemoryStore) ListProfiles(_ context.Context, addresses []string) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := setOf(addresses)
	var out []models.UserProfile
	for _, p := range m.Profiles {
		if want[lower(p.WalletAddress)] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) FindProfile(_ context.Context, address string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Profiles {
		if lower(p.WalletAddress) == lower(address) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpsertProfiles(_ context.Context, profiles []models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		replaced := false
		for i := range m.Profiles {
			if lower(m.Profiles[i].WalletAddress) == lower(p.WalletAddress) {
				p.ID = m.Profiles[i].ID
				m.Profiles[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			m.Profiles = append(m.Profiles, p)
		}
	}
	return nil
}

func (m *MemoryStore) LatestProfileUpdate(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, p := range m.Profiles {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}
	return latest, nil
}

func hasStatus(s models.CommissionStatus, statuses []models.CommissionStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (m *MemoryStore) ListCommissions(_ context.Context, referrer string, statuses []models.CommissionStatus) ([]models.AffiliateCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AffiliateCommission
	for _, c := range m.Commissions {
		if lower(c.ReferrerAddress) == lower(referrer) && hasStatus(c.Status, statuses) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EarnedAt.After(out[j].EarnedAt) })
	return out, nil
}

func (m *MemoryStore) SumCommissionsByReferee(_ context.Context, referrer string, referees []string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := setOf(referees)
	out := make(map[string]decimal.Decimal, len(referees))
	for _, c := range m.Commissions {
		ref := lower(c.RefereeAddress)
		if lower(c.ReferrerAddress) != lower(referrer) || !want[ref] || !hasStatus(c.Status, models.EarnedStatuses) {
			continue
		}
		out[ref] = out[ref].Add(c.CommissionAmount)
	}
	return out, nil
}

func (m *MemoryStore) FindCode(_ context.Context, code string) (*models.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Codes {
		if upper(c.Code) == upper(code) {
			cp := c
			cp.Source = models.CodeSourcePrimary
			return &cp, nil
		}
	}
	for _, e := range m.ExtraCodes {
		if upper(e.Code) == upper(code) {
			cp := e.AsReferralCode()
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindDefaultCode(_ context.Context, owner string) (*models.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Codes {
		if c.IsDefault && lower(c.OwnerAddress) == lower(owner) {
			cp := c
			cp.Source = models.CodeSourcePrimary
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) codeTakenLocked(code string) bool {
	for _, c := range m.Codes {
		if upper(c.Code) == upper(code) {
			return true
		}
	}
	for _, e := range m.ExtraCodes {
		if upper(e.Code) == upper(code) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateCode(_ context.Context, code *models.ReferralCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeTakenLocked(code.Code) {
		return services.ErrCodeTaken
	}
	m.Codes = append(m.Codes, *code)
	return nil
}

// codeFieldsLocked returns the stored counters for code, whichever table holds it
func (m *MemoryStore) codeFieldsLocked(code *models.ReferralCode) *models.CodeFields {
	if code.Source == models.CodeSourceExtra {
		for i := range m.ExtraCodes {
			if m.ExtraCodes[i].ID == code.ID {
				return &m.ExtraCodes[i].CodeFields
			}
		}
		return nil
	}
	for i := range m.Codes {
		if m.Codes[i].ID == code.ID {
			return &m.Codes[i].CodeFields
		}
	}
	return nil
}

func (m *MemoryStore) RedeemCode(_ context.Context, code *models.ReferralCode, rel *models.AffiliateRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeSponsorLocked(rel.RefereeAddress) != nil {
		return services.ErrAlreadySponsored
	}
	f := m.codeFieldsLocked(code)
	if f == nil || !f.IsActive || f.IsExhausted() {
		return services.ErrCodeExhausted
	}
	f.UsageCount++
	f.SuccessfulConversions++
	m.Relationships = append(m.Relationships, *rel)
	code.UsageCount = f.UsageCount
	code.SuccessfulConversions = f.SuccessfulConversions
	return nil
}

func (m *MemoryStore) IncrementClicks(_ context.Context, code *models.ReferralCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f := m.codeFieldsLocked(code); f != nil {
		f.TotalClicks++
		code.TotalClicks = f.TotalClicks
	}
	return nil
}

func (m *MemoryStore) DeactivateExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	deactivate := func(f *models.CodeFields) {
		if f.IsActive && f.IsExpired(now) {
			f.IsActive = false
			n++
		}
	}
	for i := range m.Codes {
		deactivate(&m.Codes[i].CodeFields)
	}
	for i := range m.ExtraCodes {
		deactivate(&m.ExtraCodes[i].CodeFields)
	}
	return n, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session *models.ReferralSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions = append(m.Sessions, *session)
	return nil
}

func (m *MemoryStore) FindSession(_ context.Context, sessionID string) (*models.ReferralSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.SessionID == sessionID {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) MarkSessionConverted(_ context.Context, sessionID, user string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Sessions {
		s := &m.Sessions[i]
		if s.SessionID != sessionID {
			continue
		}
		if s.Converted {
			return services.ErrSessionConverted
		}
		s.Converted = true
		s.ConvertedAt = &at
		s.ConvertedUserAddress = &user
		return nil
	}
	return services.ErrSessionNotFound
}

func (m *MemoryStore) ReleaseSession(_ context.Context, sessionID, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Sessions {
		s := &m.Sessions[i]
		if s.SessionID == sessionID && s.Converted && s.ConvertedUserAddress != nil && *s.ConvertedUserAddress == user {
			s.Converted = false
			s.ConvertedAt = nil
			s.ConvertedUserAddress = nil
		}
	}
	return nil
}

func (m *MemoryStore) ExpireSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.Sessions {
		s := &m.Sessions[i]
		if !s.Converted && !s.Expired && !now.Before(s.ExpiresAt) {
			s.Expired = true
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RecordRedemption(_ context.Context, r *models.ReferralRedemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Redemptions = append(m.Redemptions, *r)
	return nil
}
