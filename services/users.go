package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"affiliate-engine/models"

	"github.com/shopspring/decimal"
)

const (
	DefaultUsersLimit = 50
	MaxUsersLimit     = 500
)

// UserFilter selects and pages the affiliate listing.
// RoleFilter "" or "ALL" disables the tier filter; LevelFilter 0 disables the
// depth filter.
type UserFilter struct {
	RoleFilter     string
	LevelFilter    int
	IncludeNetwork bool
	Search         string
	Limit          int
	Offset         int
}

func (f UserFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultUsersLimit
	case f.Limit > MaxUsersLimit:
		return MaxUsersLimit
	}
	return f.Limit
}

// AffiliateUser is one row of the affiliate listing.
// AffiliateLevel is the referral depth (1 = direct, up to 5), not the
// profile-derived level GetSponsorInfo reports.
type AffiliateUser struct {
	Address         string           `json:"address"`
	Username        string           `json:"username"`
	Email           string           `json:"email"`
	RoleTier        models.RoleTier  `json:"role_tier"`
	ProfileLevel    int              `json:"profile_level"`
	AffiliateLevel  int              `json:"affiliate_level"`
	KYCStatus       models.KYCStatus `json:"kyc_status"`
	SponsorAddress  string           `json:"sponsor_address"`
	SponsorUsername string           `json:"sponsor_username"`
	ReferralCode    string           `json:"referral_code,omitempty"`
	Commission      decimal.Decimal  `json:"commission"`
	JoinedAt        time.Time        `json:"joined_at"`
	HasProfile      bool             `json:"has_profile"`
}

type AffiliateUsersPage struct {
	Users      []AffiliateUser `json:"users"`
	TotalCount int             `json:"total_count"`
}

// GetAffiliateUsers lists the referrer's direct referees, or the whole
// downline to depth 5 when IncludeNetwork is set. Rows are filtered by tier,
// depth and a search over the decrypted username/email, then paged.
func (s *AffiliateService) GetAffiliateUsers(ctx context.Context, referrer string, f UserFilter) (*AffiliateUsersPage, error) {
	addr, err := requireAddress(referrer)
	if err != nil {
		return nil, err
	}
	filtered, err := s.filteredRows(ctx, addr, f)
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to list affiliate users")
		return nil, err
	}

	page := &AffiliateUsersPage{TotalCount: len(filtered), Users: []AffiliateUser{}}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(filtered) {
		return page, nil
	}
	end := offset + f.limit()
	if end > len(filtered) {
		end = len(filtered)
	}
	page.Users = filtered[offset:end]
	return page, nil
}

// filteredRows applies the tier, depth and search filters to every listing row
func (s *AffiliateService) filteredRows(ctx context.Context, referrer string, f UserFilter) ([]AffiliateUser, error) {
	rows, err := s.affiliateRows(ctx, referrer, f.IncludeNetwork)
	if err != nil {
		return nil, err
	}
	role := strings.ToUpper(strings.TrimSpace(f.RoleFilter))
	term := foldForSearch(f.Search)
	filtered := rows[:0]
	for _, r := range rows {
		if role != "" && role != "ALL" && string(r.RoleTier) != role {
			continue
		}
		if f.LevelFilter > 0 && r.AffiliateLevel != f.LevelFilter {
			continue
		}
		if !matchesSearch(term, r.Username, r.Email) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// affiliateRows builds every listing row for the referrer, sorted by depth
// and then newest first.
func (s *AffiliateService) affiliateRows(ctx context.Context, referrer string, includeNetwork bool) ([]AffiliateUser, error) {
	depth := 1
	if includeNetwork {
		depth = MaxNetworkDepth
	}
	d, err := s.walkDownline(ctx, referrer, depth)
	if err != nil {
		return nil, err
	}
	if d.size() == 0 {
		return nil, nil
	}

	referees := d.addressRange(1, len(d.levels))
	wanted := append([]string{}, referees...)
	sponsorSet := map[string]bool{}
	for _, lvl := range d.levels {
		for _, rel := range lvl {
			sp := normalizeAddress(rel.ReferrerAddress)
			if !sponsorSet[sp] {
				sponsorSet[sp] = true
				wanted = append(wanted, sp)
			}
		}
	}
	profiles, err := s.profilesByAddress(ctx, dedupe(wanted))
	if err != nil {
		return nil, err
	}
	commissions, err := s.store.SumCommissionsByReferee(ctx, referrer, referees)
	if err != nil {
		return nil, err
	}

	rows := make([]AffiliateUser, 0, d.size())
	for i, lvl := range d.levels {
		for _, rel := range lvl {
			a := normalizeAddress(rel.RefereeAddress)
			sp := normalizeAddress(rel.ReferrerAddress)
			row := AffiliateUser{
				Address:        a,
				RoleTier:       models.RoleNomad,
				ProfileLevel:   1,
				AffiliateLevel: i + 1,
				KYCStatus:      models.KYCNotVerified,
				SponsorAddress: sp,
				ReferralCode:   rel.ReferralCode,
				Commission:     commissions[a],
				JoinedAt:       rel.CreatedAt,
			}
			if p, ok := profiles[a]; ok {
				row.HasProfile = true
				row.Username = s.cipher.Decrypt(p.Username, a)
				row.Email = s.cipher.Decrypt(p.Email, a)
				row.RoleTier = p.Tier()
				row.ProfileLevel = p.ProfileLevel
				if p.KYCStatus != "" {
					row.KYCStatus = p.KYCStatus
				}
			}
			if sp2, ok := profiles[sp]; ok {
				row.SponsorUsername = s.cipher.Decrypt(sp2.Username, sp)
			}
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AffiliateLevel != rows[j].AffiliateLevel {
			return rows[i].AffiliateLevel < rows[j].AffiliateLevel
		}
		if !rows[i].JoinedAt.Equal(rows[j].JoinedAt) {
			return rows[i].JoinedAt.After(rows[j].JoinedAt)
		}
		return rows[i].Address < rows[j].Address
	})
	return rows, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
