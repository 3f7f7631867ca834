package services

import (
	"context"

	"affiliate-engine/models"
)

// LevelCounts counts profiles at exact profile levels 5 through 10
type LevelCounts struct {
	Level5Users  int `json:"level5_users"`
	Level6Users  int `json:"level6_users"`
	Level7Users  int `json:"level7_users"`
	Level8Users  int `json:"level8_users"`
	Level9Users  int `json:"level9_users"`
	Level10Users int `json:"level10_users"`
}

func (c *LevelCounts) add(profileLevel int) {
	switch profileLevel {
	case 5:
		c.Level5Users++
	case 6:
		c.Level6Users++
	case 7:
		c.Level7Users++
	case 8:
		c.Level8Users++
	case 9:
		c.Level9Users++
	case 10:
		c.Level10Users++
	}
}

// TierCounts counts profiles per role tier
type TierCounts struct {
	NomadUsers int `json:"nomad_users"`
	ProUsers   int `json:"pro_users"`
	RoyalUsers int `json:"royal_users"`
}

func (c *TierCounts) add(t models.RoleTier) {
	switch t {
	case models.RolePro:
		c.ProUsers++
	case models.RoleRoyal:
		c.RoyalUsers++
	default:
		c.NomadUsers++
	}
}

func (c TierCounts) Total() int {
	return c.NomadUsers + c.ProUsers + c.RoyalUsers
}

// AffiliateMetrics aggregates a referrer's direct referees that have profiles
type AffiliateMetrics struct {
	TotalReferrals int `json:"total_referrals"`
	TierCounts
	LevelCounts
}

// GetAffiliateMetrics counts direct referees by tier and by profile level 5–10
func (s *AffiliateService) GetAffiliateMetrics(ctx context.Context, referrer string) (*AffiliateMetrics, error) {
	addr, err := requireAddress(referrer)
	if err != nil {
		return nil, err
	}
	out, err := cached(ctx, s, metricsKey(addr), func(out *AffiliateMetrics) error {
		d, err := s.walkDownline(ctx, addr, 1)
		if err != nil {
			return err
		}
		profiles, err := s.profilesByAddress(ctx, d.addresses(1))
		if err != nil {
			return err
		}
		for _, p := range profiles {
			out.TotalReferrals++
			out.TierCounts.add(p.Tier())
			out.LevelCounts.add(p.ProfileLevel)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to compute affiliate metrics")
		return nil, err
	}
	return out, nil
}

// NetworkMetrics separates personal (depth 1) from network (depth 2–5)
// referees. Tier counts follow that split, but the NetworkLevel counts cover
// the whole downline, depth 1 included.
type NetworkMetrics struct {
	PersonalNomadUsers int `json:"personal_nomad_users"`
	PersonalProUsers   int `json:"personal_pro_users"`
	PersonalRoyalUsers int `json:"personal_royal_users"`

	NetworkNomadUsers int `json:"network_nomad_users"`
	NetworkProUsers   int `json:"network_pro_users"`
	NetworkRoyalUsers int `json:"network_royal_users"`

	NetworkLevel5Users  int `json:"network_level5_users"`
	NetworkLevel6Users  int `json:"network_level6_users"`
	NetworkLevel7Users  int `json:"network_level7_users"`
	NetworkLevel8Users  int `json:"network_level8_users"`
	NetworkLevel9Users  int `json:"network_level9_users"`
	NetworkLevel10Users int `json:"network_level10_users"`

	DirectReferrals  int   `json:"direct_referrals"`
	NetworkReferrals int   `json:"network_referrals"`
	TotalNetwork     int   `json:"total_network"`
	DepthCounts      []int `json:"depth_counts"`
}

// GetNetworkMetrics walks the downline to depth 5 and aggregates it
func (s *AffiliateService) GetNetworkMetrics(ctx context.Context, referrer string) (*NetworkMetrics, error) {
	addr, err := requireAddress(referrer)
	if err != nil {
		return nil, err
	}
	out, err := cached(ctx, s, networkKey(addr), func(out *NetworkMetrics) error {
		d, err := s.walkDownline(ctx, addr, MaxNetworkDepth)
		if err != nil {
			return err
		}
		personal, err := s.profilesByAddress(ctx, d.addresses(1))
		if err != nil {
			return err
		}
		network, err := s.profilesByAddress(ctx, d.addressRange(2, MaxNetworkDepth))
		if err != nil {
			return err
		}

		var pt, nt TierCounts
		var lc LevelCounts
		for _, p := range personal {
			pt.add(p.Tier())
			lc.add(p.ProfileLevel)
		}
		for _, p := range network {
			nt.add(p.Tier())
			lc.add(p.ProfileLevel)
		}

		out.PersonalNomadUsers, out.PersonalProUsers, out.PersonalRoyalUsers = pt.NomadUsers, pt.ProUsers, pt.RoyalUsers
		out.NetworkNomadUsers, out.NetworkProUsers, out.NetworkRoyalUsers = nt.NomadUsers, nt.ProUsers, nt.RoyalUsers
		out.NetworkLevel5Users = lc.Level5Users
		out.NetworkLevel6Users = lc.Level6Users
		out.NetworkLevel7Users = lc.Level7Users
		out.NetworkLevel8Users = lc.Level8Users
		out.NetworkLevel9Users = lc.Level9Users
		out.NetworkLevel10Users = lc.Level10Users

		out.DepthCounts = make([]int, MaxNetworkDepth)
		for i := range d.levels {
			out.DepthCounts[i] = len(d.levels[i])
		}
		out.DirectReferrals = out.DepthCounts[0]
		out.TotalNetwork = d.size()
		out.NetworkReferrals = out.TotalNetwork - out.DirectReferrals
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to compute network metrics")
		return nil, err
	}
	return out, nil
}
