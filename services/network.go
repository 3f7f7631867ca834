package services

import (
	"context"
	"fmt"

	"affiliate-engine/models"
)

// downline holds relationships grouped by depth: levels[0] is depth 1.
type downline struct {
	levels [][]models.AffiliateRelationship
}

func (d downline) addresses(depth int) []string {
	if depth < 1 || depth > len(d.levels) {
		return nil
	}
	out := make([]string, 0, len(d.levels[depth-1]))
	for _, rel := range d.levels[depth-1] {
		out = append(out, normalizeAddress(rel.RefereeAddress))
	}
	return out
}

// addressRange collects referee addresses for depths from..to inclusive
func (d downline) addressRange(from, to int) []string {
	var out []string
	for depth := from; depth <= to; depth++ {
		out = append(out, d.addresses(depth)...)
	}
	return out
}

func (d downline) size() int {
	n := 0
	for _, lvl := range d.levels {
		n += len(lvl)
	}
	return n
}

// walkDownline expands the referral graph breadth-first from referrer.
// Each level queries relationships whose referrer is in the previous level;
// the walk stops on an empty level and never goes past maxDepth. An address
// is attached at the first depth it is seen, so cycles and duplicate
// sponsor rows cannot loop or double count.
func (s *AffiliateService) walkDownline(ctx context.Context, referrer string, maxDepth int) (downline, error) {
	if maxDepth > MaxNetworkDepth {
		maxDepth = MaxNetworkDepth
	}
	visited := map[string]bool{referrer: true}
	frontier := []string{referrer}
	var d downline

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		rels, err := s.store.ListActiveReferees(ctx, frontier)
		if err != nil {
			return downline{}, fmt.Errorf("fetch level %d referees: %w", depth, err)
		}
		var level []models.AffiliateRelationship
		var next []string
		for _, rel := range rels {
			addr := normalizeAddress(rel.RefereeAddress)
			if addr == "" || visited[addr] {
				continue
			}
			visited[addr] = true
			level = append(level, rel)
			next = append(next, addr)
		}
		if len(level) == 0 {
			break
		}
		d.levels = append(d.levels, level)
		frontier = next
	}
	return d, nil
}

// profilesByAddress fetches profiles keyed by normalized address
func (s *AffiliateService) profilesByAddress(ctx context.Context, addrs []string) (map[string]models.UserProfile, error) {
	out := make(map[string]models.UserProfile, len(addrs))
	if len(addrs) == 0 {
		return out, nil
	}
	profiles, err := s.store.ListProfiles(ctx, addrs)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[normalizeAddress(p.WalletAddress)] = p
	}
	return out, nil
}
