package services

import (
	"context"
	"time"

	"affiliate-engine/models"

	"github.com/shopspring/decimal"
)

const recentTransactionsLimit = 10

// CommissionTransaction is one entry of the recent-commissions feed
type CommissionTransaction struct {
	ID              string                  `json:"id"`
	RefereeAddress  string                  `json:"referee_address"`
	RefereeUsername string                  `json:"referee_username"`
	Amount          decimal.Decimal         `json:"amount"`
	Type            models.CommissionType   `json:"type"`
	Status          models.CommissionStatus `json:"status"`
	EarnedAt        time.Time               `json:"earned_at"`
}

// CommissionData rolls up a referrer's earned (confirmed or paid) commissions.
// The top line and every breakdown bucket are rounded to whole units
// independently, so a breakdown may not sum exactly to the total.
type CommissionData struct {
	TotalCommissions   int64                           `json:"total_commissions"`
	PendingCommissions int64                           `json:"pending_commissions"`
	TransactionCount   int                             `json:"transaction_count"`
	TierBreakdown      map[models.RoleTier]int64       `json:"tier_breakdown"`
	TypeBreakdown      map[models.CommissionType]int64 `json:"type_breakdown"`
	RecentTransactions []CommissionTransaction         `json:"recent_transactions"`
}

func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// GetCommissionData aggregates commissions by referee tier and by type
func (s *AffiliateService) GetCommissionData(ctx context.Context, referrer string) (*CommissionData, error) {
	addr, err := requireAddress(referrer)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("referrer", addr)

	earned, err := s.store.ListCommissions(ctx, addr, models.EarnedStatuses)
	if err != nil {
		log.WithError(err).Error("failed to fetch commissions")
		return nil, err
	}
	pending, err := s.store.ListCommissions(ctx, addr, []models.CommissionStatus{models.CommissionPending})
	if err != nil {
		log.WithError(err).Error("failed to fetch pending commissions")
		return nil, err
	}

	var referees []string
	for _, c := range earned {
		referees = append(referees, normalizeAddress(c.RefereeAddress))
	}
	profiles, err := s.profilesByAddress(ctx, dedupe(referees))
	if err != nil {
		log.WithError(err).Error("failed to fetch referee profiles for commissions")
		return nil, err
	}

	total := decimal.Zero
	byTier := map[models.RoleTier]decimal.Decimal{}
	byType := map[models.CommissionType]decimal.Decimal{}
	for _, c := range earned {
		total = total.Add(c.CommissionAmount)
		tier := models.RoleNomad
		if p, ok := profiles[normalizeAddress(c.RefereeAddress)]; ok {
			tier = p.Tier()
		}
		byTier[tier] = byTier[tier].Add(c.CommissionAmount)
		t := c.NormalizedType()
		byType[t] = byType[t].Add(c.CommissionAmount)
	}
	pendingTotal := decimal.Zero
	for _, c := range pending {
		pendingTotal = pendingTotal.Add(c.CommissionAmount)
	}

	out := &CommissionData{
		TotalCommissions:   roundUnits(total),
		PendingCommissions: roundUnits(pendingTotal),
		TransactionCount:   len(earned),
		TierBreakdown:      make(map[models.RoleTier]int64, len(models.RoleTiers)),
		TypeBreakdown:      make(map[models.CommissionType]int64, len(models.CommissionTypes)),
		RecentTransactions: []CommissionTransaction{},
	}
	for _, t := range models.RoleTiers {
		out.TierBreakdown[t] = roundUnits(byTier[t])
	}
	for _, t := range models.CommissionTypes {
		out.TypeBreakdown[t] = roundUnits(byType[t])
	}

	// earned is newest first
	for i, c := range earned {
		if i == recentTransactionsLimit {
			break
		}
		ref := normalizeAddress(c.RefereeAddress)
		tx := CommissionTransaction{
			ID:             c.ID,
			RefereeAddress: ref,
			Amount:         c.CommissionAmount,
			Type:           c.NormalizedType(),
			Status:         c.Status,
			EarnedAt:       c.EarnedAt,
		}
		if p, ok := profiles[ref]; ok {
			tx.RefereeUsername = s.cipher.Decrypt(p.Username, ref)
		}
		out.RecentTransactions = append(out.RecentTransactions, tx)
	}
	return out, nil
}
