package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ExportResult points at an uploaded affiliate CSV report
type ExportResult struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	Rows        int       `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

var exportHeader = []string{
	"address", "username", "email", "role_tier", "profile_level", "affiliate_level",
	"kyc_status", "sponsor_address", "sponsor_username", "referral_code", "commission", "joined_at",
}

// ExportAffiliateUsers renders the whole filtered listing as CSV, ignoring
// paging, and uploads it.
func (s *AffiliateService) ExportAffiliateUsers(ctx context.Context, referrer string, f UserFilter) (*ExportResult, error) {
	if s.uploader == nil {
		return nil, ErrExportDisabled
	}
	addr, err := requireAddress(referrer)
	if err != nil {
		return nil, err
	}
	users, err := s.filteredRows(ctx, addr, f)
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to build affiliate export")
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, u := range users {
		record := []string{
			u.Address, u.Username, u.Email, string(u.RoleTier),
			strconv.Itoa(u.ProfileLevel), strconv.Itoa(u.AffiliateLevel),
			string(u.KYCStatus), u.SponsorAddress, u.SponsorUsername, u.ReferralCode,
			u.Commission.String(), u.JoinedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/affiliates/%s/%s.csv", addr, uuid.NewString())
	url, err := s.uploader.Upload(ctx, key, buf.Bytes(), "text/csv")
	if err != nil {
		s.log.WithError(err).WithField("referrer", addr).Error("failed to upload affiliate export")
		return nil, fmt.Errorf("upload export: %w", err)
	}
	s.log.WithField("referrer", addr).WithField("rows", len(users)).Info("affiliate export uploaded")
	return &ExportResult{URL: url, Key: key, Rows: len(users), GeneratedAt: s.now()}, nil
}
