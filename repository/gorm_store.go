package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed services.Store
type GormStore struct {
	db *gorm.DB
}

var _ services.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func (s *GormStore) ListActiveReferees(ctx context.Context, referrers []string) ([]models.AffiliateRelationship, error) {
	var rels []models.AffiliateRelationship
	if len(referrers) == 0 {
		return rels, nil
	}
	err := s.db.WithContext(ctx).
		Where("LOWER(referrer_address) IN ? AND relationship_status = ?", lowerAll(referrers), models.RelationshipActive).
		Order("created_at ASC").
		Find(&rels).Error
	return rels, err
}

func (s *GormStore) FindActiveSponsor(ctx context.Context, referee string) (*models.AffiliateRelationship, error) {
	var rel models.AffiliateRelationship
	err := s.db.WithContext(ctx).
		Where("LOWER(referee_address) = ? AND relationship_status = ?", strings.ToLower(referee), models.RelationshipActive).
		Order("created_at ASC").
		Take(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (s *GormStore) ListProfiles(ctx context.Context, addresses []string) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	if len(addresses) == 0 {
		return profiles, nil
	}
	err := s.db.WithContext(ctx).
		Where("LOWER(wallet_address) IN ?", lowerAll(addresses)).
		Find(&profiles).Error
	return profiles, err
}

func (s *GormStore) FindProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("LOWER(wallet_address) = ?", strings.ToLower(address)).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfiles inserts or refreshes profiles keyed by wallet_address
func (s *GormStore) UpsertProfiles(ctx context.Context, profiles []models.UserProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "role_tier", "profile_level", "total_xp",
			"kyc_status", "join_date", "updated_at",
		}),
	}).CreateInBatches(&profiles, 200).Error
}

func (s *GormStore) LatestProfileUpdate(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.WithContext(ctx).Model(&models.UserProfile{}).
		Select("MAX(updated_at)").Scan(&latest).Error
	if err != nil || !latest.Valid {
		return time.Time{}, err
	}
	return latest.Time, nil
}

func (s *GormStore) ListCommissions(ctx context.Context, referrer string, statuses []models.CommissionStatus) ([]models.AffiliateCommission, error) {
	var out []models.AffiliateCommission
	err := s.db.WithContext(ctx).
		Where("LOWER(referrer_address) = ? AND status IN ?", strings.ToLower(referrer), statuses).
		Order("earned_at DESC").
		Find(&out).Error
	return out, err
}

type refereeSum struct {
	RefereeAddress string
	Total          decimal.Decimal
}

func (s *GormStore) SumCommissionsByReferee(ctx context.Context, referrer string, referees []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(referees))
	if len(referees) == 0 {
		return out, nil
	}
	var rows []refereeSum
	err := s.db.WithContext(ctx).
		Model(&models.AffiliateCommission{}).
		Select("LOWER(referee_address) AS referee_address, COALESCE(SUM(commission_amount), 0) AS total").
		Where("LOWER(referrer_address) = ? AND LOWER(referee_address) IN ? AND status IN ?",
			strings.ToLower(referrer), lowerAll(referees), models.EarnedStatuses).
		Group("LOWER(referee_address)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.RefereeAddress] = r.Total
	}
	return out, nil
}

func (s *GormStore) FindCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.db.WithContext(ctx).Where("UPPER(code) = ?", strings.ToUpper(code)).Take(&rc).Error
	if err == nil {
		rc.Source = models.CodeSourcePrimary
		return &rc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var ec models.ExtraCode
	err = s.db.WithContext(ctx).Where("UPPER(code) = ?", strings.ToUpper(code)).Take(&ec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := ec.AsReferralCode()
	return &out, nil
}

func (s *GormStore) FindDefaultCode(ctx context.Context, owner string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.db.WithContext(ctx).
		Where("LOWER(owner_address) = ? AND is_default = ?", strings.ToLower(owner), true).
		Order("created_at ASC").
		Take(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rc.Source = models.CodeSourcePrimary
	return &rc, nil
}

// CreateCode keeps code strings unique across referral_codes and extra_codes
func (s *GormStore) CreateCode(ctx context.Context, code *models.ReferralCode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ExtraCode{}).Where("UPPER(code) = ?", strings.ToUpper(code.Code)).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return services.ErrCodeTaken
		}
		err := tx.Create(code).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return services.ErrCodeTaken
		}
		return err
	})
}

func codeModel(code *models.ReferralCode) interface{} {
	if code.Source == models.CodeSourceExtra {
		return &models.ExtraCode{}
	}
	return &models.ReferralCode{}
}

// RedeemCode bumps the counters with a usage-limit guard and inserts the
// relationship in one transaction. A concurrent redemption for the same
// referee trips the partial unique index and maps to ErrAlreadySponsored.
func (s *GormStore) RedeemCode(ctx context.Context, code *models.ReferralCode, rel *models.AffiliateRelationship) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		err := tx.Model(&models.AffiliateRelationship{}).
			Where("LOWER(referee_address) = ? AND relationship_status = ?", strings.ToLower(rel.RefereeAddress), models.RelationshipActive).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return services.ErrAlreadySponsored
		}

		res := tx.Model(codeModel(code)).
			Where("id = ? AND is_active = ? AND (usage_limit = 0 OR usage_count < usage_limit)", code.ID, true).
			Updates(map[string]interface{}{
				"usage_count":            gorm.Expr("usage_count + 1"),
				"successful_conversions": gorm.Expr("successful_conversions + 1"),
				"updated_at":             time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrCodeExhausted
		}
		if err := tx.Create(rel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return services.ErrAlreadySponsored
			}
			return err
		}
		code.UsageCount++
		code.SuccessfulConversions++
		return nil
	})
}

func (s *GormStore) IncrementClicks(ctx context.Context, code *models.ReferralCode) error {
	err := s.db.WithContext(ctx).Model(codeModel(code)).
		Where("id = ?", code.ID).
		Update("total_clicks", gorm.Expr("total_clicks + 1")).Error
	if err != nil {
		return err
	}
	code.TotalClicks++
	return nil
}

func (s *GormStore) DeactivateExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, m := range []interface{}{&models.ReferralCode{}, &models.ExtraCode{}} {
		res := s.db.WithContext(ctx).Model(m).
			Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
			Update("is_active", false)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.ReferralSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GormStore) FindSession(ctx context.Context, sessionID string) (*models.ReferralSession, error) {
	var sess models.ReferralSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *GormStore) MarkSessionConverted(ctx context.Context, sessionID, user string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.ReferralSession{}).
		Where("session_id = ? AND converted = ?", sessionID, false).
		Updates(map[string]interface{}{
			"converted":              true,
			"converted_at":           at,
			"converted_user_address": user,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrSessionConverted
	}
	return nil
}

func (s *GormStore) ReleaseSession(ctx context.Context, sessionID, user string) error {
	return s.db.WithContext(ctx).Model(&models.ReferralSession{}).
		Where("session_id = ? AND converted = ? AND converted_user_address = ?", sessionID, true, user).
		Updates(map[string]interface{}{
			"converted":              false,
			"converted_at":           nil,
			"converted_user_address": nil,
		}).Error
}

func (s *GormStore) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.ReferralSession{}).
		Where("converted = ? AND expired = ? AND expires_at <= ?", false, false, now).
		Update("expired", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) RecordRedemption(ctx context.Context, r *models.ReferralRedemption) error {
	return s.db.WithContext(ctx).Create(r).Error
}
