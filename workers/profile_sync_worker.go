package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"affiliate-engine/logger"
	"affiliate-engine/models"

	"github.com/sirupsen/logrus"
)

const ProfilesEndpoint = "/api/v1/public/profiles"

// RemoteProfile is one entry of the profile service's change feed.
// Username and Email arrive already encrypted for the wallet.
type RemoteProfile struct {
	WalletAddress string    `json:"wallet_address"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	RoleTier      string    `json:"role_tier"`
	ProfileLevel  int       `json:"profile_level"`
	TotalXP       int64     `json:"total_xp"`
	KYCStatus     string    `json:"kyc_status"`
	JoinDate      time.Time `json:"join_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProfileChangesResponse struct {
	Profiles []RemoteProfile `json:"profiles"`
}

// ProfileSink receives mirrored profiles. LatestProfileUpdate returns the
// newest stored updated_at, or the zero time when nothing is stored yet.
type ProfileSink interface {
	UpsertProfiles(ctx context.Context, profiles []models.UserProfile) error
	LatestProfileUpdate(ctx context.Context) (time.Time, error)
}

// ProfileSyncWorker mirrors user_profiles from the profile service by
// polling its change feed with a since cursor.
type ProfileSyncWorker struct {
	sink         ProfileSink
	interval     time.Duration
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	log          *logrus.Entry

	mu     sync.Mutex
	cursor time.Time
	seeded bool
}

func NewProfileSyncWorker(sink ProfileSink, baseURL, serviceToken string, interval time.Duration, l logrus.FieldLogger) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		sink:         sink,
		interval:     interval,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          logger.Component(l, "profile-sync"),
	}
}

// Start syncs from the newest stored profile (a full backfill on an empty
// table) and then polls until ctx is done
func (w *ProfileSyncWorker) Start(ctx context.Context) {
	w.log.WithField("interval", w.interval.String()).Info("starting profile sync worker")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.WithError(err).Warn("initial profile sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.WithError(err).Error("profile sync batch failed")
			}
		case <-ctx.Done():
			w.log.Info("profile sync worker stopped")
			return
		}
	}
}

// Cursor is the newest updated_at seen so far
func (w *ProfileSyncWorker) Cursor() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// seedCursor resumes from the mirrored table on the first sync
func (w *ProfileSyncWorker) seedCursor(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seeded {
		return nil
	}
	latest, err := w.sink.LatestProfileUpdate(ctx)
	if err != nil {
		return fmt.Errorf("load profile sync cursor: %w", err)
	}
	if latest.After(w.cursor) {
		w.cursor = latest
	}
	w.seeded = true
	return nil
}

// SyncOnce fetches changes since the cursor and upserts them, returning how
// many profiles were written.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	if err := w.seedCursor(ctx); err != nil {
		return 0, err
	}
	since := w.Cursor()
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(ProfilesEndpoint)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build profile sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("profile sync request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode profile changes: %w", err)
	}

	// one row per address: a batched upsert cannot touch the same row twice
	profiles := make([]models.UserProfile, 0, len(payload.Profiles))
	index := make(map[string]int, len(payload.Profiles))
	latest := since
	for _, rp := range payload.Profiles {
		addr := strings.ToLower(strings.TrimSpace(rp.WalletAddress))
		if addr == "" {
			continue
		}
		if rp.UpdatedAt.After(latest) {
			latest = rp.UpdatedAt
		}
		if i, ok := index[addr]; ok {
			if !rp.UpdatedAt.Before(profiles[i].UpdatedAt) {
				profiles[i] = toProfile(addr, rp)
			}
			continue
		}
		index[addr] = len(profiles)
		profiles = append(profiles, toProfile(addr, rp))
	}
	if len(profiles) == 0 {
		return 0, nil
	}
	if err := w.sink.UpsertProfiles(ctx, profiles); err != nil {
		return 0, fmt.Errorf("upsert %d profiles: %w", len(profiles), err)
	}

	w.mu.Lock()
	w.cursor = latest
	w.mu.Unlock()

	w.log.WithField("count", len(profiles)).WithField("cursor", latest.Format(time.RFC3339)).Info("profiles synced")
	return len(profiles), nil
}

func toProfile(addr string, rp RemoteProfile) models.UserProfile {
	tier, ok := models.ParseRoleTier(rp.RoleTier)
	if !ok {
		tier = models.RoleNomad
	}
	level := rp.ProfileLevel
	if level < 1 {
		level = 1
	}
	kyc := models.KYCStatus(strings.ToLower(strings.TrimSpace(rp.KYCStatus)))
	if kyc == "" {
		kyc = models.KYCNotVerified
	}
	return models.UserProfile{
		WalletAddress: addr,
		Username:      rp.Username,
		Email:         rp.Email,
		RoleTier:      tier,
		ProfileLevel:  level,
		TotalXP:       rp.TotalXP,
		KYCStatus:     kyc,
		JoinDate:      rp.JoinDate,
		Timestamps:    models.Timestamps{UpdatedAt: rp.UpdatedAt},
	}
}
