package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// HousekeepingResult counts the rows one housekeeping pass touched
type HousekeepingResult struct {
	ExpiredSessions  int64 `json:"expired_sessions"`
	DeactivatedCodes int64 `json:"deactivated_codes"`
}

// RunHousekeeping expires stale referral sessions and deactivates codes past
// their expiry.
func (s *AffiliateService) RunHousekeeping(ctx context.Context) (*HousekeepingResult, error) {
	sessions, err := s.ExpireStaleSessions(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.DeactivateExpiredCodes(ctx)
	if err != nil {
		return nil, err
	}
	return &HousekeepingResult{ExpiredSessions: sessions, DeactivatedCodes: codes}, nil
}

// StartHousekeeping runs RunHousekeeping on every interval tick. Callers
// Shutdown the returned scheduler.
func (s *AffiliateService) StartHousekeeping(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			res, err := s.RunHousekeeping(ctx)
			if err != nil {
				return
			}
			if res.ExpiredSessions > 0 || res.DeactivatedCodes > 0 {
				s.log.WithField("sessions", res.ExpiredSessions).
					WithField("codes", res.DeactivatedCodes).
					Info("housekeeping pass complete")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	s.log.WithField("interval", interval.String()).Info("housekeeping scheduler started")
	return sched, nil
}
