package audit

import (
	"context"
	"fmt"
	"time"
)

// Service is the read surface over the trail. Queries are read-only and
// safely cancellable through ctx.
type Service struct {
	repo ReadRepository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo ReadRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Trail returns a user's entries under the given filters.
func (s *Service) Trail(ctx context.Context, userID string, f TrailFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Trail(ctx, userID, f)
}

// RestaurantTrail returns entries scoped to one restaurant.
func (s *Service) RestaurantTrail(ctx context.Context, restaurantID string, f TrailFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.RestaurantTrail(ctx, restaurantID, f)
}

// Summary aggregates a user's trail over the last 30 days: counts by action
// and severity, recent entries, and the failed-attempt count.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	since := s.now().AddDate(0, 0, -30)
	byAction, err := s.repo.CountsByAction(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	bySeverity, err := s.repo.CountsBySeverity(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Recent(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ByAction:       byAction,
		BySeverity:     bySeverity,
		FailedAttempts: byAction[ActionLoginFailed],
		Recent:         recent,
	}, nil
}

// Statistics reports volume over day/week/month plus top actions and users.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	now := s.now()
	day, err := s.repo.VolumeSince(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	week, err := s.repo.VolumeSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	month, err := s.repo.VolumeSince(ctx, now.AddDate(0, -1, 0))
	if err != nil {
		return nil, err
	}
	topActions, err := s.repo.TopActions(ctx, now.AddDate(0, -1, 0), 10)
	if err != nil {
		return nil, err
	}
	topUsers, err := s.repo.TopUsers(ctx, now.AddDate(0, -1, 0), 10)
	if err != nil {
		return nil, err
	}
	return &Statistics{
		LastDay:    day,
		LastWeek:   week,
		LastMonth:  month,
		TopActions: topActions,
		TopUsers:   topUsers,
	}, nil
}

// CleanupOld removes entries older than retentionDays. Idempotent.
func (s *Service) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

// CheckIntegrity flags actions present in the trail that fall outside the
// known vocabulary.
func (s *Service) CheckIntegrity(ctx context.Context) ([]string, error) {
	present, err := s.repo.DistinctActions(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	for _, a := range KnownActions() {
		known[a] = struct{}{}
	}
	var unknown []string
	for _, a := range present {
		if _, ok := known[a]; !ok {
			unknown = append(unknown, a)
		}
	}
	return unknown, nil
}
