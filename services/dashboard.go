package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zhifu/donation-dashboard/models"
)

// DashboardOptions tunes the dashboard queries.
type DashboardOptions struct {
	Lookback      time.Duration
	ActivityLimit int
	ItemsPerPage  int
	FetchTimeout  time.Duration
}

// DashboardService 仪表盘服务
// Store failures never surface as errors here: they come back as the
// Failed flags of the results and are logged.
type DashboardService struct {
	fetcher *RecordFetcher
	perPage int
	log     zerolog.Logger
}

func NewDashboardService(store RecordStore, opts DashboardOptions, log zerolog.Logger) *DashboardService {
	perPage := opts.ItemsPerPage
	if perPage <= 0 {
		perPage = DefaultItemsPerPage
	}
	return &DashboardService{
		fetcher: NewRecordFetcher(store, opts.Lookback, opts.ActivityLimit, opts.FetchTimeout),
		perPage: perPage,
		log:     log.With().Str("component", "dashboard").Logger(),
	}
}

func (s *DashboardService) ItemsPerPage() int { return s.perPage }

// GetRecentActivity 获取最近动态
func (s *DashboardService) GetRecentActivity(ctx context.Context, userID string) models.ActivityResult {
	records, err := s.fetcher.FetchRecent(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("recent activity unavailable")
		return models.ActivityResult{Entries: []models.ActivityEntry{}, Failed: true}
	}

	for _, rec := range records {
		if !IsKnownCategory(rec.Category) {
			s.log.Debug().
				Str("record_id", rec.ID).
				Str("category", rec.Category).
				Msg("unrecognised category scored with default points")
		}
	}

	entries, totalPoints, skipped := BuildActivity(records)
	if skipped > 0 {
		s.log.Warn().Str("user_id", userID).Int("skipped", skipped).Msg("skipped malformed donation records")
	}
	return models.ActivityResult{Entries: entries, TotalPoints: totalPoints}
}

// GetRank 获取用户排名
func (s *DashboardService) GetRank(ctx context.Context, userID string) models.RankResult {
	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("rank unavailable")
		return models.RankResult{Rank: RankUnavailable, Failed: true}
	}
	return models.RankResult{Rank: ComputeRank(records, userID)}
}

// GetLeaderboard returns the top limit users by points.
func (s *DashboardService) GetLeaderboard(ctx context.Context, limit int) models.LeaderboardResult {
	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("leaderboard unavailable")
		return models.LeaderboardResult{Entries: []models.LeaderboardEntry{}, Failed: true}
	}
	entries, totalUsers := Leaderboard(records, limit)
	return models.LeaderboardResult{Entries: entries, TotalUsers: totalUsers}
}

// GetSummary runs the activity, rank, donation count and profile fetches
// concurrently. Each part fails independently.
func (s *DashboardService) GetSummary(ctx context.Context, userID string) models.DashboardSummary {
	summary := models.DashboardSummary{UserID: userID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary.Activity = s.GetRecentActivity(gctx, userID)
		return nil
	})
	g.Go(func() error {
		summary.Rank = s.GetRank(gctx, userID)
		return nil
	})
	g.Go(func() error {
		count, err := s.fetcher.CountDonations(gctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("donation count unavailable")
			summary.CountFailed = true
			return nil
		}
		summary.DonationCount = count
		return nil
	})
	g.Go(func() error {
		profile, err := s.fetcher.FetchProfile(gctx, userID)
		if errors.Is(err, ErrProfileNotFound) {
			return nil
		}
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("profile unavailable")
			summary.ProfileFailed = true
			return nil
		}
		summary.Profile = profile
		return nil
	})
	_ = g.Wait()

	return summary
}

// NewSession starts a paged dashboard view for userID.
func (s *DashboardService) NewSession(userID string) *Session {
	return &Session{
		svc:       s,
		userID:    userID,
		paginator: NewPaginator(s.perPage),
		loading:   true,
	}
}

// Session 仪表盘会话
// A Session holds the paged activity of one connected client. Refreshes may
// overlap; only the latest one is applied.
type Session struct {
	svc    *DashboardService
	userID string

	mu          sync.Mutex
	paginator   *Paginator
	totalPoints int
	rank        models.RankResult
	failed      bool
	loading     bool
	generation  uint64
}

func (s *Session) UserID() string { return s.userID }

// Refresh refetches activity and rank. The result is discarded when ctx is
// done before the fetch finished or a newer Refresh started meanwhile; applied
// reports which happened.
func (s *Session) Refresh(ctx context.Context) (snapshot models.DashboardSnapshot, applied bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	var (
		activity models.ActivityResult
		rank     models.RankResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		activity = s.svc.GetRecentActivity(gctx, s.userID)
		return nil
	})
	g.Go(func() error {
		rank = s.svc.GetRank(gctx, s.userID)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || gen != s.generation {
		return s.snapshotLocked(), false
	}

	s.paginator.Replace(activity.Entries)
	s.totalPoints = activity.TotalPoints
	s.failed = activity.Failed
	s.rank = rank
	s.loading = false
	return s.snapshotLocked(), true
}

func (s *Session) NextPage() models.DashboardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paginator.Next()
	return s.snapshotLocked()
}

func (s *Session) PrevPage() models.DashboardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paginator.Prev()
	return s.snapshotLocked()
}

func (s *Session) GetPage() []models.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paginator.Page()
}

func (s *Session) GetTotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paginator.TotalPages()
}

func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paginator.CurrentPage()
}

func (s *Session) Snapshot() models.DashboardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.DashboardSnapshot {
	return models.DashboardSnapshot{
		UserID:      s.userID,
		Entries:     s.paginator.Page(),
		CurrentPage: s.paginator.CurrentPage(),
		TotalPages:  s.paginator.TotalPages(),
		TotalPoints: s.totalPoints,
		Rank:        s.rank,
		Loading:     s.loading,
		Failed:      s.failed,
	}
}
