package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/examstack/exam-platform/internal/cache"
	"github.com/examstack/exam-platform/internal/models"
	"github.com/examstack/exam-platform/internal/repositories"
)

var scoreBucketLabels = []string{"0-20%", "21-40%", "41-60%", "61-80%", "81-100%"}

var timeBucketLabels = []string{"0-5 min", "5-10 min", "10-20 min", "20-30 min", "30+ min"}

type analyticsService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.CacheManager
}

func NewAnalyticsService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, cacheManager *cache.CacheManager) AnalyticsService {
	return &analyticsService{
		repo:   repo,
		db:     db,
		logger: logger,
		cache:  cacheManager,
	}
}

func (s *analyticsService) QuizStats(ctx context.Context, quizID uint, userID string) (*QuizStatsResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to load quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, NewPermissionError(userID, quizID, "quiz", "view_stats", "not the quiz owner")
	}

	cacheKey := fmt.Sprintf("quiz:%d", quizID)
	var stats QuizStatsResponse

	err = s.cache.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		snapshots, err := s.repo.Snapshot().ListByQuiz(ctx, nil, quizID)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		return computeQuizStats(quizID, snapshots), nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GroupStats rolls up graded attempts across the group's assigned quizzes.
// Attempts by students outside the group are excluded.
func (s *analyticsService) GroupStats(ctx context.Context, groupID uint, userID string) (*GroupStatsResponse, error) {
	group, err := s.repo.Group().GetByID(ctx, nil, groupID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group.CreatedBy != userID {
		return nil, NewPermissionError(userID, groupID, "group", "view_stats", "not the group owner")
	}

	cacheKey := fmt.Sprintf("group:%d", groupID)
	var stats GroupStatsResponse

	err = s.cache.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		members, err := s.repo.Group().ListMembers(ctx, nil, groupID)
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		memberSet := make(map[string]bool, len(members))
		for _, m := range members {
			memberSet[m.StudentID] = true
		}

		quizIDs, err := s.repo.Group().ListQuizIDs(ctx, nil, groupID)
		if err != nil {
			return nil, fmt.Errorf("failed to list quizzes: %w", err)
		}

		result := &GroupStatsResponse{
			GroupID:     groupID,
			MemberCount: len(members),
			QuizCount:   len(quizIDs),
			Quizzes:     make([]GroupQuizStat, 0, len(quizIDs)),
		}

		pctSum := 0.0
		for _, quizID := range quizIDs {
			quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					continue
				}
				return nil, fmt.Errorf("failed to load quiz %d: %w", quizID, err)
			}

			snapshots, err := s.repo.Snapshot().ListByQuiz(ctx, nil, quizID)
			if err != nil {
				return nil, fmt.Errorf("failed to list snapshots: %w", err)
			}

			entry := GroupQuizStat{QuizID: quizID, Title: quiz.Title}
			quizPctSum := 0.0
			for _, snap := range snapshots {
				if !memberSet[snap.StudentID] {
					continue
				}
				entry.Attempts++
				quizPctSum += snap.Percentage
			}
			if entry.Attempts > 0 {
				entry.AveragePercentage = quizPctSum / float64(entry.Attempts)
			}
			if len(members) > 0 {
				entry.CompletionRate = float64(entry.Attempts) / float64(len(members))
			}

			result.Attempts += entry.Attempts
			pctSum += quizPctSum
			result.Quizzes = append(result.Quizzes, entry)
		}
		if result.Attempts > 0 {
			result.AveragePercentage = pctSum / float64(result.Attempts)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *analyticsService) StudentStats(ctx context.Context, studentID string) (*StudentStatsResponse, error) {
	snapshots, err := s.repo.Snapshot().ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	stats := &StudentStatsResponse{StudentID: studentID, Attempts: len(snapshots)}
	if len(snapshots) == 0 {
		return stats, nil
	}

	sum := 0.0
	for _, snap := range snapshots {
		sum += snap.Percentage
		if snap.Percentage > stats.BestPercentage {
			stats.BestPercentage = snap.Percentage
		}
		stats.TotalTimeSpent += snap.TimeSpent
	}
	stats.AveragePercentage = sum / float64(len(snapshots))
	return stats, nil
}

// CreatorTrend returns one point per day over the window, oldest first.
// Days without attempts appear with zero counts so charts stay continuous.
func (s *analyticsService) CreatorTrend(ctx context.Context, creatorID string, days int) ([]TrendPoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	since := time.Now().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)
	snapshots, err := s.repo.Snapshot().ListByCreatorSince(ctx, nil, creatorID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	type daily struct {
		count int
		sum   float64
	}
	byDay := make(map[string]*daily)
	for _, snap := range snapshots {
		day := snap.CreatedAt.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &daily{}
			byDay[day] = d
		}
		d.count++
		d.sum += snap.Percentage
	}

	points := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		point := TrendPoint{Date: day}
		if d, ok := byDay[day]; ok {
			point.Attempts = d.count
			point.Average = d.sum / float64(d.count)
		}
		points = append(points, point)
	}
	return points, nil
}

// computeQuizStats folds snapshots into the fixed distributions.
func computeQuizStats(quizID uint, snapshots []*models.AttemptSnapshot) *QuizStatsResponse {
	stats := &QuizStatsResponse{
		QuizID:       quizID,
		Attempts:     len(snapshots),
		ScoreBuckets: make([]ScoreBucket, len(scoreBucketLabels)),
		TimeBuckets:  make([]TimeBucket, len(timeBucketLabels)),
	}
	for i, label := range scoreBucketLabels {
		stats.ScoreBuckets[i] = ScoreBucket{Label: label}
	}
	for i, label := range timeBucketLabels {
		stats.TimeBuckets[i] = TimeBucket{Label: label}
	}

	if len(snapshots) == 0 {
		return stats
	}

	scoreSum := 0.0
	pctSum := 0.0
	stats.LowestScore = snapshots[0].Score
	for _, snap := range snapshots {
		scoreSum += snap.Score
		pctSum += snap.Percentage
		if snap.Score > stats.HighestScore {
			stats.HighestScore = snap.Score
		}
		if snap.Score < stats.LowestScore {
			stats.LowestScore = snap.Score
		}

		stats.ScoreBuckets[scoreBucketIndex(snap.Percentage)].Count++
		stats.TimeBuckets[timeBucketIndex(snap.TimeSpent)].Count++
	}

	stats.AverageScore = scoreSum / float64(len(snapshots))
	stats.AveragePercentage = pctSum / float64(len(snapshots))
	return stats
}

func scoreBucketIndex(percentage float64) int {
	switch {
	case percentage <= 20:
		return 0
	case percentage <= 40:
		return 1
	case percentage <= 60:
		return 2
	case percentage <= 80:
		return 3
	default:
		return 4
	}
}

func timeBucketIndex(seconds int) int {
	minutes := float64(seconds) / 60
	switch {
	case minutes < 5:
		return 0
	case minutes < 10:
		return 1
	case minutes < 20:
		return 2
	case minutes < 30:
		return 3
	default:
		return 4
	}
}
