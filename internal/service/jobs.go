package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/metrics"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
	"go.uber.org/zap"
)

const (
	// NagThresholdHours is the midday minimum before a reminder goes out.
	NagThresholdHours = 2.0

	calibrationWindow = 3
	digestSize        = 5
)

type Briefing struct {
	Plan      *DayPlan
	Streak    int
	Countdown Countdown
}

type NightSummary struct {
	Day         DayReport
	Calibration models.CalibrationRecord
	Adjustment  adaptive.Adjustment
	// Quiz is the first question of the calibration mock, nil when none was started.
	Quiz *MockStart
}

type AdminDigest struct {
	Date    string
	Top     []models.LeaderboardEntry
	OnTrack []models.LeaderboardEntry
	Low     []models.LeaderboardEntry
}

// MorningBriefing regenerates today's plan for the user.
func (s *Service) MorningBriefing(ctx context.Context, userID int64) (*Briefing, error) {
	plan, err := s.GenerateDailyPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	streak, err := s.Streak(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Briefing{Plan: plan, Streak: streak, Countdown: s.ExamCountdown()}, nil
}

// MiddayNag reports whether the user is still under NagThresholdHours today.
func (s *Service) MiddayNag(ctx context.Context, userID int64) (*DayReport, bool, error) {
	day, err := s.TodayStats(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return day, day.Stats.TotalHours < NagThresholdHours, nil
}

// NightlySummary closes the day: streak, calibration record, hour adjustment
// and the short calibration mock. Users with no activity today get nil.
func (s *Service) NightlySummary(ctx context.Context, userID int64) (*NightSummary, error) {
	now := s.clock()
	date := utils.DateString(now)

	stats, err := s.repo.GetDayStats(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get day stats (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	if stats.Empty() {
		return nil, nil
	}

	day, err := s.dayReport(ctx, userID, now, true)
	if err != nil {
		return nil, err
	}

	accuracy := stats.Accuracy() / 100
	record := models.CalibrationRecord{
		UserID:         userID,
		CalDate:        date,
		Accuracy:       round2(accuracy),
		CompletionRate: round2(stats.Completion()),
		ActualHours:    stats.TotalHours,
		FatigueScore:   round2(adaptive.Fatigue(stats.TotalHours, accuracy)),
		QuestionsDone:  stats.TotalQuestions,
		Correct:        stats.TotalCorrect,
	}
	if err = s.repo.UpsertCalibration(ctx, &record); err != nil {
		return nil, fmt.Errorf("upsert calibration (telegram_id: %d, date: %s): %w", userID, date, err)
	}

	recent, err := s.repo.GetRecentCalibrations(ctx, userID, calibrationWindow)
	if err != nil {
		return nil, fmt.Errorf("get recent calibrations (telegram_id: %d): %w", userID, err)
	}

	adj := adaptive.AdjustHours(day.Goal, recent)
	if adj.Changed {
		if err = s.repo.UpdateRecommendedHours(ctx, userID, adj.Hours, date); err != nil {
			return nil, fmt.Errorf("update recommended hours (telegram_id: %d): %w", userID, err)
		}
		metrics.HoursAdjusted.WithLabelValues(adjustmentReason(day.Goal, adj)).Inc()
		zap.S().Infow("recommended hours adjusted",
			zap.Int64("telegram_id", userID),
			zap.Float64("from", day.Goal),
			zap.Float64("to", adj.Hours))
	}

	summary := &NightSummary{Day: *day, Calibration: record, Adjustment: adj}

	if _, active := s.quiz.Active(userID); !active {
		start, err := s.StartMock(ctx, userID, userID, config.CalibrationMock)
		switch {
		case err == nil:
			summary.Quiz = start
		case errors.Is(err, quiz.ErrNoQuestions), errors.Is(err, quiz.ErrSessionActive):
			zap.S().Warnw("skip calibration mock", zap.Error(err), zap.Int64("telegram_id", userID))
		default:
			return nil, err
		}
	}

	return summary, nil
}

func adjustmentReason(from float64, adj adaptive.Adjustment) string {
	switch {
	case adj.Burnout:
		return "burnout"
	case adj.Hours < from:
		return "decrease"
	default:
		return "increase"
	}
}

// AdminDigest ranks today's activity: most hours, most blocks done, least study.
func (s *Service) AdminDigest(ctx context.Context) (*AdminDigest, error) {
	date := utils.DateString(s.clock())

	entries, err := s.repo.GetDailyLeaderboard(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get daily leaderboard (date: %s): %w", date, err)
	}

	digest := &AdminDigest{Date: date}
	for _, e := range entries {
		if e.TotalHours > 0 && len(digest.Top) < digestSize {
			digest.Top = append(digest.Top, e)
		}
	}

	onTrack := slices.Clone(entries)
	slices.SortStableFunc(onTrack, func(a, b models.LeaderboardEntry) int {
		return b.DoneBlocks - a.DoneBlocks
	})
	for _, e := range onTrack {
		if e.DoneBlocks > 0 && len(digest.OnTrack) < digestSize {
			digest.OnTrack = append(digest.OnTrack, e)
		}
	}

	for i := len(entries) - 1; i >= 0 && len(digest.Low) < digestSize; i-- {
		if entries[i].TotalHours < NagThresholdHours {
			digest.Low = append(digest.Low, entries[i])
		}
	}

	return digest, nil
}
