package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
)

const (
	WeakCompletion = 0.60
	WeakAccuracy   = 0.50

	mockHistoryLimit  = 5
	profileCalibDays  = 7
	weeklyTotalsLimit = 7
)

type Countdown struct {
	Days int
}

func (c Countdown) Passed() bool {
	return c.Days < 0
}

// Split returns the remaining time as weeks and days.
func (c Countdown) Split() (weeks, days int) {
	return c.Days / 7, c.Days % 7
}

type ProfileView struct {
	User         *models.User
	Profile      *models.Profile
	Streak       int
	Weak         []models.TopicProgress
	Calibrations []models.CalibrationRecord
	Week         []models.DailyTotals
}

type SyllabusSection struct {
	Paper   int
	Section string
	Topics  []models.Topic
}

func (s *Service) ExamCountdown() Countdown {
	return Countdown{Days: utils.DaysBetween(s.clock(), s.examDate.In(s.loc))}
}

// TodayStats reads today's totals without touching the streak.
func (s *Service) TodayStats(ctx context.Context, userID int64) (*DayReport, error) {
	return s.dayReport(ctx, userID, s.clock(), false)
}

// dayReport gathers the day's totals. With record set, today's hours are
// first written to the streak table.
func (s *Service) dayReport(ctx context.Context, userID int64, now time.Time, record bool) (*DayReport, error) {
	date := utils.DateString(now)

	stats, err := s.repo.GetDayStats(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get day stats (telegram_id: %d, date: %s): %w", userID, date, err)
	}

	var streak int
	if record {
		streak, err = s.recordStreak(ctx, userID, now, stats.TotalHours)
	} else {
		streak, err = s.repo.CountStreak(ctx, userID, s.streakSince(now))
	}
	if err != nil {
		return nil, fmt.Errorf("streak (telegram_id: %d): %w", userID, err)
	}

	goal, err := s.DailyGoal(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &DayReport{Date: date, Stats: *stats, Streak: streak, Goal: goal}, nil
}

// WeakTopics lists studied topics under 60% of target hours or under 50% accuracy.
func (s *Service) WeakTopics(ctx context.Context, userID int64) ([]models.TopicProgress, error) {
	progress, err := s.repo.GetTopicProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get topic progress (telegram_id: %d): %w", userID, err)
	}

	weak := make([]models.TopicProgress, 0, len(progress))
	for _, p := range progress {
		if p.Completion() < WeakCompletion || p.Accuracy() < WeakAccuracy {
			weak = append(weak, p)
		}
	}
	return weak, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*ProfileView, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", userID, err)
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile (telegram_id: %d): %w", userID, err)
	}

	streak, err := s.Streak(ctx, userID)
	if err != nil {
		return nil, err
	}

	weak, err := s.WeakTopics(ctx, userID)
	if err != nil {
		return nil, err
	}

	calibrations, err := s.repo.GetRecentCalibrations(ctx, userID, profileCalibDays)
	if err != nil {
		return nil, fmt.Errorf("get recent calibrations (telegram_id: %d): %w", userID, err)
	}

	week, err := s.repo.GetWeeklyTotals(ctx, userID, weeklyTotalsLimit)
	if err != nil {
		return nil, fmt.Errorf("get weekly totals (telegram_id: %d): %w", userID, err)
	}

	return &ProfileView{
		User:         user,
		Profile:      profile,
		Streak:       streak,
		Weak:         weak,
		Calibrations: calibrations,
		Week:         week,
	}, nil
}

func (s *Service) MockHistory(ctx context.Context, userID int64) ([]models.MockResult, error) {
	history, err := s.repo.GetMockHistory(ctx, userID, mockHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("get mock history (telegram_id: %d): %w", userID, err)
	}
	return history, nil
}

// Syllabus groups the catalog by paper and section in catalog order.
func (s *Service) Syllabus(ctx context.Context) ([]SyllabusSection, error) {
	topics, err := s.repo.GetTopics(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("get topics: %w", err)
	}

	var sections []SyllabusSection
	for _, t := range topics {
		n := len(sections)
		if n == 0 || sections[n-1].Paper != t.Paper || sections[n-1].Section != t.Section {
			sections = append(sections, SyllabusSection{Paper: t.Paper, Section: t.Section})
			n++
		}
		sections[n-1].Topics = append(sections[n-1].Topics, t)
	}
	return sections, nil
}
