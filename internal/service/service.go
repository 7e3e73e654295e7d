package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
	"github.com/romanzh1/rpsc-study-coach/internal/service/planner"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
)

// streakWindowDays is how far back completed goal days are counted.
const streakWindowDays = 30

var (
	ErrNoPendingBlock   = errors.New("no pending block today")
	ErrSkipWindowClosed = errors.New("skip window has closed for the current block")
	ErrUnknownMock      = errors.New("unknown mock mode")
	ErrInvalidLog       = errors.New("invalid study log")
)

// Notifier delivers quiz progress that no user action triggered.
type Notifier interface {
	QuestionTimedOut(ctx context.Context, step *QuizStep)
}

type Options struct {
	Location   *time.Location
	ExamDate   time.Time
	StreakGoal float64
	Now        func() time.Time
}

type Service struct {
	repo    models.Repository
	planner *planner.Planner
	quiz    *quiz.Manager
	plan    *config.Plan

	loc        *time.Location
	examDate   time.Time
	streakGoal float64
	now        func() time.Time

	mu       sync.RWMutex
	notifier Notifier
}

func NewService(repo models.Repository, pl *planner.Planner, qm *quiz.Manager, plan *config.Plan, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StreakGoal <= 0 {
		opts.StreakGoal = 8.0
	}

	s := &Service{
		repo:       repo,
		planner:    pl,
		quiz:       qm,
		plan:       plan,
		loc:        opts.Location,
		examDate:   opts.ExamDate,
		streakGoal: opts.StreakGoal,
		now:        opts.Now,
	}
	qm.OnTimeout(s.handleTimeout)

	return s
}

func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Service) getNotifier() Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) streakSince(now time.Time) string {
	return utils.DateString(now.AddDate(0, 0, -streakWindowDays))
}

// RegisterUser records a first contact and returns the stored user. Existing users are left as they are.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	if firstName == "" {
		firstName = "Student"
	}

	user := &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		DailyGoal:  adaptive.BaselineHours,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user (telegram_id: %d, username: %s): %w", telegramID, username, err)
	}

	stored, err := s.repo.GetUser(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", telegramID, err)
	}

	return stored, nil
}

func (s *Service) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUser(ctx, telegramID)
}

func (s *Service) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	return s.repo.UserExists(ctx, telegramID)
}

func (s *Service) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.GetAllUsers(ctx)
}

// DailyGoal is the user's target hours: the profile's recommendation, then
// the stored goal, then the baseline.
func (s *Service) DailyGoal(ctx context.Context, telegramID int64) (float64, error) {
	user, err := s.repo.GetUser(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("get user (telegram_id: %d): %w", telegramID, err)
	}

	profile, err := s.repo.GetProfile(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("get profile (telegram_id: %d): %w", telegramID, err)
	}

	return goalOf(user, profile), nil
}

func goalOf(user *models.User, profile *models.Profile) float64 {
	if profile != nil && profile.RecommendedDailyHours > 0 {
		return profile.RecommendedDailyHours
	}
	if user != nil && user.DailyGoal > 0 {
		return user.DailyGoal
	}
	return adaptive.BaselineHours
}

// recordStreak stores today's hours against the goal and returns the
// number of goal days in the trailing window.
func (s *Service) recordStreak(ctx context.Context, userID int64, now time.Time, hours float64) (int, error) {
	day := &models.StreakDay{
		UserID:     userID,
		StreakDate: utils.DateString(now),
		HoursDone:  hours,
		IsComplete: hours >= s.streakGoal,
	}
	if err := s.repo.UpsertStreakDay(ctx, day); err != nil {
		return 0, fmt.Errorf("upsert streak day (telegram_id: %d): %w", userID, err)
	}

	streak, err := s.repo.CountStreak(ctx, userID, s.streakSince(now))
	if err != nil {
		return 0, fmt.Errorf("count streak (telegram_id: %d): %w", userID, err)
	}
	return streak, nil
}

func (s *Service) Streak(ctx context.Context, userID int64) (int, error) {
	streak, err := s.repo.CountStreak(ctx, userID, s.streakSince(s.clock()))
	if err != nil {
		return 0, fmt.Errorf("count streak (telegram_id: %d): %w", userID, err)
	}
	return streak, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
