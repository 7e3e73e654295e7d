package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/metrics"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/planner"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
	"go.uber.org/zap"
)

type DayPlan struct {
	Date    string
	Goal    float64
	RestDay bool
	Blocks  []models.DailyPlanBlock
	// Slots places Blocks on the clock; empty when the routine cannot be parsed.
	Slots []planner.Slot
}

// Pending returns the first block still to be studied.
func (p *DayPlan) Pending() *models.DailyPlanBlock {
	for i := range p.Blocks {
		if p.Blocks[i].Status == models.BlockPending {
			return &p.Blocks[i]
		}
	}
	return nil
}

func (p *DayPlan) Done() int {
	n := 0
	for _, b := range p.Blocks {
		if b.Status == models.BlockDone {
			n++
		}
	}
	return n
}

func (p *DayPlan) Hours() float64 {
	var h float64
	for _, b := range p.Blocks {
		h += b.Hours
	}
	return round2(h)
}

type DayReport struct {
	Date   string
	Stats  models.DayStats
	Streak int
	Goal   float64
}

// Progress is today's hours over the goal, capped at 1.
func (r DayReport) Progress() float64 {
	if r.Goal <= 0 {
		return 0
	}
	return min(1, r.Stats.TotalHours/r.Goal)
}

type DoneReport struct {
	Block   *models.DailyPlanBlock
	Minutes int
	Correct int
	Total   int
	Day     DayReport
}

// Percent is the logged score, rounded to a whole percent.
func (r DoneReport) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return int(float64(r.Correct)/float64(r.Total)*100 + 0.5)
}

// GenerateDailyPlan builds today's plan and replaces any stored one.
func (s *Service) GenerateDailyPlan(ctx context.Context, userID int64) (*DayPlan, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", userID, err)
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile (telegram_id: %d): %w", userID, err)
	}

	topics, err := s.repo.GetTopics(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("get topics: %w", err)
	}

	now := s.clock()
	streak, err := s.repo.CountStreak(ctx, userID, s.streakSince(now))
	if err != nil {
		return nil, fmt.Errorf("count streak (telegram_id: %d): %w", userID, err)
	}

	days := utils.DaysBetween(user.CreatedAt, now)
	blocks := s.planner.Build(planner.Input{
		Profile:        profile,
		Topics:         topics,
		Streak:         streak,
		DaysSinceStart: days,
	})

	date := utils.DateString(now)
	if err = s.repo.ReplaceDailyPlan(ctx, userID, date, blocks); err != nil {
		return nil, fmt.Errorf("replace daily plan (telegram_id: %d, date: %s): %w", userID, date, err)
	}

	rest := planner.IsRestDay(days)
	if rest {
		metrics.PlansGenerated.WithLabelValues("rest").Inc()
	} else {
		metrics.PlansGenerated.WithLabelValues("study").Inc()
	}

	stored, err := s.repo.GetDailyPlan(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get daily plan (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	for i := range stored {
		if i < len(blocks) {
			stored[i].Priority = blocks[i].Priority
		}
	}

	return s.dayPlan(date, goalOf(user, profile), rest, stored), nil
}

// TodayPlan returns the stored plan for today, generating it on first use.
func (s *Service) TodayPlan(ctx context.Context, userID int64) (*DayPlan, error) {
	now := s.clock()
	date := utils.DateString(now)

	blocks, err := s.repo.GetDailyPlan(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get daily plan (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	if len(blocks) == 0 {
		return s.GenerateDailyPlan(ctx, userID)
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", userID, err)
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile (telegram_id: %d): %w", userID, err)
	}

	rest := planner.IsRestDay(utils.DaysBetween(user.CreatedAt, now))
	return s.dayPlan(date, goalOf(user, profile), rest, blocks), nil
}

func (s *Service) NextBlock(ctx context.Context, userID int64) (*models.DailyPlanBlock, error) {
	plan, err := s.TodayPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	block := plan.Pending()
	if block == nil {
		return nil, ErrNoPendingBlock
	}
	return block, nil
}

func (s *Service) dayPlan(date string, goal float64, rest bool, blocks []models.DailyPlanBlock) *DayPlan {
	plan := &DayPlan{Date: date, Goal: goal, RestDay: rest, Blocks: blocks}

	slots, err := planner.Schedule(blocks, s.planner.Template().Routine)
	if err != nil {
		zap.S().Warnw("schedule plan", zap.Error(err), zap.String("date", date))
		return plan
	}
	plan.Slots = slots

	return plan
}

// LogDone marks the first pending block done and logs the session against
// its topic. Without a pending block the session is logged unattributed.
func (s *Service) LogDone(ctx context.Context, userID int64, minutes, correct, total int) (*DoneReport, error) {
	if minutes <= 0 || correct < 0 || total < 0 || correct > total {
		return nil, fmt.Errorf("log done (minutes: %d, score: %d/%d): %w", minutes, correct, total, ErrInvalidLog)
	}

	now := s.clock()
	date := utils.DateString(now)

	blocks, err := s.repo.GetDailyPlan(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get daily plan (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	plan := DayPlan{Blocks: blocks}
	block := plan.Pending()

	session := &models.StudySession{
		UserID:         userID,
		SessionDate:    date,
		HoursStudied:   round2(float64(minutes) / 60),
		QuestionsDone:  total,
		CorrectAnswers: correct,
		CreatedAt:      now.UTC(),
	}
	if block != nil {
		session.TopicID = block.TopicID
		session.Notes = block.Label
	}

	err = s.repo.RunInTx(ctx, func(tx models.Repository) error {
		if block != nil {
			if _, err := tx.SetBlockStatus(ctx, userID, date, block.BlockIndex, models.BlockDone); err != nil {
				return err
			}
		}
		_, err := tx.CreateStudySession(ctx, session)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("log done (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	if block != nil {
		block.Status = models.BlockDone
		metrics.BlocksResolved.WithLabelValues(string(models.BlockDone)).Inc()
	}

	day, err := s.dayReport(ctx, userID, now, true)
	if err != nil {
		return nil, err
	}

	return &DoneReport{Block: block, Minutes: minutes, Correct: correct, Total: total, Day: *day}, nil
}

// SkipBlock marks the first pending block skipped. A positive window only
// allows it within that long after the block became current, which is when
// the previous block was resolved or the plan was generated.
func (s *Service) SkipBlock(ctx context.Context, userID int64, window time.Duration) (*models.DailyPlanBlock, error) {
	now := s.clock()
	date := utils.DateString(now)

	blocks, err := s.repo.GetDailyPlan(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("get daily plan (telegram_id: %d, date: %s): %w", userID, date, err)
	}
	plan := DayPlan{Blocks: blocks}
	block := plan.Pending()
	if block == nil {
		return nil, ErrNoPendingBlock
	}

	if window > 0 {
		since := block.UpdatedAt
		for _, b := range blocks {
			if b.Status != models.BlockPending && b.UpdatedAt.After(since) {
				since = b.UpdatedAt
			}
		}
		if now.Sub(since) > window {
			return nil, ErrSkipWindowClosed
		}
	}

	ok, err := s.repo.SetBlockStatus(ctx, userID, date, block.BlockIndex, models.BlockSkipped)
	if err != nil {
		return nil, fmt.Errorf("skip block (telegram_id: %d, block: %d): %w", userID, block.BlockIndex, err)
	}
	if !ok {
		return nil, ErrNoPendingBlock
	}

	block.Status = models.BlockSkipped
	metrics.BlocksResolved.WithLabelValues(string(models.BlockSkipped)).Inc()

	return block, nil
}
