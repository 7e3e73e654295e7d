package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/planner"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTimer struct {
	at   time.Time
	f    func()
	done bool
}

type testClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*testTimer
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AfterFunc(d time.Duration, f func()) quiz.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &testTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return stopper{clock: c, timer: t}
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*testTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type stopper struct {
	clock *testClock
	timer *testTimer
}

func (s stopper) Stop() bool {
	s.clock.mu.Lock()
	defer s.clock.mu.Unlock()
	active := !s.timer.done
	s.timer.done = true
	return active
}

type recordingNotifier struct {
	mu    sync.Mutex
	steps []*QuizStep
}

func (n *recordingNotifier) QuestionTimedOut(_ context.Context, step *QuizStep) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = append(n.steps, step)
}

type testEnv struct {
	svc   *Service
	repo  *fakeRepo
	clock *testClock
	notes *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	repo := newFakeRepo(clock.Now)

	repo.topics = []models.Topic{
		{ID: 1, Name: "Cell Biology", Paper: 2, Section: "SrSec", TargetHours: 10, MarksWeight: 12, PYQWeight: 0.9},
		{ID: 6, Name: "Molecular Biology", Paper: 2, Section: "Grad", TargetHours: 10, MarksWeight: 10, PYQWeight: 0.8},
		{ID: 101, Name: "History of Rajasthan", Paper: 1, Section: "History", TargetHours: 8, MarksWeight: 15, PYQWeight: 0.9},
	}
	for i, section := range []string{"History", "Geography", "SrSec", "Grad"} {
		repo.questions = append(repo.questions, models.Question{
			ID: int64(i + 1), Section: section, Text: "diag", OptA: "a", OptB: "b", OptC: "c", OptD: "d",
			AnswerIdx: 0, IsDiagnostic: true,
		})
	}
	for i := range 6 {
		repo.questions = append(repo.questions, models.Question{
			ID: int64(11 + i), Paper: 2, Section: "SrSec", Text: "practice", OptA: "a", OptB: "b", OptC: "c", OptD: "d",
			AnswerIdx: 1,
		})
	}

	plan, err := config.LoadPlan("")
	require.NoError(t, err)

	svc := NewService(repo,
		planner.New(plan.Template, rand.New(rand.NewSource(7))),
		quiz.NewManager(clock, 90*time.Second),
		plan,
		Options{
			Location:   time.UTC,
			ExamDate:   time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC),
			StreakGoal: 8,
			Now:        clock.Now,
		})

	notes := &recordingNotifier{}
	svc.SetNotifier(notes)

	return &testEnv{svc: svc, repo: repo, clock: clock, notes: notes}
}

func (e *testEnv) register(t *testing.T, id int64) {
	t.Helper()
	_, err := e.svc.RegisterUser(context.Background(), id, "user", "Asha")
	require.NoError(t, err)
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.RegisterUser(ctx, 1, "asha", "")
	require.NoError(t, err)
	assert.Equal(t, "Student", u.FirstName)
	assert.Equal(t, 10.5, u.DailyGoal)
	assert.False(t, u.Onboarded)

	env.clock.Advance(time.Hour)
	again, err := env.svc.RegisterUser(ctx, 1, "renamed", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "asha", again.Username)
	assert.Equal(t, u.CreatedAt, again.CreatedAt)
}

func TestDiagnosticSavesInitialProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	p, err := env.svc.StartDiagnostic(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Total)

	var step *QuizStep
	for i := range p.Total {
		env.clock.Advance(20 * time.Second)
		step, err = env.svc.Answer(ctx, 1, p.SessionID, i, 0)
		require.NoError(t, err)
	}

	require.NotNil(t, step.Result)
	require.NotNil(t, step.Profile)
	assert.Equal(t, 1.0, step.Profile.BaselinePaper1)
	assert.Equal(t, 1.0, step.Profile.BaselinePaper2)
	assert.Equal(t, 10.0, step.Profile.RecommendedDailyHours)
	assert.Equal(t, 60, step.Profile.RecommendedBlockLen)
	assert.Equal(t, models.ErrorCareless, step.Profile.ErrorType)

	user, err := env.repo.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, user.Onboarded)
	assert.Equal(t, 10.0, user.DailyGoal)

	stored, err := env.repo.GetProfile(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.DiagnosticDone)

	_, ok := env.svc.ActiveSession(1)
	assert.False(t, ok)
}

func TestDiagnosticTimeoutCompletesThroughNotifier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	p, err := env.svc.StartDiagnostic(ctx, 1, 1)
	require.NoError(t, err)

	for i := range 3 {
		_, err = env.svc.Answer(ctx, 1, p.SessionID, i, 0)
		require.NoError(t, err)
	}
	assert.Empty(t, env.notes.steps)

	env.clock.Advance(90 * time.Second)

	require.Len(t, env.notes.steps, 1)
	step := env.notes.steps[0]
	assert.Equal(t, quiz.OutcomeTimedOut, step.Outcome)
	require.NotNil(t, step.Profile)
	assert.Equal(t, 0.25, step.Profile.SkipRate)
	assert.Equal(t, 0.5, step.Profile.BaselinePaper2)
	assert.Equal(t, 10.5, step.Profile.RecommendedDailyHours)

	// the expired question can no longer be answered
	_, err = env.svc.Answer(ctx, 1, p.SessionID, 3, 0)
	assert.ErrorIs(t, err, quiz.ErrNoSession)
}

func TestMockFlowPersistsResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	_, err := env.svc.StartMock(ctx, 1, 1, "weekly")
	assert.ErrorIs(t, err, ErrUnknownMock)

	start, err := env.svc.StartMock(ctx, 1, 1, "mini")
	require.NoError(t, err)
	assert.Equal(t, 5, start.Prompt.Total)
	assert.True(t, start.Prompt.Deadline.IsZero())

	_, err = env.svc.StartDiagnostic(ctx, 1, 1)
	assert.ErrorIs(t, err, quiz.ErrSessionActive)
	_, err = env.svc.StartMock(ctx, 1, 1, "paper2")
	assert.ErrorIs(t, err, quiz.ErrSessionActive)

	step, err := env.svc.Answer(ctx, 1, start.Prompt.SessionID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, quiz.OutcomeCorrect, step.Outcome)
	assert.Nil(t, step.Mock)

	_, err = env.svc.Answer(ctx, 1, start.Prompt.SessionID, 0, 1)
	assert.ErrorIs(t, err, quiz.ErrStaleQuestion)

	_, err = env.svc.Answer(ctx, 1, start.Prompt.SessionID, 1, 0)
	require.NoError(t, err)

	env.clock.Advance(3 * time.Minute)
	step, err = env.svc.EndMock(ctx, 1, start.Prompt.SessionID)
	require.NoError(t, err)
	require.NotNil(t, step.Mock)

	m := step.Mock
	assert.Equal(t, int64(1), m.ID)
	assert.Equal(t, 5, m.TotalQ)
	assert.Equal(t, 2, m.Attempted)
	assert.Equal(t, 1, m.Correct)
	assert.Equal(t, 1, m.Wrong)
	assert.Equal(t, 1.0, m.ScoreRaw)
	assert.Equal(t, 0.67, m.ScoreNet)
	assert.Equal(t, 180, m.TimeTaken)
	assert.Equal(t, "2025-03-10", m.MockDate)

	history, err := env.svc.MockHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGenerateDailyPlanReplaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	first, err := env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first.Blocks, 7)
	assert.False(t, first.RestDay)
	assert.Equal(t, 10.5, first.Goal)
	assert.Len(t, first.Slots, 7)
	assert.Equal(t, 10.5, first.Hours())

	_, err = env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)
	stored, err := env.repo.GetDailyPlan(ctx, 1, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, stored, 7)

	today, err := env.svc.TodayPlan(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, today.Blocks, 7)

	next, err := env.svc.NextBlock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, next.BlockIndex)
}

func TestRestDayPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.repo.CreateUser(ctx, &models.User{
		TelegramID: 1,
		FirstName:  "Asha",
		DailyGoal:  10.5,
		CreatedAt:  env.clock.Now().AddDate(0, 0, -14),
	}))

	plan, err := env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)
	assert.True(t, plan.RestDay)
	require.Len(t, plan.Blocks, 2)
	assert.Equal(t, "Light Review", plan.Blocks[0].Label)
}

func TestLogDoneMarksFirstPendingBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	plan, err := env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)

	rep, err := env.svc.LogDone(ctx, 1, 90, 8, 10)
	require.NoError(t, err)
	require.NotNil(t, rep.Block)
	assert.Equal(t, 0, rep.Block.BlockIndex)
	assert.Equal(t, models.BlockDone, rep.Block.Status)
	assert.Equal(t, 80, rep.Percent())
	assert.Equal(t, 1.5, rep.Day.Stats.TotalHours)
	assert.Equal(t, 1, rep.Day.Stats.PlanDone)
	assert.Equal(t, 0, rep.Day.Streak)

	require.Len(t, env.repo.sessions, 1)
	assert.Equal(t, plan.Blocks[0].TopicID, env.repo.sessions[0].TopicID)

	rep, err = env.svc.LogDone(ctx, 1, 420, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Block.BlockIndex)
	assert.Equal(t, 8.5, rep.Day.Stats.TotalHours)
	assert.Equal(t, 1, rep.Day.Streak)
	assert.InDelta(t, 8.5/10.5, rep.Day.Progress(), 1e-9)
}

func TestLogDoneValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	for _, tc := range []struct{ minutes, correct, total int }{
		{0, 0, 0},
		{60, 5, 4},
		{60, -1, 4},
	} {
		_, err := env.svc.LogDone(ctx, 1, tc.minutes, tc.correct, tc.total)
		assert.ErrorIs(t, err, ErrInvalidLog)
	}

	// without a plan the session is still logged
	rep, err := env.svc.LogDone(ctx, 1, 30, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, rep.Block)
	assert.Equal(t, 0.5, rep.Day.Stats.TotalHours)
}

func TestSkipBlockWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	_, err := env.svc.SkipBlock(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrNoPendingBlock)

	_, err = env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	b, err := env.svc.SkipBlock(ctx, 1, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, b.BlockIndex)
	assert.Equal(t, models.BlockSkipped, b.Status)

	env.clock.Advance(11 * time.Minute)
	_, err = env.svc.SkipBlock(ctx, 1, 10*time.Minute)
	assert.ErrorIs(t, err, ErrSkipWindowClosed)

	for i := 1; i < 7; i++ {
		b, err = env.svc.SkipBlock(ctx, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, i, b.BlockIndex)
	}

	_, err = env.svc.SkipBlock(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrNoPendingBlock)
	_, err = env.svc.NextBlock(ctx, 1)
	assert.ErrorIs(t, err, ErrNoPendingBlock)
}

func TestWeakTopics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	cell, molecular, history := int64(1), int64(6), int64(101)
	env.repo.sessions = []models.StudySession{
		{UserID: 1, TopicID: &cell, SessionDate: "2025-03-09", HoursStudied: 8, QuestionsDone: 10, CorrectAnswers: 9},
		{UserID: 1, TopicID: &molecular, SessionDate: "2025-03-09", HoursStudied: 1, QuestionsDone: 10, CorrectAnswers: 9},
		{UserID: 1, TopicID: &history, SessionDate: "2025-03-09", HoursStudied: 7, QuestionsDone: 10, CorrectAnswers: 3},
		{UserID: 2, TopicID: &cell, SessionDate: "2025-03-09", HoursStudied: 1},
	}

	weak, err := env.svc.WeakTopics(ctx, 1)
	require.NoError(t, err)

	ids := make([]int64, 0, len(weak))
	for _, w := range weak {
		ids = append(ids, w.TopicID)
	}
	assert.ElementsMatch(t, []int64{6, 101}, ids)

	view, err := env.svc.Profile(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, view.Profile)
	assert.Len(t, view.Weak, 2)
	assert.Len(t, view.Week, 1)
}

func TestNightlySummaryAdjustsHours(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)
	env.register(t, 2)

	summary, err := env.svc.NightlySummary(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, env.repo.UpsertProfile(ctx, &models.Profile{UserID: 2, RecommendedDailyHours: 10.5}))
	_, err = env.svc.GenerateDailyPlan(ctx, 2)
	require.NoError(t, err)
	_, err = env.svc.LogDone(ctx, 2, 60, 5, 10)
	require.NoError(t, err)

	summary, err = env.svc.NightlySummary(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 0.5, summary.Calibration.Accuracy)
	assert.Equal(t, 0.14, summary.Calibration.CompletionRate)
	assert.Equal(t, 0.0, summary.Calibration.FatigueScore)
	assert.True(t, summary.Adjustment.Changed)
	assert.Equal(t, 9.5, summary.Adjustment.Hours)

	user, err := env.repo.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 9.5, user.DailyGoal)
	profile, err := env.repo.GetProfile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 9.5, profile.RecommendedDailyHours)

	require.NotNil(t, summary.Quiz)
	assert.Equal(t, config.CalibrationMock, summary.Quiz.Name)
	kind, ok := env.svc.ActiveSession(2)
	assert.True(t, ok)
	assert.Equal(t, quiz.KindMock, kind)

	// a rerun upserts the same record and leaves the running quiz alone
	summary, err = env.svc.NightlySummary(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, summary.Quiz)
	assert.Len(t, env.repo.calibrations, 1)
}

func TestMiddayNagAndBriefing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	brief, err := env.svc.MorningBriefing(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, brief.Plan.Blocks, 7)
	assert.Equal(t, 14, brief.Countdown.Days)

	_, err = env.svc.LogDone(ctx, 1, 90, 0, 0)
	require.NoError(t, err)

	day, nag, err := env.svc.MiddayNag(ctx, 1)
	require.NoError(t, err)
	assert.True(t, nag)
	assert.Equal(t, 1.5, day.Stats.TotalHours)

	_, err = env.svc.LogDone(ctx, 1, 60, 0, 0)
	require.NoError(t, err)
	_, nag, err = env.svc.MiddayNag(ctx, 1)
	require.NoError(t, err)
	assert.False(t, nag)
}

func TestAdminDigest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		env.register(t, id)
	}

	_, err := env.svc.GenerateDailyPlan(ctx, 1)
	require.NoError(t, err)
	_, err = env.svc.LogDone(ctx, 1, 120, 0, 0)
	require.NoError(t, err)
	_, err = env.svc.LogDone(ctx, 1, 60, 0, 0)
	require.NoError(t, err)
	_, err = env.svc.LogDone(ctx, 2, 30, 0, 0)
	require.NoError(t, err)

	digest, err := env.svc.AdminDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", digest.Date)

	ids := func(entries []models.LeaderboardEntry) []int64 {
		out := make([]int64, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.TelegramID)
		}
		return out
	}
	assert.Equal(t, []int64{1, 2}, ids(digest.Top))
	assert.Equal(t, []int64{1}, ids(digest.OnTrack))
	assert.Equal(t, []int64{3, 2}, ids(digest.Low))
}

func TestEvictIdleSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, 1)

	_, err := env.svc.StartMock(ctx, 1, 1, "mini")
	require.NoError(t, err)

	env.clock.Advance(3 * time.Hour)
	dropped := env.svc.EvictIdleSessions(2 * time.Hour)
	require.Len(t, dropped, 1)
	assert.Equal(t, int64(1), dropped[0].UserID)

	_, ok := env.svc.ActiveSession(1)
	assert.False(t, ok)
}

func TestSyllabusAndCountdown(t *testing.T) {
	env := newTestEnv(t)

	sections, err := env.svc.Syllabus(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "SrSec", sections[0].Section)
	assert.Len(t, sections[0].Topics, 1)

	c := env.svc.ExamCountdown()
	assert.False(t, c.Passed())
	weeks, days := c.Split()
	assert.Equal(t, 2, weeks)
	assert.Equal(t, 0, days)

	env.clock.Advance(15 * 24 * time.Hour)
	assert.True(t, env.svc.ExamCountdown().Passed())
}
