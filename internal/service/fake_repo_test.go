package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

type planKey struct {
	userID int64
	date   string
}

// fakeRepo is an in-memory models.Repository with the same semantics as the SQL one.
type fakeRepo struct {
	mu  sync.Mutex
	now func() time.Time

	users        map[int64]*models.User
	profiles     map[int64]*models.Profile
	topics       []models.Topic
	questions    []models.Question
	plans        map[planKey][]models.DailyPlanBlock
	sessions     []models.StudySession
	mocks        []models.MockResult
	streaks      map[planKey]models.StreakDay
	calibrations map[planKey]models.CalibrationRecord
}

func newFakeRepo(now func() time.Time) *fakeRepo {
	return &fakeRepo{
		now:          now,
		users:        map[int64]*models.User{},
		profiles:     map[int64]*models.Profile{},
		plans:        map[planKey][]models.DailyPlanBlock{},
		streaks:      map[planKey]models.StreakDay{},
		calibrations: map[planKey]models.CalibrationRecord{},
	}
}

func (f *fakeRepo) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.TelegramID]; !ok {
		u := *user
		f.users[user.TelegramID] = &u
	}
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, telegramID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[telegramID]
	if !ok {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", telegramID, sql.ErrNoRows)
	}
	c := *u
	return &c, nil
}

func (f *fakeRepo) UserExists(_ context.Context, telegramID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[telegramID]
	return ok, nil
}

func (f *fakeRepo) MarkOnboarded(_ context.Context, telegramID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[telegramID]; ok {
		u.Onboarded = true
	}
	return nil
}

func (f *fakeRepo) UpdateDailyGoal(_ context.Context, telegramID int64, hours float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[telegramID]; ok {
		u.DailyGoal = hours
	}
	return nil
}

func (f *fakeRepo) GetAllUsers(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].TelegramID < users[j].TelegramID })
	return users, nil
}

func (f *fakeRepo) RunInTx(_ context.Context, fn func(models.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetProfile(_ context.Context, userID int64) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeRepo) UpsertProfile(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *profile
	f.profiles[profile.UserID] = &c
	return nil
}

func (f *fakeRepo) UpdateRecommendedHours(ctx context.Context, userID int64, hours float64, calibratedOn string) error {
	f.mu.Lock()
	if p, ok := f.profiles[userID]; ok {
		p.RecommendedDailyHours = hours
		p.LastCalibrated = &calibratedOn
	}
	f.mu.Unlock()
	return f.UpdateDailyGoal(ctx, userID, hours)
}

func (f *fakeRepo) GetTopics(_ context.Context, paper int) ([]models.Topic, error) {
	var out []models.Topic
	for _, t := range f.topics {
		if paper == 0 || t.Paper == paper {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetTopic(_ context.Context, topicID int64) (*models.Topic, error) {
	for _, t := range f.topics {
		if t.ID == topicID {
			c := t
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepo) CountTopics(_ context.Context) (int, error) {
	return len(f.topics), nil
}

func (f *fakeRepo) InsertTopics(_ context.Context, topics []models.Topic) error {
	f.topics = append(f.topics, topics...)
	return nil
}

func (f *fakeRepo) GetDiagnosticQuestions(_ context.Context, _ []models.Stratum, total int) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.questions {
		if q.IsDiagnostic && len(out) < total {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetQuestions(_ context.Context, filter models.QuestionFilter) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.questions {
		if q.IsDiagnostic {
			continue
		}
		if filter.Paper != 0 && q.Paper != filter.Paper {
			continue
		}
		if filter.Section != "" && q.Section != filter.Section {
			continue
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeRepo) CountQuestions(_ context.Context) (int, error) {
	return len(f.questions), nil
}

func (f *fakeRepo) InsertQuestions(_ context.Context, questions []models.Question) error {
	f.questions = append(f.questions, questions...)
	return nil
}

func (f *fakeRepo) ReplaceDailyPlan(_ context.Context, userID int64, planDate string, blocks []models.DailyPlanBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]models.DailyPlanBlock, len(blocks))
	for i, b := range blocks {
		b.ID = int64(i + 1)
		b.UserID = userID
		b.PlanDate = planDate
		b.BlockIndex = i
		if b.Status == "" {
			b.Status = models.BlockPending
		}
		b.UpdatedAt = f.now().UTC()
		b.Priority = 0
		stored[i] = b
	}
	f.plans[planKey{userID, planDate}] = stored
	return nil
}

func (f *fakeRepo) GetDailyPlan(_ context.Context, userID int64, planDate string) ([]models.DailyPlanBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.plans[planKey{userID, planDate}]), nil
}

func (f *fakeRepo) SetBlockStatus(_ context.Context, userID int64, planDate string, blockIndex int, status models.BlockStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blocks := f.plans[planKey{userID, planDate}]
	for i := range blocks {
		if blocks[i].BlockIndex == blockIndex {
			blocks[i].Status = status
			blocks[i].UpdatedAt = f.now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateStudySession(_ context.Context, session *models.StudySession) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *session
	s.ID = int64(len(f.sessions) + 1)
	f.sessions = append(f.sessions, s)
	return s.ID, nil
}

func (f *fakeRepo) GetDayStats(_ context.Context, userID int64, date string) (*models.DayStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st models.DayStats
	for _, s := range f.sessions {
		if s.UserID == userID && s.SessionDate == date {
			st.TotalHours += s.HoursStudied
			st.TotalQuestions += s.QuestionsDone
			st.TotalCorrect += s.CorrectAnswers
		}
	}
	for _, b := range f.plans[planKey{userID, date}] {
		st.PlanTotal++
		if b.Status == models.BlockDone {
			st.PlanDone++
		}
	}
	return &st, nil
}

func (f *fakeRepo) GetWeeklyTotals(_ context.Context, userID int64, days int) ([]models.DailyTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDate := map[string]*models.DailyTotals{}
	for _, s := range f.sessions {
		if s.UserID != userID {
			continue
		}
		t, ok := byDate[s.SessionDate]
		if !ok {
			t = &models.DailyTotals{SessionDate: s.SessionDate}
			byDate[s.SessionDate] = t
		}
		t.Hours += s.HoursStudied
		t.Questions += s.QuestionsDone
		t.Correct += s.CorrectAnswers
	}
	var out []models.DailyTotals
	for _, t := range byDate {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionDate > out[j].SessionDate })
	if len(out) > days {
		out = out[:days]
	}
	return out, nil
}

func (f *fakeRepo) GetTopicProgress(_ context.Context, userID int64) ([]models.TopicProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TopicProgress
	for _, t := range f.topics {
		p := models.TopicProgress{TopicID: t.ID, Name: t.Name, Section: t.Section, TargetHours: t.TargetHours}
		seen := false
		for _, s := range f.sessions {
			if s.UserID == userID && s.TopicID != nil && *s.TopicID == t.ID {
				seen = true
				p.Studied += s.HoursStudied
				p.QuestionsDone += s.QuestionsDone
				p.Correct += s.CorrectAnswers
			}
		}
		if seen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateMockResult(_ context.Context, result *models.MockResult) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := *result
	m.ID = int64(len(f.mocks) + 1)
	f.mocks = append(f.mocks, m)
	return m.ID, nil
}

func (f *fakeRepo) GetMockHistory(_ context.Context, userID int64, limit int) ([]models.MockResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MockResult
	for i := len(f.mocks) - 1; i >= 0 && len(out) < limit; i-- {
		if f.mocks[i].UserID == userID {
			out = append(out, f.mocks[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertStreakDay(_ context.Context, day *models.StreakDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaks[planKey{day.UserID, day.StreakDate}] = *day
	return nil
}

func (f *fakeRepo) CountStreak(_ context.Context, userID int64, since string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, d := range f.streaks {
		if k.userID == userID && d.IsComplete && k.date >= since {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) UpsertCalibration(_ context.Context, record *models.CalibrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibrations[planKey{record.UserID, record.CalDate}] = *record
	return nil
}

func (f *fakeRepo) GetRecentCalibrations(_ context.Context, userID int64, limit int) ([]models.CalibrationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CalibrationRecord
	for k, r := range f.calibrations {
		if k.userID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalDate > out[j].CalDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) GetDailyLeaderboard(ctx context.Context, date string) ([]models.LeaderboardEntry, error) {
	users, _ := f.GetAllUsers(ctx)
	var out []models.LeaderboardEntry
	for _, u := range users {
		st, _ := f.GetDayStats(ctx, u.TelegramID, date)
		out = append(out, models.LeaderboardEntry{
			TelegramID: u.TelegramID,
			FirstName:  u.FirstName,
			TotalHours: st.TotalHours,
			Questions:  st.TotalQuestions,
			Correct:    st.TotalCorrect,
			DoneBlocks: st.PlanDone,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalHours > out[j].TotalHours })
	return out, nil
}
