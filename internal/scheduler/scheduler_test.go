package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeService struct {
	users    []*models.User
	failFor  int64
	hours    map[int64]float64
	inactive map[int64]bool
	evicted  []quiz.Abandoned
	ttl      time.Duration
}

func (f *fakeService) GetAllUsers(context.Context) ([]*models.User, error) {
	return f.users, nil
}

func (f *fakeService) MorningBriefing(_ context.Context, userID int64) (*service.Briefing, error) {
	if userID == f.failFor {
		return nil, errBoom
	}
	return &service.Briefing{Plan: &service.DayPlan{Date: "2025-03-10"}}, nil
}

func (f *fakeService) MiddayNag(_ context.Context, userID int64) (*service.DayReport, bool, error) {
	if userID == f.failFor {
		return nil, false, errBoom
	}
	h := f.hours[userID]
	return &service.DayReport{Stats: models.DayStats{TotalHours: h}}, h < service.NagThresholdHours, nil
}

func (f *fakeService) NightlySummary(_ context.Context, userID int64) (*service.NightSummary, error) {
	if userID == f.failFor {
		return nil, errBoom
	}
	if f.inactive[userID] {
		return nil, nil
	}
	return &service.NightSummary{}, nil
}

func (f *fakeService) AdminDigest(context.Context) (*service.AdminDigest, error) {
	return &service.AdminDigest{Date: "2025-03-10"}, nil
}

func (f *fakeService) EvictIdleSessions(ttl time.Duration) []quiz.Abandoned {
	f.ttl = ttl
	return f.evicted
}

type fakeMessenger struct {
	briefings []int64
	nags      []int64
	nights    []int64
	digests   []int64
	expired   []int64
	failFor   int64
}

func (m *fakeMessenger) SendBriefing(chatID int64, _ *models.User, _ *service.Briefing) error {
	m.briefings = append(m.briefings, chatID)
	return nil
}

func (m *fakeMessenger) SendNag(chatID int64, _ *models.User, _ *service.DayReport) error {
	m.nags = append(m.nags, chatID)
	return nil
}

func (m *fakeMessenger) SendNightSummary(chatID int64, _ *models.User, _ *service.NightSummary) error {
	m.nights = append(m.nights, chatID)
	return nil
}

func (m *fakeMessenger) SendAdminDigest(chatID int64, _ *service.AdminDigest) error {
	m.digests = append(m.digests, chatID)
	return nil
}

func (m *fakeMessenger) SendSessionExpired(a quiz.Abandoned) error {
	if a.UserID == m.failFor {
		return errBoom
	}
	m.expired = append(m.expired, a.ChatID)
	return nil
}

func users(ids ...int64) []*models.User {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.User{TelegramID: id, FirstName: "Student"})
	}
	return out
}

func newTestScheduler(t *testing.T, svc *fakeService, opts Options) (*Scheduler, *fakeMessenger) {
	t.Helper()
	msg := &fakeMessenger{}
	s, err := New(svc, msg, opts)
	require.NoError(t, err)
	return s, msg
}

func TestNewRegistersJobs(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeService{}, Options{})
	assert.Len(t, s.cron.Entries(), 4)

	s, _ = newTestScheduler(t, &fakeService{}, Options{IdleTTL: time.Hour, Location: time.UTC})
	assert.Len(t, s.cron.Entries(), 5)
}

func TestBriefingIsolatesFailures(t *testing.T) {
	svc := &fakeService{users: users(1, 2, 3), failFor: 2}
	s, msg := newTestScheduler(t, svc, Options{})

	require.NoError(t, s.Briefing(context.Background()))
	assert.Equal(t, []int64{1, 3}, msg.briefings)
}

func TestNagOnlyUnderThreshold(t *testing.T) {
	svc := &fakeService{
		users: users(1, 2, 3),
		hours: map[int64]float64{1: 0.5, 2: 2.0, 3: 1.99},
	}
	s, msg := newTestScheduler(t, svc, Options{})

	require.NoError(t, s.Nag(context.Background()))
	assert.Equal(t, []int64{1, 3}, msg.nags)
}

func TestNightSkipsInactiveUsers(t *testing.T) {
	svc := &fakeService{
		users:    users(1, 2, 3, 4),
		inactive: map[int64]bool{2: true},
		failFor:  3,
	}
	s, msg := newTestScheduler(t, svc, Options{})

	require.NoError(t, s.Night(context.Background()))
	assert.Equal(t, []int64{1, 4}, msg.nights)
}

func TestDigestNeedsAdminChat(t *testing.T) {
	s, msg := newTestScheduler(t, &fakeService{}, Options{})
	require.NoError(t, s.Digest(context.Background()))
	assert.Empty(t, msg.digests)

	s, msg = newTestScheduler(t, &fakeService{}, Options{AdminChatID: 42})
	require.NoError(t, s.Digest(context.Background()))
	assert.Equal(t, []int64{42}, msg.digests)
}

func TestSweepNotifiesOwners(t *testing.T) {
	svc := &fakeService{evicted: []quiz.Abandoned{
		{UserID: 1, ChatID: 100, Kind: quiz.KindMock},
		{UserID: 2, ChatID: 200, Kind: quiz.KindDiagnostic},
		{UserID: 3, ChatID: 300, Kind: quiz.KindMock},
	}}
	s, msg := newTestScheduler(t, svc, Options{IdleTTL: 2 * time.Hour})
	msg.failFor = 2

	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, 2*time.Hour, svc.ttl)
	assert.Equal(t, []int64{100, 300}, msg.expired)
}

func TestRunStopsWithContext(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeService{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
