package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/romanzh1/rpsc-study-coach/internal/metrics"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"go.uber.org/zap"
)

// Fixed clock times, interpreted in the configured location.
const (
	BriefingSpec = "0 7 * * *"
	NagSpec      = "0 14 * * *"
	NightSpec    = "0 22 * * *"
	DigestSpec   = "0 23 * * *"
	SweepSpec    = "@every 10m"

	jobTimeout = 10 * time.Minute
)

const (
	JobBriefing = "briefing"
	JobNag      = "nag"
	JobNight    = "night_summary"
	JobDigest   = "admin_digest"
	JobSweep    = "session_sweep"
)

type Service interface {
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	MorningBriefing(ctx context.Context, userID int64) (*service.Briefing, error)
	MiddayNag(ctx context.Context, userID int64) (*service.DayReport, bool, error)
	NightlySummary(ctx context.Context, userID int64) (*service.NightSummary, error)
	AdminDigest(ctx context.Context) (*service.AdminDigest, error)
	EvictIdleSessions(ttl time.Duration) []quiz.Abandoned
}

// Messenger delivers job output to chats.
type Messenger interface {
	SendBriefing(chatID int64, user *models.User, b *service.Briefing) error
	SendNag(chatID int64, user *models.User, day *service.DayReport) error
	SendNightSummary(chatID int64, user *models.User, s *service.NightSummary) error
	SendAdminDigest(chatID int64, d *service.AdminDigest) error
	SendSessionExpired(a quiz.Abandoned) error
}

type Options struct {
	Location    *time.Location
	AdminChatID int64
	IdleTTL     time.Duration
}

type job struct {
	spec string
	name string
	fn   func(context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	service Service
	msg     Messenger
	opts    Options
}

func New(svc Service, msg Messenger, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(opts.Location)),
		service: svc,
		msg:     msg,
		opts:    opts,
	}

	jobs := []job{
		{BriefingSpec, JobBriefing, s.Briefing},
		{NagSpec, JobNag, s.Nag},
		{NightSpec, JobNight, s.Night},
		{DigestSpec, JobDigest, s.Digest},
	}
	if opts.IdleTTL > 0 {
		jobs = append(jobs, job{SweepSpec, JobSweep, s.Sweep})
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.fn)); err != nil {
			return nil, fmt.Errorf("add job (name: %s, spec: %s): %w", j.name, j.spec, err)
		}
	}

	return s, nil
}

// Run starts the cron loop and blocks until ctx is done and running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	zap.S().Infow("scheduler started", zap.String("location", s.opts.Location.String()), zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	zap.S().Info("scheduler stopped")
	return nil
}

func (s *Scheduler) wrap(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		metrics.JobRuns.WithLabelValues(name).Inc()

		if err := fn(ctx); err != nil {
			zap.S().Errorw("run job", zap.Error(err), zap.String("job", name))
		}

		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// forEachUser runs fn for every user. A failing user is logged and skipped.
func (s *Scheduler) forEachUser(ctx context.Context, name string, fn func(context.Context, *models.User) error) error {
	users, err := s.service.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("get all users: %w", err)
	}

	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(ctx, user); err != nil {
			metrics.JobFailures.WithLabelValues(name).Inc()
			zap.S().Errorw("job failed for user", zap.Error(err),
				zap.String("job", name),
				zap.Int64("telegram_id", user.TelegramID))
		}
	}

	return nil
}

// Briefing regenerates every user's plan and sends it.
func (s *Scheduler) Briefing(ctx context.Context) error {
	return s.forEachUser(ctx, JobBriefing, func(ctx context.Context, user *models.User) error {
		b, err := s.service.MorningBriefing(ctx, user.TelegramID)
		if err != nil {
			return err
		}
		return s.msg.SendBriefing(user.TelegramID, user, b)
	})
}

// Nag reminds users who are still under the midday threshold.
func (s *Scheduler) Nag(ctx context.Context) error {
	return s.forEachUser(ctx, JobNag, func(ctx context.Context, user *models.User) error {
		day, under, err := s.service.MiddayNag(ctx, user.TelegramID)
		if err != nil {
			return err
		}
		if !under {
			return nil
		}
		return s.msg.SendNag(user.TelegramID, user, day)
	})
}

func (s *Scheduler) Night(ctx context.Context) error {
	return s.forEachUser(ctx, JobNight, func(ctx context.Context, user *models.User) error {
		summary, err := s.service.NightlySummary(ctx, user.TelegramID)
		if err != nil {
			return err
		}
		if summary == nil {
			return nil
		}
		return s.msg.SendNightSummary(user.TelegramID, user, summary)
	})
}

func (s *Scheduler) Digest(ctx context.Context) error {
	if s.opts.AdminChatID == 0 {
		zap.S().Debug("admin chat not configured, skip digest")
		return nil
	}

	d, err := s.service.AdminDigest(ctx)
	if err != nil {
		return err
	}
	return s.msg.SendAdminDigest(s.opts.AdminChatID, d)
}

// Sweep drops idle quiz sessions and tells their owners.
func (s *Scheduler) Sweep(_ context.Context) error {
	for _, a := range s.service.EvictIdleSessions(s.opts.IdleTTL) {
		if err := s.msg.SendSessionExpired(a); err != nil {
			metrics.JobFailures.WithLabelValues(JobSweep).Inc()
			zap.S().Errorw("send session expired", zap.Error(err), zap.Int64("telegram_id", a.UserID))
		}
	}
	return nil
}
