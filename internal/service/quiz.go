package service

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/metrics"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
	"go.uber.org/zap"
)

const timeoutWork = 30 * time.Second

// QuizStep is a resolved question plus whatever was persisted when it ended the session.
type QuizStep struct {
	quiz.Step

	Profile *models.Profile
	Mock    *models.MockResult
}

type MockStart struct {
	Name   string
	Mode   config.MockMode
	Prompt *quiz.Prompt
}

func (s *Service) ActiveSession(userID int64) (quiz.Kind, bool) {
	return s.quiz.Active(userID)
}

func (s *Service) MockModes() map[string]config.MockMode {
	return s.plan.Mocks
}

// StartDiagnostic draws the stratified onboarding set and shows its first question.
func (s *Service) StartDiagnostic(ctx context.Context, userID, chatID int64) (*quiz.Prompt, error) {
	if kind, ok := s.quiz.Active(userID); ok {
		return nil, fmt.Errorf("start diagnostic (telegram_id: %d, active: %s): %w", userID, kind, quiz.ErrSessionActive)
	}

	questions, err := s.repo.GetDiagnosticQuestions(ctx, s.plan.Strata, s.plan.DiagnosticSize)
	if err != nil {
		return nil, fmt.Errorf("get diagnostic questions (telegram_id: %d): %w", userID, err)
	}

	prompt, err := s.quiz.Start(quiz.StartOptions{
		Kind:      quiz.KindDiagnostic,
		UserID:    userID,
		ChatID:    chatID,
		Questions: questions,
	})
	if err != nil {
		return nil, fmt.Errorf("start diagnostic (telegram_id: %d): %w", userID, err)
	}

	s.sessionStarted(quiz.KindDiagnostic)
	return prompt, nil
}

// StartMock draws a random set for the named mode.
func (s *Service) StartMock(ctx context.Context, userID, chatID int64, name string) (*MockStart, error) {
	mode, ok := s.plan.Mocks[name]
	if !ok {
		return nil, fmt.Errorf("start mock (telegram_id: %d, mode: %s): %w", userID, name, ErrUnknownMock)
	}
	if kind, ok := s.quiz.Active(userID); ok {
		return nil, fmt.Errorf("start mock (telegram_id: %d, active: %s): %w", userID, kind, quiz.ErrSessionActive)
	}

	questions, err := s.repo.GetQuestions(ctx, mode.Filter())
	if err != nil {
		return nil, fmt.Errorf("get mock questions (telegram_id: %d, mode: %s): %w", userID, name, err)
	}

	prompt, err := s.quiz.Start(quiz.StartOptions{
		Kind:      quiz.KindMock,
		Mode:      name,
		UserID:    userID,
		ChatID:    chatID,
		Paper:     mode.Paper,
		Questions: questions,
	})
	if err != nil {
		return nil, fmt.Errorf("start mock (telegram_id: %d, mode: %s): %w", userID, name, err)
	}

	s.sessionStarted(quiz.KindMock)
	return &MockStart{Name: name, Mode: mode, Prompt: prompt}, nil
}

// Answer resolves the shown question. Stale or foreign session ids come back
// as quiz.ErrStaleQuestion and leave the session untouched.
func (s *Service) Answer(ctx context.Context, userID int64, sessionID string, index, choice int) (*QuizStep, error) {
	step, err := s.quiz.Answer(userID, sessionID, index, choice)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, step)
}

func (s *Service) Skip(ctx context.Context, userID int64, sessionID string, index int) (*QuizStep, error) {
	step, err := s.quiz.Skip(userID, sessionID, index)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, step)
}

// EndMock scores a mock on what was answered so far.
func (s *Service) EndMock(ctx context.Context, userID int64, sessionID string) (*QuizStep, error) {
	step, err := s.quiz.End(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, step)
}

// EvictIdleSessions drops sessions idle for longer than ttl.
func (s *Service) EvictIdleSessions(ttl time.Duration) []quiz.Abandoned {
	dropped := s.quiz.Evict(ttl)
	if len(dropped) > 0 {
		metrics.SessionsEvicted.Add(float64(len(dropped)))
		zap.S().Infow("evicted idle sessions", zap.Int("count", len(dropped)))
	}
	metrics.ActiveSessions.Set(float64(s.quiz.Len()))
	return dropped
}

func (s *Service) sessionStarted(kind quiz.Kind) {
	metrics.QuizStarted.WithLabelValues(kind.String()).Inc()
	metrics.ActiveSessions.Set(float64(s.quiz.Len()))
}

func (s *Service) complete(ctx context.Context, step *quiz.Step) (*QuizStep, error) {
	out := &QuizStep{Step: *step}
	if step.Result == nil {
		return out, nil
	}

	metrics.QuizFinished.WithLabelValues(step.Kind.String()).Inc()
	metrics.ActiveSessions.Set(float64(s.quiz.Len()))

	switch step.Kind {
	case quiz.KindDiagnostic:
		profile, err := s.saveDiagnostic(ctx, step.UserID, step.Result)
		if err != nil {
			return nil, err
		}
		out.Profile = profile
	case quiz.KindMock:
		mock, err := s.saveMock(ctx, step.UserID, step.Result)
		if err != nil {
			return nil, err
		}
		out.Mock = mock
	}

	return out, nil
}

func (s *Service) saveDiagnostic(ctx context.Context, userID int64, r *quiz.Result) (*models.Profile, error) {
	profile := adaptive.InitialProfile(userID, r.Baseline())

	err := s.repo.RunInTx(ctx, func(tx models.Repository) error {
		if err := tx.UpsertProfile(ctx, profile); err != nil {
			return err
		}
		if err := tx.UpdateDailyGoal(ctx, userID, profile.RecommendedDailyHours); err != nil {
			return err
		}
		return tx.MarkOnboarded(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("save diagnostic (telegram_id: %d): %w", userID, err)
	}

	zap.S().Infow("diagnostic completed",
		zap.Int64("telegram_id", userID),
		zap.Float64("paper1", profile.BaselinePaper1),
		zap.Float64("paper2", profile.BaselinePaper2),
		zap.Float64("hours", profile.RecommendedDailyHours))

	return profile, nil
}

func (s *Service) saveMock(ctx context.Context, userID int64, r *quiz.Result) (*models.MockResult, error) {
	mock := &models.MockResult{
		UserID:    userID,
		MockDate:  utils.DateString(s.clock()),
		Paper:     r.Paper,
		TotalQ:    r.Total,
		Attempted: r.Attempted(),
		Correct:   r.Correct,
		Wrong:     r.Wrong,
		ScoreRaw:  float64(r.Correct),
		ScoreNet:  r.NetScore(),
		TimeTaken: int(r.Elapsed.Seconds()),
	}

	id, err := s.repo.CreateMockResult(ctx, mock)
	if err != nil {
		return nil, fmt.Errorf("save mock result (telegram_id: %d): %w", userID, err)
	}
	mock.ID = id

	return mock, nil
}

// handleTimeout runs on the timer goroutine after a diagnostic question expired.
func (s *Service) handleTimeout(step quiz.Step) {
	metrics.QuestionsTimedOut.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), timeoutWork)
	defer cancel()

	out, err := s.complete(ctx, &step)
	if err != nil {
		zap.S().Errorw("complete timed out question", zap.Error(err), zap.Int64("telegram_id", step.UserID))
		return
	}

	if n := s.getNotifier(); n != nil {
		n.QuestionTimedOut(ctx, out)
	}
}
