package handler

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
)

// QuestionTimedOut reports an auto-skipped question and moves the quiz on.
func (h *TelegramHandler) QuestionTimedOut(_ context.Context, step *service.QuizStep) {
	h.deliverStep(step.ChatID, step)
}

func (h *TelegramHandler) SendBriefing(chatID int64, user *models.User, b *service.Briefing) error {
	return h.send(chatID, formatBriefing(user, b), afterPlanKeyboard())
}

func (h *TelegramHandler) SendNag(chatID int64, user *models.User, day *service.DayReport) error {
	return h.send(chatID, formatNag(user, day, rand.IntN(len(nagTemplates))), afterStatsKeyboard())
}

// SendNightSummary also opens the calibration quiz when the summary started one.
func (h *TelegramHandler) SendNightSummary(chatID int64, user *models.User, s *service.NightSummary) error {
	if err := h.send(chatID, formatNightSummary(user, s), nil); err != nil {
		return err
	}
	if s.Quiz == nil {
		return nil
	}

	if err := h.send(chatID, mockIntro(s.Quiz), nil); err != nil {
		return err
	}
	return h.send(chatID, formatPrompt(s.Quiz.Prompt, remaining(s.Quiz.Prompt)), promptKeyboard(s.Quiz.Prompt))
}

func (h *TelegramHandler) SendAdminDigest(chatID int64, d *service.AdminDigest) error {
	return h.send(chatID, formatAdminDigest(d), nil)
}

func (h *TelegramHandler) SendSessionExpired(a quiz.Abandoned) error {
	what := "mock test"
	if a.Kind == quiz.KindDiagnostic {
		what = "diagnostic test"
	}
	text := fmt.Sprintf("⌛ Your %s expired after a long pause. Start a new one whenever you are ready.", what)
	return h.send(a.ChatID, text, homeKeyboard())
}
