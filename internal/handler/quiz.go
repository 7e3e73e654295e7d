package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"go.uber.org/zap"
)

func (h *TelegramHandler) handleQuizAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery) string {
	userID := callback.From.ID

	qc, err := parseQuizCallback(callback.Data)
	if err != nil {
		zap.S().Warnw("parse quiz callback", zap.Error(err), zap.Int64("telegram_id", userID))
		return "Unknown action"
	}

	var step *service.QuizStep
	switch qc.Action {
	case actionAnswer:
		step, err = h.service.Answer(ctx, userID, qc.SessionID, qc.Index, qc.Choice)
	case actionSkip:
		step, err = h.service.Skip(ctx, userID, qc.SessionID, qc.Index)
	case actionEnd:
		step, err = h.service.EndMock(ctx, userID, qc.SessionID)
	}

	// a press on an old question or a finished session is ignored
	if errors.Is(err, quiz.ErrStaleQuestion) || errors.Is(err, quiz.ErrNoSession) || errors.Is(err, quiz.ErrNotMock) {
		return ""
	}
	if err != nil {
		zap.S().Errorw("resolve quiz question", zap.Error(err), zap.Int64("telegram_id", userID),
			zap.String("session_id", qc.SessionID), zap.Int("index", qc.Index))
		h.sendMessage(callback.Message.Chat.ID, msgError)
		return ""
	}

	h.clearKeyboard(callback)
	h.deliverStep(callback.Message.Chat.ID, step)
	return ""
}

func (h *TelegramHandler) handleMockStart(ctx context.Context, callback *tgbotapi.CallbackQuery) string {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	name := strings.TrimPrefix(callback.Data, "mockstart:")

	if !h.requireUser(ctx, userID, chatID) {
		return ""
	}
	if _, active := h.service.ActiveSession(userID); active {
		return msgBusy
	}

	h.clearKeyboard(callback)
	h.startMock(ctx, userID, chatID, name)
	return ""
}

func (h *TelegramHandler) startMock(ctx context.Context, userID, chatID int64, name string) {
	start, err := h.service.StartMock(ctx, userID, chatID, name)
	if err != nil {
		h.quizStartError(chatID, userID, err)
		return
	}

	h.sendMessage(chatID, mockIntro(start))
	h.sendPrompt(chatID, start.Prompt)
}

func mockIntro(start *service.MockStart) string {
	return fmt.Sprintf("🎯 <b>%s</b>\n📝 %d Questions | ⏱️ %d min\n⚠️ Negative marking: -1/3 per wrong answer",
		escapeHTML(start.Mode.Label), start.Prompt.Total, start.Mode.Minutes)
}

func (h *TelegramHandler) quizStartError(chatID, userID int64, err error) {
	switch {
	case errors.Is(err, quiz.ErrSessionActive):
		h.sendMessage(chatID, msgBusy)
	case errors.Is(err, quiz.ErrNoQuestions):
		h.sendMessageWithKeyboard(chatID, msgNoQuestions, homeKeyboard())
	case errors.Is(err, service.ErrUnknownMock):
		h.sendMessageWithKeyboard(chatID, "❌ Unknown mock mode.", homeKeyboard())
	default:
		zap.S().Errorw("start quiz", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
	}
}

func (h *TelegramHandler) sendPrompt(chatID int64, p *quiz.Prompt) {
	h.sendMessageWithKeyboard(chatID, formatPrompt(p, remaining(p)), promptKeyboard(p))
}

func remaining(p *quiz.Prompt) time.Duration {
	if p.Deadline.IsZero() {
		return 0
	}
	return time.Until(p.Deadline)
}

// deliverStep sends the feedback for a resolved question, then either the
// next prompt or the session result.
func (h *TelegramHandler) deliverStep(chatID int64, step *service.QuizStep) {
	if fb := formatFeedback(step); fb != "" {
		h.sendMessage(chatID, fb)
	}

	if step.Next != nil {
		h.sendPrompt(chatID, step.Next)
		return
	}
	if step.Result == nil {
		return
	}

	switch {
	case step.Kind == quiz.KindDiagnostic && step.Profile != nil:
		h.sendMessageWithKeyboard(chatID, formatDiagnosticResult(step.Result, step.Profile), mainMenuKeyboard())
	case step.Kind == quiz.KindMock && step.Mock != nil:
		h.sendMessageWithKeyboard(chatID, formatMockResult(step.Mock, step.Result), afterStatsKeyboard())
	default:
		h.sendMessageWithKeyboard(chatID, "✅ Session finished.", homeKeyboard())
	}
}
