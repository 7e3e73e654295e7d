package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"go.uber.org/zap"
)

const (
	updateTimeout = 60
	requestWork   = 30 * time.Second

	msgError       = "⚠️ Something went wrong. Please try again later."
	msgRegister    = "Please register first with /start"
	msgBusy        = "⚠️ Complete your current test first!"
	msgNoQuestions = "❌ No questions available for this selection."
)

type Service interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error)
	GetUser(ctx context.Context, telegramID int64) (*models.User, error)
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	DailyGoal(ctx context.Context, telegramID int64) (float64, error)
	Streak(ctx context.Context, userID int64) (int, error)
	ExamCountdown() service.Countdown

	TodayPlan(ctx context.Context, userID int64) (*service.DayPlan, error)
	NextBlock(ctx context.Context, userID int64) (*models.DailyPlanBlock, error)
	LogDone(ctx context.Context, userID int64, minutes, correct, total int) (*service.DoneReport, error)
	SkipBlock(ctx context.Context, userID int64, window time.Duration) (*models.DailyPlanBlock, error)
	TodayStats(ctx context.Context, userID int64) (*service.DayReport, error)
	WeakTopics(ctx context.Context, userID int64) ([]models.TopicProgress, error)
	Profile(ctx context.Context, userID int64) (*service.ProfileView, error)
	MockHistory(ctx context.Context, userID int64) ([]models.MockResult, error)
	Syllabus(ctx context.Context) ([]service.SyllabusSection, error)

	ActiveSession(userID int64) (quiz.Kind, bool)
	MockModes() map[string]config.MockMode
	StartDiagnostic(ctx context.Context, userID, chatID int64) (*quiz.Prompt, error)
	StartMock(ctx context.Context, userID, chatID int64, name string) (*service.MockStart, error)
	Answer(ctx context.Context, userID int64, sessionID string, index, choice int) (*service.QuizStep, error)
	Skip(ctx context.Context, userID int64, sessionID string, index int) (*service.QuizStep, error)
	EndMock(ctx context.Context, userID int64, sessionID string) (*service.QuizStep, error)
}

type Options struct {
	// SkipWindow limits how long after a block becomes current it may be skipped; zero disables the limit.
	SkipWindow      time.Duration
	QuestionTimeout time.Duration
}

type TelegramHandler struct {
	api     *tgbotapi.BotAPI
	service Service
	opts    Options

	mu          sync.Mutex
	pendingDone map[int64]int
	nagVariant  int
}

func NewTelegramHandler(token string, service Service, opts Options) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return &TelegramHandler{
		api:         api,
		service:     service,
		opts:        opts,
		pendingDone: make(map[int64]int),
	}, nil
}

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Home menu / restart"},
	{Command: "today", Description: "See today's study plan"},
	{Command: "done", Description: "Log done: /done 90 8/10"},
	{Command: "mock", Description: "Start a mock test"},
	{Command: "stats", Description: "Today's stats"},
	{Command: "weak", Description: "Weak topics"},
	{Command: "profile", Description: "Capability snapshot"},
	{Command: "history", Description: "Mock history"},
	{Command: "syllabus", Description: "Syllabus catalog"},
	{Command: "help", Description: "User manual"},
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		h.handleStart(ctx, update)
	case "today":
		h.handleToday(ctx, update)
	case "done":
		h.handleDone(ctx, update)
	case "mock":
		h.handleMock(ctx, update)
	case "stats":
		h.handleStats(ctx, update)
	case "weak":
		h.handleWeak(ctx, update)
	case "profile":
		h.handleProfile(ctx, update)
	case "history":
		h.handleHistory(ctx, update)
	case "syllabus":
		h.handleSyllabus(ctx, update)
	case "help":
		h.handleHelp(ctx, update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Unknown command. Use /help")
	}
}

// Run polls for updates until ctx is done.
func (h *TelegramHandler) Run(ctx context.Context) error {
	if _, err := h.api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		zap.S().Warnw("set bot commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout

	updates := h.api.GetUpdatesChan(u)

	zap.S().Infow("bot started", zap.String("username", h.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			h.api.StopReceivingUpdates()
			zap.S().Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *TelegramHandler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, requestWork)
	defer cancel()

	if update.Message != nil && update.Message.IsCommand() {
		// only users, not channels
		if update.Message.From == nil {
			zap.S().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	} else if update.Message != nil {
		if update.Message.From == nil {
			zap.S().Warn("received message from nil user")
			return
		}
		h.sendMessageWithKeyboard(update.Message.Chat.ID, "👇 Use the buttons or type /help", mainMenuKeyboard())
	} else if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil || update.CallbackQuery.Message == nil {
			zap.S().Warn("received callback without user or message")
			return
		}
		h.handleCallback(ctx, update)
	}
}

// requireUser reports whether the user is registered, telling them otherwise.
func (h *TelegramHandler) requireUser(ctx context.Context, userID, chatID int64) bool {
	exists, err := h.service.UserExists(ctx, userID)
	if err != nil {
		zap.S().Errorw("check user exists", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return false
	}
	if !exists {
		h.sendMessage(chatID, msgRegister)
		return false
	}
	return true
}

func (h *TelegramHandler) handleStart(ctx context.Context, update tgbotapi.Update) {
	from := update.Message.From
	chatID := update.Message.Chat.ID

	user, err := h.service.RegisterUser(ctx, from.ID, from.UserName, from.FirstName)
	if err != nil {
		zap.S().Errorw("register user", zap.Error(err), zap.Int64("telegram_id", from.ID))
		h.sendMessage(chatID, msgError)
		return
	}

	if user.Onboarded {
		h.showHome(ctx, user.TelegramID, chatID, fmt.Sprintf("👋 <b>Welcome back, %s!</b>", escapeHTML(user.FirstName)))
		return
	}

	text := fmt.Sprintf(`🎓 <b>Welcome, %s!</b>

I'm your lecturer exam study coach.

📋 <b>What I do for you</b>
  📅 Build a personalised daily plan
  🤖 Adapt it every night to your performance
  🎯 Mock tests with 1/3 negative marking
  🔗 Free PDF links for every topic

🎯 <b>First: a 30-question baseline test</b>
About 15 minutes, %d seconds per question. It sets your daily hours and priorities.`,
		escapeHTML(user.FirstName), int(h.opts.QuestionTimeout.Seconds()))
	h.sendMessage(chatID, text)

	prompt, err := h.service.StartDiagnostic(ctx, user.TelegramID, chatID)
	if err != nil {
		h.quizStartError(chatID, user.TelegramID, err)
		return
	}
	h.sendPrompt(chatID, prompt)
}

func (h *TelegramHandler) showHome(ctx context.Context, userID, chatID int64, title string) {
	streak, err := h.service.Streak(ctx, userID)
	if err != nil {
		zap.S().Errorw("get streak", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	goal, err := h.service.DailyGoal(ctx, userID)
	if err != nil {
		zap.S().Errorw("get daily goal", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	h.sendMessageWithKeyboard(chatID, formatHome(title, streak, goal, h.service.ExamCountdown()), mainMenuKeyboard())
}

func (h *TelegramHandler) handleToday(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showToday(ctx, userID, chatID)
}

func (h *TelegramHandler) showToday(ctx context.Context, userID, chatID int64) {
	plan, err := h.service.TodayPlan(ctx, userID)
	if err != nil {
		zap.S().Errorw("get today plan", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	h.sendMessageWithKeyboard(chatID, formatPlan(plan, h.service.ExamCountdown()), afterPlanKeyboard())
}

func (h *TelegramHandler) showNext(ctx context.Context, userID, chatID int64) {
	block, err := h.service.NextBlock(ctx, userID)
	if errors.Is(err, service.ErrNoPendingBlock) {
		h.sendMessageWithKeyboard(chatID, "🎉 <b>All blocks done for today!</b>\nAmazing work. Check your numbers below.",
			afterStatsKeyboard())
		return
	}
	if err != nil {
		zap.S().Errorw("get next block", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	h.sendMessageWithKeyboard(chatID, formatBlock(block), afterBlockKeyboard(block.Minutes()))
}

func (h *TelegramHandler) handleDone(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}

	minutes, correct, total, err := parseDoneArgs(update.Message.CommandArguments())
	if err != nil {
		h.sendMessage(chatID, fmt.Sprintf("⚠️ %s\nUsage: <code>/done 90 8/10</code>, <code>/done 60 70%%</code> or <code>/done 45</code>",
			escapeHTML(err.Error())))
		return
	}

	h.logDone(ctx, userID, chatID, minutes, correct, total)
}

func (h *TelegramHandler) logDone(ctx context.Context, userID, chatID int64, minutes, correct, total int) {
	report, err := h.service.LogDone(ctx, userID, minutes, correct, total)
	if errors.Is(err, service.ErrInvalidLog) {
		h.sendMessage(chatID, "⚠️ That log does not add up. Minutes must be positive and correct answers cannot exceed the total.")
		return
	}
	if err != nil {
		zap.S().Errorw("log done", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	h.sendMessageWithKeyboard(chatID, formatDone(report), afterDoneKeyboard())
}

func (h *TelegramHandler) skipBlock(ctx context.Context, userID, chatID int64) {
	block, err := h.service.SkipBlock(ctx, userID, h.opts.SkipWindow)
	switch {
	case errors.Is(err, service.ErrNoPendingBlock):
		h.sendMessageWithKeyboard(chatID, "❌ No pending blocks to skip.", homeKeyboard())
		return
	case errors.Is(err, service.ErrSkipWindowClosed):
		h.sendMessageWithKeyboard(chatID, fmt.Sprintf("⛔ Too late to skip: blocks can only be skipped within %d minutes of becoming current.",
			int(h.opts.SkipWindow.Minutes())), nextOrHomeKeyboard())
		return
	case err != nil:
		zap.S().Errorw("skip block", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}

	text := fmt.Sprintf("⏭️ <b>Skipped:</b> %s\n\n⚠️ Skips are tracked and lower your completion rate.", escapeHTML(block.Label))
	h.sendMessageWithKeyboard(chatID, text, nextOrHomeKeyboard())
}

func (h *TelegramHandler) handleMock(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showMockOptions(userID, chatID)
}

func (h *TelegramHandler) showMockOptions(userID, chatID int64) {
	if _, active := h.service.ActiveSession(userID); active {
		h.sendMessage(chatID, msgBusy)
		return
	}
	h.sendMessageWithKeyboard(chatID, "🎯 <b>Choose your mock test:</b>", mockOptionsKeyboard(h.service.MockModes()))
}

func (h *TelegramHandler) handleStats(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showStats(ctx, userID, chatID)
}

func (h *TelegramHandler) showStats(ctx context.Context, userID, chatID int64) {
	day, err := h.service.TodayStats(ctx, userID)
	if err != nil {
		zap.S().Errorw("get today stats", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}
	h.sendMessageWithKeyboard(chatID, formatStats(day, h.service.ExamCountdown()), afterStatsKeyboard())
}

func (h *TelegramHandler) handleWeak(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showWeak(ctx, userID, chatID)
}

func (h *TelegramHandler) showWeak(ctx context.Context, userID, chatID int64) {
	weak, err := h.service.WeakTopics(ctx, userID)
	if err != nil {
		zap.S().Errorw("get weak topics", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}
	h.sendMessageWithKeyboard(chatID, formatWeak(weak), homeKeyboard())
}

func (h *TelegramHandler) handleProfile(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showProfile(ctx, userID, chatID)
}

func (h *TelegramHandler) showProfile(ctx context.Context, userID, chatID int64) {
	view, err := h.service.Profile(ctx, userID)
	if err != nil {
		zap.S().Errorw("get profile", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}
	h.sendMessageWithKeyboard(chatID, formatProfile(view), homeKeyboard())
}

func (h *TelegramHandler) handleHistory(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !h.requireUser(ctx, userID, chatID) {
		return
	}
	h.showHistory(ctx, userID, chatID)
}

func (h *TelegramHandler) showHistory(ctx context.Context, userID, chatID int64) {
	history, err := h.service.MockHistory(ctx, userID)
	if err != nil {
		zap.S().Errorw("get mock history", zap.Error(err), zap.Int64("telegram_id", userID))
		h.sendMessage(chatID, msgError)
		return
	}
	h.sendMessageWithKeyboard(chatID, formatHistory(history), homeKeyboard())
}

func (h *TelegramHandler) handleSyllabus(ctx context.Context, update tgbotapi.Update) {
	h.showSyllabus(ctx, update.Message.Chat.ID)
}

func (h *TelegramHandler) showSyllabus(ctx context.Context, chatID int64) {
	sections, err := h.service.Syllabus(ctx)
	if err != nil {
		zap.S().Errorw("get syllabus", zap.Error(err))
		h.sendMessage(chatID, msgError)
		return
	}
	h.sendMessageWithKeyboard(chatID, formatSyllabus(sections), homeKeyboard())
}

func (h *TelegramHandler) handleHelp(_ context.Context, update tgbotapi.Update) {
	h.sendMessageWithKeyboard(update.Message.Chat.ID, helpText, homeKeyboard())
}

func (h *TelegramHandler) handleCallback(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	data := callback.Data

	var notice string
	if strings.HasPrefix(data, "diag:") || strings.HasPrefix(data, "mock:") {
		notice = h.handleQuizAnswer(ctx, callback)
	} else if strings.HasPrefix(data, "mockstart:") {
		notice = h.handleMockStart(ctx, callback)
	} else if strings.HasPrefix(data, "done:") {
		notice = h.handleDoneButton(ctx, callback)
	} else if strings.HasPrefix(data, "score:") {
		notice = h.handleScoreButton(ctx, callback)
	} else if strings.HasPrefix(data, "menu:") {
		notice = h.handleMenu(ctx, callback)
	} else {
		zap.S().Warnw("unknown callback data", zap.String("data", data), zap.Int64("telegram_id", callback.From.ID))
		notice = "Unknown action"
	}

	// always answer so the client stops showing the spinner
	callbackConfig := tgbotapi.NewCallback(callback.ID, notice)
	if _, err := h.api.Request(callbackConfig); err != nil {
		zap.S().Errorw("send callback answer", zap.Error(err), zap.String("callback_id", callback.ID))
	}
}

func (h *TelegramHandler) handleDoneButton(ctx context.Context, callback *tgbotapi.CallbackQuery) string {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	v, err := parseInts(callback.Data, "done", 3)
	if err != nil {
		zap.S().Warnw("parse done callback", zap.Error(err))
		return "Unknown action"
	}
	minutes, correct, total := v[0], v[1], v[2]

	h.clearKeyboard(callback)

	if total == 0 {
		h.setPendingDone(userID, minutes)
		h.sendMessageWithKeyboard(chatID, fmt.Sprintf("✅ <b>%d min</b> noted!\nHow did you score?", minutes), scoreKeyboard())
		return ""
	}

	h.logDone(ctx, userID, chatID, minutes, correct, total)
	return ""
}

func (h *TelegramHandler) handleScoreButton(ctx context.Context, callback *tgbotapi.CallbackQuery) string {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	v, err := parseInts(callback.Data, "score", 2)
	if err != nil {
		zap.S().Warnw("parse score callback", zap.Error(err))
		return "Unknown action"
	}

	h.clearKeyboard(callback)
	h.logDone(ctx, userID, chatID, h.popPendingDone(userID), v[0], v[1])
	return ""
}

func (h *TelegramHandler) handleMenu(ctx context.Context, callback *tgbotapi.CallbackQuery) string {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	action := strings.TrimPrefix(callback.Data, "menu:")

	h.clearKeyboard(callback)

	if !h.requireUser(ctx, userID, chatID) {
		return ""
	}

	switch action {
	case "home":
		h.showHome(ctx, userID, chatID, "🏠 <b>Home Menu</b>")
	case "today":
		h.showToday(ctx, userID, chatID)
	case "next":
		h.showNext(ctx, userID, chatID)
	case "done_prompt":
		h.sendMessageWithKeyboard(chatID, "⏱️ <b>How long did you study?</b>", doneMinutesKeyboard())
	case "skip":
		h.skipBlock(ctx, userID, chatID)
	case "stats":
		h.showStats(ctx, userID, chatID)
	case "weak":
		h.showWeak(ctx, userID, chatID)
	case "profile":
		h.showProfile(ctx, userID, chatID)
	case "history":
		h.showHistory(ctx, userID, chatID)
	case "syllabus":
		h.showSyllabus(ctx, chatID)
	case "mock":
		h.showMockOptions(userID, chatID)
	case "mock_mini":
		h.startMock(ctx, userID, chatID, config.CalibrationMock)
	case "help":
		h.sendMessageWithKeyboard(chatID, helpText, homeKeyboard())
	default:
		zap.S().Warnw("unknown menu action", zap.String("action", action), zap.Int64("telegram_id", userID))
		return "Unknown action"
	}
	return ""
}

func (h *TelegramHandler) setPendingDone(userID int64, minutes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingDone[userID] = minutes
}

// popPendingDone returns the minutes picked before the score, or the default.
func (h *TelegramHandler) popPendingDone(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	minutes, ok := h.pendingDone[userID]
	if !ok {
		return defaultDoneMinutes
	}
	delete(h.pendingDone, userID)
	return minutes
}

func (h *TelegramHandler) clearKeyboard(callback *tgbotapi.CallbackQuery) {
	edit := tgbotapi.NewEditMessageReplyMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := h.api.Request(edit); err != nil {
		zap.S().Debugw("clear keyboard", zap.Error(err), zap.Int64("chat_id", callback.Message.Chat.ID))
	}
}

func (h *TelegramHandler) send(chatID int64, text string, keyboard any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := h.api.Send(msg); err != nil {
		return fmt.Errorf("send message (chat_id: %d): %w", chatID, err)
	}
	return nil
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	if err := h.send(chatID, text, nil); err != nil {
		zap.S().Errorw("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) sendMessageWithKeyboard(chatID int64, text string, keyboard any) {
	if err := h.send(chatID, text, keyboard); err != nil {
		zap.S().Errorw("send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
