package handler

import (
	"fmt"
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/romanzh1/rpsc-study-coach/internal/config"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
)

var (
	doneMinutes = []int{30, 45, 60, 75, 90, 120}

	scoreChoices = []struct {
		label   string
		correct int
		total   int
	}{
		{"😊 Good (8/10+)", 8, 10},
		{"🙂 Ok (6/10)", 6, 10},
		{"😐 Low (4/10)", 4, 10},
		{"😔 Poor (2/10)", 2, 10},
	}
)

func homeButton() tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData("🏠 Home Menu", "menu:home")
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today's Plan", "menu:today"),
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Next Block", "menu:next"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Log Done", "menu:done_prompt"),
			tgbotapi.NewInlineKeyboardButtonData("⏩ Skip Block", "menu:skip"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Mock Test", "menu:mock"),
			tgbotapi.NewInlineKeyboardButtonData("📊 My Stats", "menu:stats"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔴 Weak Topics", "menu:weak"),
			tgbotapi.NewInlineKeyboardButtonData("👤 My Profile", "menu:profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 Mock History", "menu:history"),
			tgbotapi.NewInlineKeyboardButtonData("📚 Syllabus", "menu:syllabus"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Help & Manual", "menu:help"),
		),
	)
}

func homeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(homeButton()))
}

func afterPlanKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Start Next Block", "menu:next"),
			tgbotapi.NewInlineKeyboardButtonData("🎯 Quick Mock", "menu:mock_mini"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 My Stats", "menu:stats"),
			homeButton(),
		),
	)
}

func afterBlockKeyboard(minutes int) tgbotapi.InlineKeyboardMarkup {
	if minutes <= 0 {
		minutes = defaultDoneMinutes
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Done (%d min)", minutes), fmt.Sprintf("done:%d:0:0", minutes)),
			tgbotapi.NewInlineKeyboardButtonData("✅ Other time", "menu:done_prompt"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏩ Skip This Block", "menu:skip"),
			homeButton(),
		),
	)
}

func afterDoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Next Block", "menu:next"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "menu:stats"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Quick Mock", "menu:mock_mini"),
			homeButton(),
		),
	)
}

func afterStatsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today's Plan", "menu:today"),
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Next Block", "menu:next"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔴 Weak Topics", "menu:weak"),
			homeButton(),
		),
	)
}

func nextOrHomeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Next Block", "menu:next"),
			homeButton(),
		),
	)
}

func doneMinutesKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for chunk := range slices.Chunk(doneMinutes, 3) {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(chunk))
		for _, m := range chunk {
			label := fmt.Sprintf("%d min", m)
			if m%60 == 0 && m > 60 {
				label = fmt.Sprintf("%d hours", m/60)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("done:%d:0:0", m)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Cancel", "menu:home")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func scoreKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(scoreChoices); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{}
		for _, c := range scoreChoices[i:min(i+2, len(scoreChoices))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.label, fmt.Sprintf("score:%d:%d", c.correct, c.total)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip Score Entry", "score:0:0")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mockOptionsKeyboard(modes map[string]config.MockMode) tgbotapi.InlineKeyboardMarkup {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	// larger sets first
	slices.SortFunc(names, func(a, b string) int {
		if d := modes[b].Questions - modes[a].Questions; d != 0 {
			return d
		}
		if a < b {
			return -1
		}
		return 1
	})

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range names {
		m := modes[name]
		label := fmt.Sprintf("%s (%d Q)", m.Label, m.Questions)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "mockstart:"+name)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Menu", "menu:home")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func promptKeyboard(p *quiz.Prompt) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, opt := range p.Question.Options() {
		if opt == "" {
			continue
		}
		label := fmt.Sprintf("%s) %s", optionLabels[i], opt)
		if r := []rune(label); len(r) > 60 {
			label = string(r[:57]) + "..."
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, quizData(p.Kind, p.SessionID, p.Index, fmt.Sprint(i))),
		))
	}

	if p.Kind == quiz.KindDiagnostic {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip this question", quizData(p.Kind, p.SessionID, p.Index, "skip")),
		))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip", quizData(p.Kind, p.SessionID, p.Index, "skip")),
			tgbotapi.NewInlineKeyboardButtonData("🛑 End Mock", quizData(p.Kind, p.SessionID, p.Index, "end")),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
