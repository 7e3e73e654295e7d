package handler

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service"
	"github.com/romanzh1/rpsc-study-coach/internal/service/quiz"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
)

const barWidth = 10

var optionLabels = [4]string{"A", "B", "C", "D"}

var sectionLabels = map[string]string{
	"History":       "Rajasthan History",
	"Geography":     "Rajasthan Geography",
	"Polity":        "Polity",
	"SrSec":         "Sr. Secondary Biology",
	"Grad":          "Graduate Biology",
	"Pedagogy":      "Pedagogy",
	"ICT":           "ICT",
	"MentalAbility": "Mental Ability",
}

func sectionLabel(section string) string {
	if l, ok := sectionLabels[section]; ok {
		return l
	}
	return section
}

// escapeHTML escapes the three characters Telegram's HTML mode treats as markup.
// & goes first so existing entities are not double escaped.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func displayDate(date string) string {
	t, err := time.Parse(utils.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02 Jan 2006")
}

func hoursText(h float64) string {
	return fmt.Sprintf("%gh", math.Round(h*100)/100)
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

func progressBar(hours, goal float64) string {
	filled := 0
	if goal > 0 {
		filled = int(hours / goal * barWidth)
	}
	filled = max(0, min(filled, barWidth))
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", barWidth-filled)
}

func formatCountdown(c service.Countdown) string {
	if c.Passed() {
		return "🗓️ <b>Exam Countdown:</b> the exam date has passed."
	}
	weeks, days := c.Split()
	return fmt.Sprintf("🗓️ <b>Exam Countdown:</b> %d days (%dw %dd) remaining!", c.Days, weeks, days)
}

func formatHome(title string, streak int, goal float64, c service.Countdown) string {
	return fmt.Sprintf("%s\n\n🔥 Streak: <b>%d days</b> | ⏱️ Target: <b>%s</b>\n%s\n\n<i>What would you like to do?</i>",
		title, streak, hoursText(goal), formatCountdown(c))
}

func statusIcon(s models.BlockStatus) string {
	switch s {
	case models.BlockDone:
		return "✅"
	case models.BlockSkipped:
		return "⏭️"
	default:
		return "⏳"
	}
}

func formatPlan(p *service.DayPlan, c service.Countdown) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📅 <b>Study Plan — %s</b>\n", displayDate(p.Date))
	if p.RestDay {
		b.WriteString("🌿 <b>Rest day</b>: light review only, recharge for tomorrow.\n\n")
	} else {
		fmt.Fprintf(&b, "⏱️ Total: <b>%s</b> | Adaptive priority\n\n", hoursText(p.Hours()))
	}

	for i, block := range p.Blocks {
		fmt.Fprintf(&b, "<b>Block %d</b> %s %s <code>%s</code>\n", i+1, statusIcon(block.Status), block.Emoji, escapeHTML(block.Label))

		line := "  ⏱️ " + hoursText(block.Hours)
		if i < len(p.Slots) {
			line += " | 🕒 " + p.Slots[i].String()
		}
		if block.MarksWeight > 0 {
			line += fmt.Sprintf(" | 🎯 %d marks", block.MarksWeight)
		}
		b.WriteString(line + "\n")

		if block.TopicName != "" {
			fmt.Fprintf(&b, "  📚 <b>%s</b>", escapeHTML(block.TopicName))
			if block.Hint != "" {
				fmt.Fprintf(&b, " <i>(%s)</i>", escapeHTML(block.Hint))
			}
			b.WriteString("\n")
		}
		if block.FreePDFLink != "" {
			fmt.Fprintf(&b, "  🔗 <a href=\"%s\">Open Free PDF</a>\n", escapeHTML(block.FreePDFLink))
		}
	}

	fmt.Fprintf(&b, "\n%s", formatCountdown(c))
	return b.String()
}

func formatBlock(block *models.DailyPlanBlock) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚀 <b>Next Block — #%d</b>\n", block.BlockIndex+1)
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", block.Emoji, escapeHTML(block.Label))
	fmt.Fprintf(&b, "⏱️ Duration: <b>%s</b> (%d min)\n", hoursText(block.Hours), block.Minutes())

	if block.TopicName != "" {
		fmt.Fprintf(&b, "📚 Topic: <b>%s</b>\n", escapeHTML(block.TopicName))
	}
	if block.MarksWeight > 0 {
		fmt.Fprintf(&b, "🎯 Marks Weight: <b>%d</b>\n", block.MarksWeight)
	}
	if block.Hint != "" {
		fmt.Fprintf(&b, "🧠 Method: <b>%s</b>\n", escapeHTML(block.Hint))
	}
	if block.RecommendedBooks != "" {
		fmt.Fprintf(&b, "📖 Book: %s\n", escapeHTML(block.RecommendedBooks))
	}
	if block.FreePDFLink != "" {
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Open NCERT PDF</a>\n", escapeHTML(block.FreePDFLink))
	}

	return strings.TrimRight(b.String(), "\n")
}

func doneVerdict(r *service.DoneReport) string {
	if r.Total == 0 {
		return ""
	}
	switch p := r.Percent(); {
	case p >= 80:
		return "🏆 Excellent!"
	case p >= 60:
		return "✅ Good job!"
	case p >= 40:
		return "⚠️ Needs work"
	default:
		return "📚 Revise this topic!"
	}
}

func formatDone(r *service.DoneReport) string {
	var b strings.Builder

	b.WriteString("✅ <b>Block Logged!</b>\n\n")
	if r.Block != nil {
		fmt.Fprintf(&b, "%s %s\n", r.Block.Emoji, escapeHTML(r.Block.Label))
	}
	fmt.Fprintf(&b, "⏱️ Time: <b>%d min</b>\n", r.Minutes)
	if r.Total > 0 {
		fmt.Fprintf(&b, "📝 Score: <b>%d/%d</b> (%d%%)\n", r.Correct, r.Total, r.Percent())
	}
	fmt.Fprintf(&b, "📊 Today: <b>%s / %s</b>\n", hoursText(r.Day.Stats.TotalHours), hoursText(r.Day.Goal))
	fmt.Fprintf(&b, "%s\n", progressBar(r.Day.Stats.TotalHours, r.Day.Goal))
	fmt.Fprintf(&b, "🔥 Streak: <b>%d days</b>", r.Day.Streak)

	if v := doneVerdict(r); v != "" {
		fmt.Fprintf(&b, "\n\n%s", v)
	}
	return b.String()
}

func formatStats(d *service.DayReport, c service.Countdown) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>Today's Stats — %s</b>\n\n", displayDate(d.Date))
	fmt.Fprintf(&b, "⏱️ Hours: <b>%s / %s</b>\n", hoursText(d.Stats.TotalHours), hoursText(d.Goal))
	fmt.Fprintf(&b, "%s\n\n", progressBar(d.Stats.TotalHours, d.Goal))
	fmt.Fprintf(&b, "✅ Questions: <b>%d</b> | Correct: <b>%d</b>\n", d.Stats.TotalQuestions, d.Stats.TotalCorrect)
	fmt.Fprintf(&b, "📈 Accuracy: <b>%.1f%%</b>\n", d.Stats.Accuracy())
	fmt.Fprintf(&b, "📋 Blocks: <b>%d/%d done</b>\n", d.Stats.PlanDone, d.Stats.PlanTotal)
	fmt.Fprintf(&b, "🔥 Streak: <b>%d days</b>\n\n", d.Streak)
	b.WriteString(formatCountdown(c))

	return b.String()
}

func level(v, red, orange float64) string {
	switch {
	case v < red:
		return "🟥"
	case v < orange:
		return "🟧"
	default:
		return "🟨"
	}
}

func formatWeak(topics []models.TopicProgress) string {
	if len(topics) == 0 {
		return "🏆 <b>No weak topics!</b>\nKeep logging sessions so progress can be tracked."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 <b>Weak Topics</b> <i>(&lt; %d%% done or &lt; %d%% accurate)</i>\n\n",
		percent(service.WeakCompletion), percent(service.WeakAccuracy))

	for i, t := range topics {
		fmt.Fprintf(&b, "<b>%d. %s</b>\n", i+1, escapeHTML(t.Name))
		fmt.Fprintf(&b, "  %s Done: %d%% | %s Accuracy: %d%%\n",
			level(t.Completion(), 0.4, 0.6), percent(t.Completion()),
			level(t.Accuracy(), 0.3, 0.5), percent(t.Accuracy()))
		if t.FreePDFLink != "" {
			fmt.Fprintf(&b, "  🔗 <a href=\"%s\">Revise PDF</a>\n", escapeHTML(t.FreePDFLink))
		}
	}

	b.WriteString("\n<i>These topics get boosted in tomorrow's plan.</i>")
	return b.String()
}

func accuracyFlag(acc float64) string {
	switch {
	case acc >= 0.7:
		return "🟢"
	case acc >= 0.4:
		return "🟡"
	default:
		return "🔴"
	}
}

func formatProfile(v *service.ProfileView) string {
	if v.Profile == nil {
		return "👤 <b>No profile yet.</b>\nTake the 30-question diagnostic with /start to build one."
	}
	p := v.Profile

	var b strings.Builder
	b.WriteString("👤 <b>Your Capability Snapshot</b>\n\n")
	b.WriteString("📊 <b>Baseline Scores</b>\n")
	fmt.Fprintf(&b, "  🏛️ Paper I: <b>%d%%</b>\n", percent(p.BaselinePaper1))
	fmt.Fprintf(&b, "  🔬 Paper II: <b>%d%%</b>\n\n", percent(p.BaselinePaper2))

	b.WriteString("🧠 <b>Learning Profile</b>\n")
	fmt.Fprintf(&b, "  ⏱️ Avg response: <b>%gs/Q</b>\n", p.AvgResponseTime)
	fmt.Fprintf(&b, "  📖 Style: <b>%s</b>\n", escapeHTML(p.LearningStyle))
	fmt.Fprintf(&b, "  ❌ Error type: <b>%s</b>\n", p.ErrorType)
	fmt.Fprintf(&b, "  📉 Skip rate: <b>%d%%</b>\n\n", percent(p.SkipRate))

	b.WriteString("📅 <b>Adaptive Settings</b>\n")
	fmt.Fprintf(&b, "  ⏱️ Daily goal: <b>%s</b>\n", hoursText(p.RecommendedDailyHours))
	fmt.Fprintf(&b, "  ⏲️ Block length: <b>%d min</b>\n", p.RecommendedBlockLen)
	fmt.Fprintf(&b, "  🔥 Streak: <b>%d days</b>\n", v.Streak)
	if p.LastCalibrated != nil {
		fmt.Fprintf(&b, "  🔄 Last calibrated: %s\n", displayDate(*p.LastCalibrated))
	}

	if len(p.TopicAccuracy) > 0 {
		b.WriteString("\n🎯 <b>Section Accuracy</b>\n")
		sections := make([]string, 0, len(p.TopicAccuracy))
		for s := range p.TopicAccuracy {
			sections = append(sections, s)
		}
		slices.Sort(sections)
		for _, s := range sections {
			acc := p.TopicAccuracy[s]
			fmt.Fprintf(&b, "  %s %s: <b>%d%%</b>\n", accuracyFlag(acc), sectionLabel(s), percent(acc))
		}
	}

	fmt.Fprintf(&b, "\n🔴 <b>Weak Topics:</b> %d\n", len(v.Weak))

	if len(v.Calibrations) > 0 {
		b.WriteString("\n📈 <b>Recent Calibrations</b>\n")
		for _, c := range v.Calibrations {
			fmt.Fprintf(&b, "  %s: acc=%d%% | done=%d%% | %s\n",
				displayDate(c.CalDate), percent(c.Accuracy), percent(c.CompletionRate), hoursText(c.ActualHours))
		}
	}

	if len(v.Week) > 0 {
		b.WriteString("\n🗓️ <b>Last Days</b>\n")
		for _, d := range v.Week {
			fmt.Fprintf(&b, "  %s: %s | %d/%d correct\n", displayDate(d.SessionDate), hoursText(d.Hours), d.Correct, d.Questions)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(history []models.MockResult) string {
	if len(history) == 0 {
		return "📭 <b>No mock tests yet.</b>\nStart one with /mock."
	}

	var b strings.Builder
	b.WriteString("📜 <b>Mock History</b>\n\n")
	for i, m := range history {
		paper := "Mixed"
		if m.Paper > 0 {
			paper = fmt.Sprintf("Paper %d", m.Paper)
		}
		fmt.Fprintf(&b, "<b>#%d</b> <code>%s</code> | %s\n", i+1, m.MockDate, paper)
		fmt.Fprintf(&b, "  Score: %g/%d (%.1f%%) | ✅%d ❌%d\n", m.ScoreNet, m.TotalQ, m.Percent(), m.Correct, m.Wrong)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSyllabus(sections []service.SyllabusSection) string {
	if len(sections) == 0 {
		return "📚 The syllabus catalog is empty."
	}

	var b strings.Builder
	b.WriteString("📚 <b>Syllabus</b>\n")
	for _, s := range sections {
		var hours float64
		for _, t := range s.Topics {
			hours += t.TargetHours
		}
		fmt.Fprintf(&b, "\n<b>Paper %d — %s</b> (%d topics, %s)\n", s.Paper, sectionLabel(s.Section), len(s.Topics), hoursText(hours))
		for _, t := range s.Topics {
			if t.FreePDFLink != "" {
				fmt.Fprintf(&b, "  • <a href=\"%s\">%s</a>\n", escapeHTML(t.FreePDFLink), escapeHTML(t.Name))
			} else {
				fmt.Fprintf(&b, "  • %s\n", escapeHTML(t.Name))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPrompt(p *quiz.Prompt, remaining time.Duration) string {
	var b strings.Builder

	if p.Kind == quiz.KindDiagnostic {
		fmt.Fprintf(&b, "📝 <b>Diagnostic Q%d/%d</b> — %s\n\n", p.Index+1, p.Total, sectionLabel(p.Question.Section))
		fmt.Fprintf(&b, "<b>%s</b>\n\n", escapeHTML(p.Question.Text))
	} else {
		fmt.Fprintf(&b, "❓ <b>Q%d/%d</b>\n\n", p.Index+1, p.Total)
		fmt.Fprintf(&b, "%s\n\n", escapeHTML(p.Question.Text))
	}

	for i, opt := range p.Question.Options() {
		if opt == "" {
			continue
		}
		fmt.Fprintf(&b, "  <b>%s)</b> %s\n", optionLabels[i], escapeHTML(opt))
	}

	if remaining > 0 {
		fmt.Fprintf(&b, "\n⏱️ <i>%ds to answer</i>", int(remaining.Round(time.Second).Seconds()))
	} else if p.Kind == quiz.KindMock && p.Question.Level != "" {
		fmt.Fprintf(&b, "\n<i>Level: %s | Section: %s</i>", escapeHTML(p.Question.Level), sectionLabel(p.Question.Section))
	}

	return strings.TrimRight(b.String(), "\n")
}

func correctOption(q models.Question) string {
	opts := q.Options()
	if q.AnswerIdx < 0 || q.AnswerIdx >= len(opts) {
		return "?"
	}
	return fmt.Sprintf("%s) %s", optionLabels[q.AnswerIdx], escapeHTML(opts[q.AnswerIdx]))
}

// formatFeedback tells the user how the question was resolved. Ended mocks
// have no question to comment on.
func formatFeedback(step *service.QuizStep) string {
	n := step.Index + 1
	q := step.Question

	var b strings.Builder
	switch step.Outcome {
	case quiz.OutcomeCorrect:
		if step.Kind == quiz.KindMock {
			b.WriteString("✅ <b>Correct! +1 mark</b>")
		} else {
			fmt.Fprintf(&b, "✅ Q%d: Correct!", n)
		}
	case quiz.OutcomeWrong:
		if step.Kind == quiz.KindMock {
			fmt.Fprintf(&b, "❌ <b>Wrong! -%.2f mark</b>\n", quiz.NegativeMarking)
			if step.Choice >= 0 && step.Choice < len(optionLabels) {
				fmt.Fprintf(&b, "Your answer: <b>%s) %s</b>\n", optionLabels[step.Choice], escapeHTML(q.Options()[step.Choice]))
			}
		} else {
			fmt.Fprintf(&b, "❌ Q%d: Wrong\n", n)
		}
		fmt.Fprintf(&b, "✅ Correct: <b>%s</b>", correctOption(q))
	case quiz.OutcomeSkipped:
		fmt.Fprintf(&b, "⏭️ Skipped Q%d", n)
		if step.Kind == quiz.KindMock {
			fmt.Fprintf(&b, "\n✅ Correct: <b>%s</b>", correctOption(q))
		}
	case quiz.OutcomeTimedOut:
		fmt.Fprintf(&b, "⏰ <b>Q%d auto-skipped</b> (time limit reached)", n)
	default:
		return ""
	}

	if step.Kind == quiz.KindMock && q.Explanation != "" {
		fmt.Fprintf(&b, "\n💡 <i>%s</i>", escapeHTML(q.Explanation))
	}
	return b.String()
}

func speedLabel(blockLen int) string {
	switch {
	case blockLen <= 60:
		return "fast"
	case blockLen <= 90:
		return "steady"
	default:
		return "deliberate"
	}
}

func determination(skipRate float64) string {
	switch {
	case skipRate <= 0.1:
		return "High"
	case skipRate <= 0.3:
		return "Medium"
	default:
		return "Low"
	}
}

func strength(score float64) string {
	if score > 0.6 {
		return "strong"
	}
	return "⚠️ needs work"
}

func formatDiagnosticResult(r *quiz.Result, p *models.Profile) string {
	var b strings.Builder

	b.WriteString("🎯 <b>Diagnostic Complete!</b>\n\n")
	b.WriteString("📊 <b>Baseline Scores</b>\n")
	total := max(r.Total, 1)
	fmt.Fprintf(&b, "  📋 Total: <b>%d/%d</b> (%d%%)\n", r.Correct, r.Total, r.Correct*100/total)
	fmt.Fprintf(&b, "  🏛️ Paper I: <b>%d%%</b> (%s)\n", percent(p.BaselinePaper1), strength(p.BaselinePaper1))
	fmt.Fprintf(&b, "  🔬 Paper II: <b>%d%%</b> (%s)\n\n", percent(p.BaselinePaper2), strength(p.BaselinePaper2))

	sections := make([]string, 0, len(r.Sections))
	for s := range r.Sections {
		sections = append(sections, s)
	}
	slices.Sort(sections)

	weakest, weakestAcc := "", 2.0
	b.WriteString("📈 <b>Section Breakdown</b>\n")
	for _, s := range sections {
		score := r.Sections[s]
		acc := score.Accuracy()
		if acc < weakestAcc {
			weakest, weakestAcc = s, acc
		}
		fmt.Fprintf(&b, "  %s %s: <b>%d/%d</b> (%d%%)\n", accuracyFlag(acc), sectionLabel(s), score.Correct, score.Total, percent(acc))
	}

	b.WriteString("\n⚡ <b>Your Learning Profile</b>\n")
	fmt.Fprintf(&b, "  ⏱️ Speed: <b>%gs/question</b> → %s\n", p.AvgResponseTime, speedLabel(p.RecommendedBlockLen))
	fmt.Fprintf(&b, "  🧠 Style: <b>%s</b>\n", escapeHTML(p.LearningStyle))
	fmt.Fprintf(&b, "  💪 Determination: <b>%s</b> (%d/%d skipped)\n", determination(p.SkipRate), r.Skipped, r.Total)
	if weakest != "" {
		fmt.Fprintf(&b, "  🔴 Weakest area: <b>%s</b>\n", sectionLabel(weakest))
	}

	b.WriteString("\n📅 <b>Your Personalised Plan</b>\n")
	fmt.Fprintf(&b, "  ⏱️ Daily target: <b>%s/day</b>\n", hoursText(p.RecommendedDailyHours))
	fmt.Fprintf(&b, "  ⏲️ Block length: <b>%d minutes</b>\n\n", p.RecommendedBlockLen)
	b.WriteString("<i>Use /today to see your study plan and /profile for the full snapshot.</i>")

	return b.String()
}

func mockVerdict(pct float64) string {
	switch {
	case pct >= 70:
		return "🏆 Excellent!"
	case pct >= 50:
		return "👍 Good!"
	case pct >= 35:
		return "📚 Keep Practicing!"
	default:
		return "🔴 Needs urgent revision!"
	}
}

func formatMockResult(m *models.MockResult, r *quiz.Result) string {
	var b strings.Builder

	b.WriteString("🎯 <b>Mock Test Complete!</b>\n\n")
	b.WriteString("📊 <b>Results</b>\n")
	fmt.Fprintf(&b, "  Total Qs: %d\n", m.TotalQ)
	fmt.Fprintf(&b, "  Attempted: %d\n", m.Attempted)
	fmt.Fprintf(&b, "  ✅ Correct: %d\n", m.Correct)
	fmt.Fprintf(&b, "  ❌ Wrong: %d\n", m.Wrong)
	fmt.Fprintf(&b, "  ⏭️ Skipped: %d\n\n", m.TotalQ-m.Attempted)
	fmt.Fprintf(&b, "📈 Raw Score: <b>%g/%d</b>\n", m.ScoreRaw, m.TotalQ)
	fmt.Fprintf(&b, "📉 Net Score (−1/3): <b>%g/%d</b>\n", m.ScoreNet, m.TotalQ)
	fmt.Fprintf(&b, "🎯 Accuracy: <b>%.1f%%</b>\n", r.Accuracy()*100)
	fmt.Fprintf(&b, "⏱️ Time: %dm %ds\n\n", m.TimeTaken/60, m.TimeTaken%60)
	b.WriteString(mockVerdict(m.Percent()))

	return b.String()
}

func formatBriefing(user *models.User, b *service.Briefing) string {
	return fmt.Sprintf("🌅 <b>Good Morning, %s!</b> 📖\n🔥 Streak: <b>%d days</b>\n\nToday's personalised target: <b>%s</b>\n\n%s",
		escapeHTML(user.FirstName), b.Streak, hoursText(b.Plan.Goal), formatPlan(b.Plan, b.Countdown))
}

var nagTemplates = []string{
	"😤 %s! Only %s studied by 2 PM?! Move it!",
	"🔴 %s, your competition has studied for hours already. You? %s!",
	"⚡ %s, selection rewards sweat, not sleep. %s so far, back to work!",
}

func formatNag(user *models.User, day *service.DayReport, variant int) string {
	tpl := nagTemplates[((variant%len(nagTemplates))+len(nagTemplates))%len(nagTemplates)]
	return fmt.Sprintf(tpl, escapeHTML(user.FirstName), hoursText(day.Stats.TotalHours))
}

func formatNightSummary(user *models.User, s *service.NightSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🌙 <b>Good Night, %s!</b>\n\n", escapeHTML(user.FirstName))
	b.WriteString("📊 <b>Today's Summary:</b>\n")
	fmt.Fprintf(&b, "  ⏱️ Hours: <b>%s / %s</b>\n", hoursText(s.Day.Stats.TotalHours), hoursText(s.Day.Goal))
	fmt.Fprintf(&b, "  %s\n", progressBar(s.Day.Stats.TotalHours, s.Day.Goal))
	fmt.Fprintf(&b, "  ✅ Questions: <b>%d</b> (Accuracy: %.1f%%)\n", s.Day.Stats.TotalQuestions, s.Day.Stats.Accuracy())
	fmt.Fprintf(&b, "  📋 Blocks: <b>%d/%d done</b>\n", s.Day.Stats.PlanDone, s.Day.Stats.PlanTotal)
	fmt.Fprintf(&b, "  🔥 Streak: <b>%d days</b>\n", s.Day.Streak)

	if s.Adjustment.Changed && s.Adjustment.Reason != "" {
		fmt.Fprintf(&b, "\n🤖 <b>Adjustment:</b> %s\n", escapeHTML(s.Adjustment.Reason))
	} else {
		fmt.Fprintf(&b, "\n🤖 Target stays at <b>%s</b> tomorrow.\n", hoursText(s.Adjustment.Hours))
	}

	if s.Quiz != nil {
		b.WriteString("\n🧪 <b>Calibration quiz</b> below. It keeps tomorrow's plan honest.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAdminDigest(d *service.AdminDigest) string {
	var b strings.Builder

	b.WriteString("👑 <b>Admin Daily Dashboard</b>\n")
	fmt.Fprintf(&b, "📅 %s\n\n", displayDate(d.Date))

	b.WriteString("🏆 <b>Top Performers (Most Hours)</b>\n")
	if len(d.Top) == 0 {
		b.WriteString("  none\n")
	}
	for i, e := range d.Top {
		fmt.Fprintf(&b, "  %d. %s: <b>%s</b> (%.0f%% acc)\n", i+1, escapeHTML(e.FirstName), hoursText(e.TotalHours), e.Accuracy())
	}

	b.WriteString("\n✅ <b>On Track (High Adherence)</b>\n")
	if len(d.OnTrack) == 0 {
		b.WriteString("  none\n")
	}
	for i, e := range d.OnTrack {
		fmt.Fprintf(&b, "  %d. %s: <b>%d blocks</b> done\n", i+1, escapeHTML(e.FirstName), e.DoneBlocks)
	}

	b.WriteString("\n🛑 <b>Attention Needed (Low Study)</b>\n")
	if len(d.Low) == 0 {
		b.WriteString("  none\n")
	}
	for i, e := range d.Low {
		fmt.Fprintf(&b, "  %d. %s: <b>%s today</b>\n", i+1, escapeHTML(e.FirstName), hoursText(e.TotalHours))
	}

	return strings.TrimRight(b.String(), "\n")
}

const helpText = `📖 <b>Study Coach — Quick Manual</b>

🚀 <b>Daily routine</b>
<b>1. Morning (7 AM)</b> the plan arrives automatically, or tap 📅 Today's Plan.
<b>2. Start a block</b> with ⏭️ Next Block: topic, book and free PDF link.
<b>3. After studying</b> tap ✅ Log Done, pick the minutes, then your score.
<b>4. Mock tests</b> via 🎯 Mock Test. Marking: +1 correct, −1/3 wrong.
<b>5. Night (10 PM)</b> summary plus a 5-question calibration quiz; tomorrow's hours adapt.

⌨️ <b>Commands</b>
/start — first run or home menu
/today — today's study plan
/done 90 8/10 — log 90 min with a score of 8 out of 10
/mock — start a mock test
/stats — today's numbers
/weak — weak topics
/profile — capability snapshot
/history — last mock results
/syllabus — topic catalog
/help — this manual

🔔 <b>Notifications</b>
🌅 7:00 briefing · 😤 14:00 nag under 2h · 🌙 22:00 summary`
