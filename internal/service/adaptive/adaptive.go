package adaptive

import (
	"fmt"
	"math"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

const (
	BaselineHours = 10.5
	MinDailyHours = 8.0
	MaxDailyHours = 12.0

	DefaultAccuracy     = 0.5
	DefaultResponseTime = 45.0

	lowCompletion     = 0.70
	improvementMargin = 0.15
	burnoutCompletion = 0.5
	burnoutWindow     = 3
	burnoutFactor     = 0.7
)

var (
	Paper1Sections = []string{"History", "Geography", "Polity"}
	Paper2Sections = []string{"SrSec", "Grad", "Pedagogy", "ICT"}
)

// Priority scores how urgently a topic should be studied; higher means sooner.
//
//	(1 - acc) * pyq * max(0.1, 1 - completion) * (1 + 0.1*max(0, 5-streak)) * marks
//
// acc is the section accuracy clamped to [0.01, 1], 0.5 when unobserved.
// completion is the same per-section accuracy value, as the profile tracks no
// separate completion fraction. Zero weights count as 1.
func Priority(topic models.Topic, accuracy models.SectionAccuracy, streak int) float64 {
	acc, ok := accuracy[topic.Section]
	if !ok {
		acc = DefaultAccuracy
	}
	completion := acc
	acc = clamp(acc, 0.01, 1.0)

	pyq := topic.PYQWeight
	if pyq == 0 {
		pyq = 1
	}
	marks := float64(topic.MarksWeight)
	if marks == 0 {
		marks = 1
	}

	pressure := math.Max(0.1, 1.0-completion)
	streakMult := 1.0 + 0.1*float64(max(0, 5-streak))

	return (1.0 - acc) * pyq * pressure * streakMult * marks
}

// Fatigue is high when many hours produced low accuracy.
func Fatigue(actualHours, accuracy float64) float64 {
	return clamp(actualHours/BaselineHours-accuracy, 0, 1)
}

type Adjustment struct {
	Hours   float64
	Changed bool
	Burnout bool
	Reason  string
}

// AdjustHours applies the nightly rule to the current recommendation. recent
// holds calibration records most recent first, today's record included.
//
// Completion under 70% drops an hour; otherwise an accuracy jump of more than
// 15 points over the previous record adds half an hour. Three straight days
// under 50% completion override both with a 30% cut. The result never leaves
// [MinDailyHours, MaxDailyHours].
func AdjustHours(current float64, recent []models.CalibrationRecord) Adjustment {
	adj := Adjustment{Hours: current}
	if len(recent) == 0 {
		adj.Hours = clamp(current, MinDailyHours, MaxDailyHours)
		adj.Changed = adj.Hours != current
		return adj
	}

	today := recent[0]
	switch {
	case today.CompletionRate < lowCompletion:
		adj.Hours = math.Max(MinDailyHours, current-1.0)
		adj.Reason = fmt.Sprintf("⬇️ Target reduced to %.1fh (completion < 70%%)", adj.Hours)
	case len(recent) >= 2 && today.Accuracy-recent[1].Accuracy > improvementMargin:
		adj.Hours = math.Min(MaxDailyHours, current+0.5)
		adj.Reason = fmt.Sprintf("⬆️ Target raised to %.1fh (+15%% improvement!)", adj.Hours)
	}

	if burnedOut(recent) {
		adj.Hours = math.Max(MinDailyHours, current*burnoutFactor)
		adj.Burnout = true
		adj.Reason = fmt.Sprintf("🔥 Burnout detected! Reduced to %.1fh tomorrow.", adj.Hours)
	}

	adj.Hours = clamp(adj.Hours, MinDailyHours, MaxDailyHours)
	adj.Changed = adj.Hours != current
	return adj
}

func burnedOut(recent []models.CalibrationRecord) bool {
	if len(recent) < burnoutWindow {
		return false
	}
	for _, r := range recent[:burnoutWindow] {
		if r.CompletionRate >= burnoutCompletion {
			return false
		}
	}
	return true
}

type SectionScore struct {
	Correct int
	Total   int
}

func (s SectionScore) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Baseline is what the onboarding diagnostic measured.
type Baseline struct {
	Sections      map[string]SectionScore
	ResponseTimes []float64
	Skipped       int
	Total         int
}

// InitialProfile derives the adaptive profile from a finished diagnostic.
func InitialProfile(userID int64, b Baseline) *models.Profile {
	accuracy := models.SectionAccuracy{}
	for section, score := range b.Sections {
		accuracy[section] = round(score.Accuracy(), 2)
	}

	p1 := paperScore(b.Sections, Paper1Sections)
	p2 := paperScore(b.Sections, Paper2Sections)

	avg := DefaultResponseTime
	if len(b.ResponseTimes) > 0 {
		var sum float64
		for _, rt := range b.ResponseTimes {
			sum += rt
		}
		avg = round(sum/float64(len(b.ResponseTimes)), 1)
	}

	var skipRate float64
	if b.Total > 0 {
		skipRate = round(float64(b.Skipped)/float64(b.Total), 2)
	}

	errType := models.ErrorCareless
	if p2 < 0.5 {
		errType = models.ErrorConceptual
	}

	return &models.Profile{
		UserID:                userID,
		BaselinePaper1:        p1,
		BaselinePaper2:        p2,
		TopicAccuracy:         accuracy,
		AvgResponseTime:       avg,
		SkipRate:              skipRate,
		ErrorType:             errType,
		RecommendedDailyHours: InitialHours(p1, p2),
		RecommendedBlockLen:   BlockLength(avg),
		LearningStyle:         LearningStyle(errType),
		DiagnosticDone:        true,
	}
}

// InitialHours is intensive for a weak paper and standard when both are strong.
func InitialHours(p1, p2 float64) float64 {
	switch {
	case p1 < 0.4 || p2 < 0.4:
		return 11.0
	case p1 > 0.7 && p2 > 0.7:
		return 10.0
	default:
		return BaselineHours
	}
}

// BlockLength maps average seconds per question to minutes per block.
func BlockLength(avgResponse float64) int {
	switch {
	case avgResponse < 30:
		return 60
	case avgResponse < 60:
		return 90
	default:
		return 120
	}
}

func LearningStyle(e models.ErrorType) string {
	if e == models.ErrorConceptual {
		return "Theory→MCQ"
	}
	return "MCQ→Theory"
}

func paperScore(sections map[string]SectionScore, names []string) float64 {
	var correct, total int
	for _, name := range names {
		s, ok := sections[name]
		if !ok {
			continue
		}
		correct += s.Correct
		total += s.Total
	}
	if total == 0 {
		return 0
	}
	return round(float64(correct)/float64(total), 2)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
