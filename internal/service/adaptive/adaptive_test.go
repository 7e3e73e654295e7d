package adaptive

import (
	"testing"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority(t *testing.T) {
	topic := models.Topic{Section: "SrSec", PYQWeight: 0.8, MarksWeight: 10}

	// acc 0.5, completion 0.5, streak 0 -> 0.5 * 0.8 * 0.5 * 1.5 * 10
	assert.InDelta(t, 3.0, Priority(topic, nil, 0), 1e-9)

	// streak past five removes the urgency multiplier
	assert.InDelta(t, 2.0, Priority(topic, nil, 7), 1e-9)

	// perfect accuracy still leaves a non-negative score
	assert.Equal(t, 0.0, Priority(topic, models.SectionAccuracy{"SrSec": 1}, 0))

	// zero weights count as one
	bare := models.Topic{Section: "ICT"}
	assert.InDelta(t, 0.5*0.5*1.5, Priority(bare, nil, 0), 1e-9)
}

func TestPriorityDecreasesWithAccuracy(t *testing.T) {
	topic := models.Topic{Section: "Grad", PYQWeight: 0.7, MarksWeight: 9}

	prev := Priority(topic, models.SectionAccuracy{"Grad": 0}, 2)
	for _, acc := range []float64{0.1, 0.25, 0.4, 0.5, 0.75, 0.9, 0.99} {
		cur := Priority(topic, models.SectionAccuracy{"Grad": acc}, 2)
		assert.GreaterOrEqual(t, cur, 0.0)
		assert.Less(t, cur, prev, "accuracy %.2f", acc)
		prev = cur
	}
}

func TestFatigue(t *testing.T) {
	assert.Equal(t, 0.0, Fatigue(2, 0.9))
	assert.InDelta(t, 0.6, Fatigue(10.5, 0.4), 1e-9)
	assert.Equal(t, 1.0, Fatigue(30, 0))
}

func TestAdjustHours(t *testing.T) {
	rec := func(acc, completion float64) models.CalibrationRecord {
		return models.CalibrationRecord{Accuracy: acc, CompletionRate: completion}
	}

	tests := []struct {
		name    string
		current float64
		recent  []models.CalibrationRecord
		want    float64
		burnout bool
	}{
		{"no records", 10.5, nil, 10.5, false},
		{"low completion drops an hour", 10.5, []models.CalibrationRecord{rec(0.6, 0.6)}, 9.5, false},
		{"low completion floors at eight", 8.5, []models.CalibrationRecord{rec(0.6, 0.2)}, 8.0, false},
		{"improvement adds half an hour", 10.5, []models.CalibrationRecord{rec(0.8, 0.9), rec(0.6, 0.9)}, 11.0, false},
		{"improvement caps at twelve", 11.8, []models.CalibrationRecord{rec(0.9, 0.9), rec(0.5, 0.9)}, 12.0, false},
		{"small improvement keeps hours", 10.5, []models.CalibrationRecord{rec(0.7, 0.9), rec(0.6, 0.9)}, 10.5, false},
		{"single good record keeps hours", 10.5, []models.CalibrationRecord{rec(0.9, 0.9)}, 10.5, false},
		{"burnout overrides", 12, []models.CalibrationRecord{rec(0.9, 0.4), rec(0.1, 0.3), rec(0.5, 0.2)}, 8.4, true},
		{"burnout floors at eight", 10, []models.CalibrationRecord{rec(0.5, 0.1), rec(0.5, 0.1), rec(0.5, 0.1)}, 8.0, true},
		{"out of range input is clamped", 13, []models.CalibrationRecord{rec(0.5, 0.9)}, 12.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := AdjustHours(tt.current, tt.recent)
			assert.InDelta(t, tt.want, adj.Hours, 1e-9)
			assert.Equal(t, tt.burnout, adj.Burnout)
			assert.Equal(t, tt.want != tt.current, adj.Changed)
			assert.GreaterOrEqual(t, adj.Hours, MinDailyHours)
			assert.LessOrEqual(t, adj.Hours, MaxDailyHours)
		})
	}
}

func TestInitialProfile(t *testing.T) {
	b := Baseline{
		Sections: map[string]SectionScore{
			"History":       {Correct: 1, Total: 3},
			"Geography":     {Correct: 2, Total: 3},
			"Polity":        {Correct: 2, Total: 2},
			"SrSec":         {Correct: 2, Total: 5},
			"Grad":          {Correct: 1, Total: 5},
			"Pedagogy":      {Correct: 3, Total: 3},
			"MentalAbility": {Correct: 5, Total: 5},
		},
		ResponseTimes: []float64{20, 30, 40},
		Skipped:       3,
		Total:         30,
	}

	p := InitialProfile(77, b)
	require.NotNil(t, p)

	assert.Equal(t, int64(77), p.UserID)
	assert.Equal(t, 0.63, p.BaselinePaper1)
	assert.Equal(t, 0.46, p.BaselinePaper2)
	assert.Equal(t, 0.33, p.TopicAccuracy["History"])
	assert.Equal(t, 1.0, p.TopicAccuracy["MentalAbility"])
	assert.Equal(t, models.ErrorConceptual, p.ErrorType)
	assert.Equal(t, "Theory→MCQ", p.LearningStyle)
	assert.Equal(t, 30.0, p.AvgResponseTime)
	assert.Equal(t, 90, p.RecommendedBlockLen)
	assert.Equal(t, 10.5, p.RecommendedDailyHours)
	assert.Equal(t, 0.1, p.SkipRate)
	assert.True(t, p.DiagnosticDone)
}

func TestInitialProfileWithoutAnswers(t *testing.T) {
	p := InitialProfile(1, Baseline{Total: 30, Skipped: 30})

	assert.Equal(t, DefaultResponseTime, p.AvgResponseTime)
	assert.Equal(t, 11.0, p.RecommendedDailyHours)
	assert.Equal(t, 1.0, p.SkipRate)
}

func TestInitialRules(t *testing.T) {
	assert.Equal(t, 11.0, InitialHours(0.8, 0.3))
	assert.Equal(t, 10.0, InitialHours(0.8, 0.75))
	assert.Equal(t, 10.5, InitialHours(0.7, 0.9))

	assert.Equal(t, 60, BlockLength(29.9))
	assert.Equal(t, 90, BlockLength(30))
	assert.Equal(t, 120, BlockLength(60))

	assert.Equal(t, "MCQ→Theory", LearningStyle(models.ErrorCareless))
}
