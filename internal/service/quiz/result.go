package quiz

import (
	"math"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
)

// NegativeMarking is the penalty per wrong answer.
const NegativeMarking = 1.0 / 3.0

type Kind int

const (
	KindDiagnostic Kind = iota
	KindMock
)

func (k Kind) String() string {
	if k == KindDiagnostic {
		return "diagnostic"
	}
	return "mock"
}

type Outcome int

const (
	OutcomeCorrect Outcome = iota
	OutcomeWrong
	OutcomeSkipped
	OutcomeTimedOut
	OutcomeEnded
)

// Result is the aggregate of a finished session.
type Result struct {
	SessionID     string
	Kind          Kind
	Mode          string
	Paper         int
	Total         int
	Correct       int
	Wrong         int
	Skipped       int
	Sections      map[string]adaptive.SectionScore
	ResponseTimes []float64
	Elapsed       time.Duration
}

func (r Result) Attempted() int {
	return r.Correct + r.Wrong
}

// NetScore is correct minus a third per wrong answer, rounded to two places.
func (r Result) NetScore() float64 {
	net := float64(r.Correct) - float64(r.Wrong)*NegativeMarking
	return math.Round(net*100) / 100
}

// Accuracy is correct over attempted, in [0, 1].
func (r Result) Accuracy() float64 {
	if r.Attempted() == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Attempted())
}

// Percent is the net score over all questions, in percent.
func (r Result) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return r.NetScore() / float64(r.Total) * 100
}

func (r Result) Baseline() adaptive.Baseline {
	return adaptive.Baseline{
		Sections:      r.Sections,
		ResponseTimes: r.ResponseTimes,
		Skipped:       r.Skipped,
		Total:         r.Total,
	}
}
