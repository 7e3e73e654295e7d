package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type BlockStatus string

const (
	BlockPending BlockStatus = "pending"
	BlockDone    BlockStatus = "done"
	BlockSkipped BlockStatus = "skipped"
)

type ErrorType string

const (
	ErrorConceptual ErrorType = "conceptual"
	ErrorCareless   ErrorType = "careless"
)

type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	DailyGoal  float64   `db:"daily_goal"`
	Onboarded  bool      `db:"onboarded"`
	CreatedAt  time.Time `db:"created_at"`
}

// SectionAccuracy maps a subject section to observed accuracy in [0, 1].
// Stored as a JSON document in user_profiles.topic_accuracy.
type SectionAccuracy map[string]float64

func (a SectionAccuracy) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]float64(a))
	if err != nil {
		return nil, fmt.Errorf("marshal section accuracy: %w", err)
	}
	return string(b), nil
}

func (a *SectionAccuracy) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = SectionAccuracy{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan section accuracy: unsupported type %T", src)
	}

	m := map[string]float64{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("unmarshal section accuracy: %w", err)
		}
	}
	*a = m
	return nil
}

type Profile struct {
	UserID                int64           `db:"user_id"`
	BaselinePaper1        float64         `db:"baseline_paper1_score"`
	BaselinePaper2        float64         `db:"baseline_paper2_score"`
	TopicAccuracy         SectionAccuracy `db:"topic_accuracy"`
	AvgResponseTime       float64         `db:"avg_response_time"`
	SkipRate              float64         `db:"skip_rate"`
	ErrorType             ErrorType       `db:"error_type"`
	RecommendedDailyHours float64         `db:"recommended_daily_hours"`
	RecommendedBlockLen   int             `db:"recommended_block_len"`
	LearningStyle         string          `db:"learning_style"`
	DiagnosticDone        bool            `db:"diagnostic_done"`
	LastCalibrated        *string         `db:"last_calibrated"`
}

type Topic struct {
	ID               int64   `db:"topic_id" yaml:"id"`
	Name             string  `db:"name" yaml:"name"`
	Paper            int     `db:"paper" yaml:"paper"`
	Section          string  `db:"section" yaml:"section"`
	TargetHours      float64 `db:"target_hours" yaml:"target_hours"`
	MarksWeight      int     `db:"marks_weight" yaml:"marks_weight"`
	Priority         string  `db:"priority" yaml:"priority"`
	PYQWeight        float64 `db:"pyq_weight" yaml:"pyq_weight"`
	RecommendedBooks string  `db:"recommended_books" yaml:"recommended_books"`
	FreePDFLink      string  `db:"free_pdf_link" yaml:"free_pdf_link"`
}

type Question struct {
	ID           int64  `db:"q_id"`
	Paper        int    `db:"paper"`
	Section      string `db:"section"`
	TopicID      *int64 `db:"topic_id"`
	Text         string `db:"question"`
	OptA         string `db:"opt_a"`
	OptB         string `db:"opt_b"`
	OptC         string `db:"opt_c"`
	OptD         string `db:"opt_d"`
	AnswerIdx    int    `db:"answer_idx"`
	Level        string `db:"level"`
	Explanation  string `db:"explanation"`
	IsDiagnostic bool   `db:"is_diagnostic"`
}

// Options returns the answer choices in display order; empty slots are kept so indices match AnswerIdx.
func (q Question) Options() []string {
	return []string{q.OptA, q.OptB, q.OptC, q.OptD}
}

type DailyPlanBlock struct {
	ID         int64       `db:"plan_id"`
	UserID     int64       `db:"user_id"`
	PlanDate   string      `db:"plan_date"`
	BlockIndex int         `db:"block_index"`
	TopicID    *int64      `db:"topic_id"`
	Label      string      `db:"label"`
	Section    string      `db:"section"`
	Paper      int         `db:"paper"`
	Hours      float64     `db:"hours"`
	Emoji      string      `db:"emoji"`
	Hint       string      `db:"hint"`
	Status     BlockStatus `db:"status"`
	UpdatedAt  time.Time   `db:"updated_at"`

	TopicName        string  `db:"topic_name"`
	FreePDFLink      string  `db:"free_pdf_link"`
	RecommendedBooks string  `db:"recommended_books"`
	MarksWeight      int     `db:"marks_weight"`
	Priority         float64 `db:"-"`
}

func (b DailyPlanBlock) Minutes() int {
	return int(b.Hours*60 + 0.5)
}

type StudySession struct {
	ID             int64     `db:"session_id"`
	UserID         int64     `db:"user_id"`
	TopicID        *int64    `db:"topic_id"`
	SessionDate    string    `db:"session_date"`
	HoursStudied   float64   `db:"hours_studied"`
	QuestionsDone  int       `db:"questions_done"`
	CorrectAnswers int       `db:"correct_answers"`
	Notes          string    `db:"notes"`
	CreatedAt      time.Time `db:"created_at"`
}

type MockResult struct {
	ID        int64   `db:"mock_id"`
	UserID    int64   `db:"user_id"`
	MockDate  string  `db:"mock_date"`
	Paper     int     `db:"paper"`
	TotalQ    int     `db:"total_q"`
	Attempted int     `db:"attempted"`
	Correct   int     `db:"correct"`
	Wrong     int     `db:"wrong"`
	ScoreRaw  float64 `db:"score_raw"`
	ScoreNet  float64 `db:"score_net"`
	TimeTaken int     `db:"time_taken"`
}

// Percent is the net score over the question count, in percent.
func (m MockResult) Percent() float64 {
	if m.TotalQ == 0 {
		return 0
	}
	return m.ScoreNet / float64(m.TotalQ) * 100
}

type StreakDay struct {
	UserID     int64   `db:"user_id"`
	StreakDate string  `db:"streak_date"`
	HoursDone  float64 `db:"hours_done"`
	IsComplete bool    `db:"is_complete"`
}

type CalibrationRecord struct {
	UserID         int64   `db:"user_id"`
	CalDate        string  `db:"cal_date"`
	Accuracy       float64 `db:"accuracy"`
	CompletionRate float64 `db:"completion_rate"`
	ActualHours    float64 `db:"actual_hours"`
	FatigueScore   float64 `db:"fatigue_score"`
	QuestionsDone  int     `db:"questions_done"`
	Correct        int     `db:"correct"`
}

type DayStats struct {
	TotalHours     float64 `db:"total_hours"`
	TotalQuestions int     `db:"total_questions"`
	TotalCorrect   int     `db:"total_correct"`
	PlanTotal      int     `db:"plan_total"`
	PlanDone       int     `db:"plan_done"`
}

// Accuracy returns the share of correct answers in percent.
func (s DayStats) Accuracy() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalQuestions) * 100
}

func (s DayStats) Completion() float64 {
	if s.PlanTotal == 0 {
		return 0
	}
	return float64(s.PlanDone) / float64(s.PlanTotal)
}

func (s DayStats) Empty() bool {
	return s.TotalHours == 0 && s.TotalQuestions == 0
}

type DailyTotals struct {
	SessionDate string  `db:"session_date"`
	Hours       float64 `db:"hours"`
	Questions   int     `db:"questions"`
	Correct     int     `db:"correct"`
}

type TopicProgress struct {
	TopicID          int64   `db:"topic_id"`
	Name             string  `db:"name"`
	Section          string  `db:"section"`
	TargetHours      float64 `db:"target_hours"`
	FreePDFLink      string  `db:"free_pdf_link"`
	RecommendedBooks string  `db:"recommended_books"`
	Studied          float64 `db:"studied"`
	QuestionsDone    int     `db:"questions_done"`
	Correct          int     `db:"correct"`
}

func (p TopicProgress) Completion() float64 {
	if p.TargetHours <= 0 {
		return 0
	}
	return p.Studied / p.TargetHours
}

func (p TopicProgress) Accuracy() float64 {
	if p.QuestionsDone == 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.QuestionsDone)
}

type LeaderboardEntry struct {
	TelegramID int64   `db:"telegram_id"`
	FirstName  string  `db:"first_name"`
	TotalHours float64 `db:"total_hours"`
	Questions  int     `db:"questions"`
	Correct    int     `db:"correct"`
	DoneBlocks int     `db:"done_blocks"`
}

func (e LeaderboardEntry) Accuracy() float64 {
	if e.Questions == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Questions) * 100
}

// QuestionFilter narrows a random mock draw. Zero values mean "any".
type QuestionFilter struct {
	Paper   int
	Section string
	Limit   int
}

// Stratum is one section quota of the diagnostic draw.
type Stratum struct {
	Section string `yaml:"section"`
	Count   int    `yaml:"count"`
}
