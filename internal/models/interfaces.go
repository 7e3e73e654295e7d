package models

import "context"

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, telegramID int64) (*User, error)
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	MarkOnboarded(ctx context.Context, telegramID int64) error
	UpdateDailyGoal(ctx context.Context, telegramID int64, hours float64) error
	GetAllUsers(ctx context.Context) ([]*User, error)
	RunInTx(ctx context.Context, fn func(Repository) error) error

	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
	UpdateRecommendedHours(ctx context.Context, userID int64, hours float64, calibratedOn string) error

	GetTopics(ctx context.Context, paper int) ([]Topic, error)
	GetTopic(ctx context.Context, topicID int64) (*Topic, error)
	CountTopics(ctx context.Context) (int, error)
	InsertTopics(ctx context.Context, topics []Topic) error

	GetDiagnosticQuestions(ctx context.Context, strata []Stratum, total int) ([]Question, error)
	GetQuestions(ctx context.Context, filter QuestionFilter) ([]Question, error)
	CountQuestions(ctx context.Context) (int, error)
	InsertQuestions(ctx context.Context, questions []Question) error

	ReplaceDailyPlan(ctx context.Context, userID int64, planDate string, blocks []DailyPlanBlock) error
	GetDailyPlan(ctx context.Context, userID int64, planDate string) ([]DailyPlanBlock, error)
	SetBlockStatus(ctx context.Context, userID int64, planDate string, blockIndex int, status BlockStatus) (bool, error)

	CreateStudySession(ctx context.Context, session *StudySession) (int64, error)
	GetDayStats(ctx context.Context, userID int64, date string) (*DayStats, error)
	GetWeeklyTotals(ctx context.Context, userID int64, days int) ([]DailyTotals, error)
	GetTopicProgress(ctx context.Context, userID int64) ([]TopicProgress, error)

	CreateMockResult(ctx context.Context, result *MockResult) (int64, error)
	GetMockHistory(ctx context.Context, userID int64, limit int) ([]MockResult, error)

	UpsertStreakDay(ctx context.Context, day *StreakDay) error
	CountStreak(ctx context.Context, userID int64, since string) (int, error)

	UpsertCalibration(ctx context.Context, record *CalibrationRecord) error
	GetRecentCalibrations(ctx context.Context, userID int64, limit int) ([]CalibrationRecord, error)

	GetDailyLeaderboard(ctx context.Context, date string) ([]LeaderboardEntry, error)
}
