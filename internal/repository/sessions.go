package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

// CreateStudySession appends a log entry and returns its id.
func (r DB) CreateStudySession(ctx context.Context, s *models.StudySession) (int64, error) {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := r.psql.Insert("study_sessions").
		Columns("user_id", "topic_id", "session_date", "hours_studied", "questions_done",
			"correct_answers", "notes", "created_at").
		Values(s.UserID, s.TopicID, s.SessionDate, s.HoursStudied, s.QuestionsDone,
			s.CorrectAnswers, s.Notes, createdAt).
		Suffix("RETURNING session_id")

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query (user_id: %d): %w", s.UserID, err)
	}

	var id int64
	if err = r.QueryRowxContext(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create study session (user_id: %d, date: %s): %w", s.UserID, s.SessionDate, err)
	}
	return id, nil
}

// GetDayStats sums the day's sessions and counts its plan blocks.
func (r DB) GetDayStats(ctx context.Context, userID int64, date string) (*models.DayStats, error) {
	var stats models.DayStats

	totals := r.rebind(`
		SELECT COALESCE(SUM(hours_studied), 0) AS total_hours,
		       COALESCE(SUM(questions_done), 0) AS total_questions,
		       COALESCE(SUM(correct_answers), 0) AS total_correct
		FROM study_sessions
		WHERE user_id = ? AND session_date = ?`)
	if err := r.QueryRowxContext(ctx, totals, userID, date).
		Scan(&stats.TotalHours, &stats.TotalQuestions, &stats.TotalCorrect); err != nil {
		return nil, fmt.Errorf("get session totals (user_id: %d, date: %s): %w", userID, date, err)
	}

	plan := r.rebind(`
		SELECT COUNT(*) AS plan_total,
		       COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0) AS plan_done
		FROM daily_plan
		WHERE user_id = ? AND plan_date = ?`)
	if err := r.QueryRowxContext(ctx, plan, userID, date).Scan(&stats.PlanTotal, &stats.PlanDone); err != nil {
		return nil, fmt.Errorf("get plan totals (user_id: %d, date: %s): %w", userID, date, err)
	}

	return &stats, nil
}

// GetWeeklyTotals returns per-day sums for the most recent days with activity, newest first.
func (r DB) GetWeeklyTotals(ctx context.Context, userID int64, days int) ([]models.DailyTotals, error) {
	query := r.psql.Select(
		"session_date",
		"COALESCE(SUM(hours_studied), 0) AS hours",
		"COALESCE(SUM(questions_done), 0) AS questions",
		"COALESCE(SUM(correct_answers), 0) AS correct",
	).
		From("study_sessions").
		Where("user_id = ?", userID).
		GroupBy("session_date").
		OrderBy("session_date DESC").
		Limit(uint64(days))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var totals []models.DailyTotals
	if err = r.SelectContext(ctx, &totals, sql, args...); err != nil {
		return nil, fmt.Errorf("get weekly totals (user_id: %d): %w", userID, err)
	}
	return totals, nil
}

// GetTopicProgress aggregates logged sessions per topic. Topics never studied are omitted.
func (r DB) GetTopicProgress(ctx context.Context, userID int64) ([]models.TopicProgress, error) {
	query := r.psql.Select(
		"t.topic_id", "t.name", "t.section", "t.target_hours", "t.free_pdf_link", "t.recommended_books",
		"COALESCE(SUM(s.hours_studied), 0) AS studied",
		"COALESCE(SUM(s.questions_done), 0) AS questions_done",
		"COALESCE(SUM(s.correct_answers), 0) AS correct",
	).
		From("study_sessions s").
		Join("topics t ON t.topic_id = s.topic_id").
		Where("s.user_id = ?", userID).
		GroupBy("t.topic_id", "t.name", "t.section", "t.target_hours", "t.free_pdf_link", "t.recommended_books").
		OrderBy("t.topic_id")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var progress []models.TopicProgress
	if err = r.SelectContext(ctx, &progress, sql, args...); err != nil {
		return nil, fmt.Errorf("get topic progress (user_id: %d): %w", userID, err)
	}
	return progress, nil
}
