package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

// UpsertStreakDay keeps one row per (user, date); later writes win.
func (r DB) UpsertStreakDay(ctx context.Context, day *models.StreakDay) error {
	query := r.psql.Insert("streaks").
		Columns("user_id", "streak_date", "hours_done", "is_complete").
		Values(day.UserID, day.StreakDate, day.HoursDone, day.IsComplete).
		Suffix(`ON CONFLICT (user_id, streak_date) DO UPDATE SET
			hours_done = excluded.hours_done,
			is_complete = excluded.is_complete`)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (user_id: %d, date: %s): %w", day.UserID, day.StreakDate, err)
	}

	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert streak day (user_id: %d, date: %s): %w", day.UserID, day.StreakDate, err)
	}
	return nil
}

// CountStreak counts complete days on or after since.
func (r DB) CountStreak(ctx context.Context, userID int64, since string) (int, error) {
	query := r.psql.Select("COUNT(*)").
		From("streaks").
		Where(squirrel.Eq{"user_id": userID, "is_complete": true}).
		Where("streak_date >= ?", since)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var count int
	if err = r.QueryRowxContext(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count streak (user_id: %d, since: %s): %w", userID, since, err)
	}
	return count, nil
}

// UpsertCalibration keeps one record per (user, date).
func (r DB) UpsertCalibration(ctx context.Context, rec *models.CalibrationRecord) error {
	query := r.psql.Insert("daily_calibration").
		Columns("user_id", "cal_date", "accuracy", "completion_rate", "actual_hours",
			"fatigue_score", "questions_done", "correct").
		Values(rec.UserID, rec.CalDate, rec.Accuracy, rec.CompletionRate, rec.ActualHours,
			rec.FatigueScore, rec.QuestionsDone, rec.Correct).
		Suffix(`ON CONFLICT (user_id, cal_date) DO UPDATE SET
			accuracy = excluded.accuracy,
			completion_rate = excluded.completion_rate,
			actual_hours = excluded.actual_hours,
			fatigue_score = excluded.fatigue_score,
			questions_done = excluded.questions_done,
			correct = excluded.correct`)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (user_id: %d, date: %s): %w", rec.UserID, rec.CalDate, err)
	}

	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert calibration (user_id: %d, date: %s): %w", rec.UserID, rec.CalDate, err)
	}
	return nil
}

// GetRecentCalibrations returns up to limit records, most recent first.
func (r DB) GetRecentCalibrations(ctx context.Context, userID int64, limit int) ([]models.CalibrationRecord, error) {
	query := r.psql.Select("user_id", "cal_date", "accuracy", "completion_rate", "actual_hours",
		"fatigue_score", "questions_done", "correct").
		From("daily_calibration").
		Where("user_id = ?", userID).
		OrderBy("cal_date DESC").
		Limit(uint64(limit))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var records []models.CalibrationRecord
	if err = r.SelectContext(ctx, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("get recent calibrations (user_id: %d): %w", userID, err)
	}
	return records, nil
}

// GetDailyLeaderboard summarises every user's activity on date, busiest first.
func (r DB) GetDailyLeaderboard(ctx context.Context, date string) ([]models.LeaderboardEntry, error) {
	query := r.rebind(`
		SELECT u.telegram_id, u.first_name,
		       COALESCE(s.total_hours, 0) AS total_hours,
		       COALESCE(s.questions, 0) AS questions,
		       COALESCE(s.correct, 0) AS correct,
		       COALESCE(p.done_blocks, 0) AS done_blocks
		FROM users u
		LEFT JOIN (
			SELECT user_id, SUM(hours_studied) AS total_hours,
			       SUM(questions_done) AS questions, SUM(correct_answers) AS correct
			FROM study_sessions WHERE session_date = ? GROUP BY user_id
		) s ON s.user_id = u.telegram_id
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS done_blocks
			FROM daily_plan WHERE plan_date = ? AND status = 'done' GROUP BY user_id
		) p ON p.user_id = u.telegram_id
		ORDER BY total_hours DESC, u.telegram_id`)

	var entries []models.LeaderboardEntry
	if err := r.SelectContext(ctx, &entries, query, date, date); err != nil {
		return nil, fmt.Errorf("get daily leaderboard (date: %s): %w", date, err)
	}
	return entries, nil
}
