package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

var profileColumns = []string{
	"user_id", "baseline_paper1_score", "baseline_paper2_score", "topic_accuracy",
	"avg_response_time", "skip_rate", "error_type", "recommended_daily_hours",
	"recommended_block_len", "learning_style", "diagnostic_done", "last_calibrated",
}

// GetProfile returns nil without an error when the user has no profile yet.
func (r DB) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	query := r.psql.Select(profileColumns...).From("user_profiles").Where("user_id = ?", userID)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var profile models.Profile
	err = r.GetContext(ctx, &profile, stmt, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile (user_id: %d): %w", userID, err)
	}

	return &profile, nil
}

// UpsertProfile overwrites every profile field.
func (r DB) UpsertProfile(ctx context.Context, p *models.Profile) error {
	query := r.psql.Insert("user_profiles").
		Columns(profileColumns...).
		Values(p.UserID, p.BaselinePaper1, p.BaselinePaper2, p.TopicAccuracy,
			p.AvgResponseTime, p.SkipRate, string(p.ErrorType), p.RecommendedDailyHours,
			p.RecommendedBlockLen, p.LearningStyle, p.DiagnosticDone, p.LastCalibrated).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			baseline_paper1_score = excluded.baseline_paper1_score,
			baseline_paper2_score = excluded.baseline_paper2_score,
			topic_accuracy = excluded.topic_accuracy,
			avg_response_time = excluded.avg_response_time,
			skip_rate = excluded.skip_rate,
			error_type = excluded.error_type,
			recommended_daily_hours = excluded.recommended_daily_hours,
			recommended_block_len = excluded.recommended_block_len,
			learning_style = excluded.learning_style,
			diagnostic_done = excluded.diagnostic_done,
			last_calibrated = excluded.last_calibrated`)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (user_id: %d): %w", p.UserID, err)
	}

	if _, err = r.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert profile (user_id: %d): %w", p.UserID, err)
	}
	return nil
}

// UpdateRecommendedHours stores the calibrated hours on the profile and mirrors
// them into the user's daily goal.
func (r *DB) UpdateRecommendedHours(ctx context.Context, userID int64, hours float64, calibratedOn string) error {
	return r.RunInTx(ctx, func(repo models.Repository) error {
		tx := repo.(*DB)

		query := tx.psql.Update("user_profiles").
			Set("recommended_daily_hours", hours).
			Set("last_calibrated", calibratedOn).
			Where("user_id = ?", userID)

		stmt, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
		}

		if _, err = tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("update recommended hours (user_id: %d, hours: %.1f): %w", userID, hours, err)
		}

		return tx.UpdateDailyGoal(ctx, userID, hours)
	})
}
