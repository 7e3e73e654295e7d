package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

func (r DB) CreateMockResult(ctx context.Context, m *models.MockResult) (int64, error) {
	query := r.psql.Insert("mocks").
		Columns("user_id", "mock_date", "paper", "total_q", "attempted", "correct", "wrong",
			"score_raw", "score_net", "time_taken").
		Values(m.UserID, m.MockDate, m.Paper, m.TotalQ, m.Attempted, m.Correct, m.Wrong,
			m.ScoreRaw, m.ScoreNet, m.TimeTaken).
		Suffix("RETURNING mock_id")

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build SQL query (user_id: %d): %w", m.UserID, err)
	}

	var id int64
	if err = r.QueryRowxContext(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create mock result (user_id: %d, paper: %d): %w", m.UserID, m.Paper, err)
	}
	return id, nil
}

// GetMockHistory returns the latest mocks, newest first.
func (r DB) GetMockHistory(ctx context.Context, userID int64, limit int) ([]models.MockResult, error) {
	query := r.psql.Select("mock_id", "user_id", "mock_date", "paper", "total_q", "attempted",
		"correct", "wrong", "score_raw", "score_net", "time_taken").
		From("mocks").
		Where("user_id = ?", userID).
		OrderBy("mock_date DESC", "mock_id DESC").
		Limit(uint64(limit))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d): %w", userID, err)
	}

	var history []models.MockResult
	if err = r.SelectContext(ctx, &history, sql, args...); err != nil {
		return nil, fmt.Errorf("get mock history (user_id: %d): %w", userID, err)
	}
	return history, nil
}
