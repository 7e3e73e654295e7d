package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

const userColumns = "telegram_id, username, first_name, daily_goal, onboarded, created_at"

// CreateUser registers a user on first contact. Repeated calls keep the existing row.
func (r DB) CreateUser(ctx context.Context, user *models.User) error {
	query := r.psql.Insert("users").
		Columns("telegram_id", "username", "first_name", "daily_goal", "onboarded", "created_at").
		Values(user.TelegramID, user.Username, user.FirstName, user.DailyGoal, user.Onboarded, user.CreatedAt).
		Suffix("ON CONFLICT (telegram_id) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (telegram_id: %d): %w", user.TelegramID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("create user (telegram_id: %d, username: %s): %w", user.TelegramID, user.Username, err)
	}
	return nil
}

func (r DB) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	query := r.psql.Select(userColumns).From("users").Where("telegram_id = ?", telegramID)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (telegram_id: %d): %w", telegramID, err)
	}

	var user models.User
	if err = r.GetContext(ctx, &user, sql, args...); err != nil {
		return nil, fmt.Errorf("get user (telegram_id: %d): %w", telegramID, err)
	}

	return &user, nil
}

func (r DB) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	query := r.psql.Select("COUNT(*)").From("users").Where("telegram_id = ?", telegramID)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build SQL query (telegram_id: %d): %w", telegramID, err)
	}

	var count int
	err = r.QueryRowxContext(ctx, sql, args...).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user exists (telegram_id: %d): %w", telegramID, err)
	}
	return count > 0, nil
}

func (r DB) MarkOnboarded(ctx context.Context, telegramID int64) error {
	query := r.psql.Update("users").
		Set("onboarded", true).
		Where("telegram_id = ?", telegramID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (telegram_id: %d): %w", telegramID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark user onboarded (telegram_id: %d): %w", telegramID, err)
	}
	return nil
}

func (r DB) UpdateDailyGoal(ctx context.Context, telegramID int64, hours float64) error {
	query := r.psql.Update("users").
		Set("daily_goal", hours).
		Where("telegram_id = ?", telegramID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (telegram_id: %d, hours: %.1f): %w", telegramID, hours, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update daily goal (telegram_id: %d, hours: %.1f): %w", telegramID, hours, err)
	}
	return nil
}

func (r DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := r.psql.Select(userColumns).From("users").OrderBy("telegram_id")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query: %w", err)
	}

	var users []*models.User
	if err = r.SelectContext(ctx, &users, sql, args...); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	return users, nil
}
