package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

// ReplaceDailyPlan drops the user's blocks for planDate and stores the new ones atomically.
func (r *DB) ReplaceDailyPlan(ctx context.Context, userID int64, planDate string, blocks []models.DailyPlanBlock) error {
	return r.RunInTx(ctx, func(repo models.Repository) error {
		tx := repo.(*DB)

		del := tx.psql.Delete("daily_plan").Where("user_id = ? AND plan_date = ?", userID, planDate)
		sql, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (user_id: %d, date: %s): %w", userID, planDate, err)
		}
		if _, err = tx.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete daily plan (user_id: %d, date: %s): %w", userID, planDate, err)
		}

		if len(blocks) == 0 {
			return nil
		}

		now := time.Now().UTC()
		ins := tx.psql.Insert("daily_plan").
			Columns("user_id", "plan_date", "block_index", "topic_id", "label", "section",
				"paper", "hours", "emoji", "hint", "status", "updated_at")
		for i, b := range blocks {
			status := b.Status
			if status == "" {
				status = models.BlockPending
			}
			ins = ins.Values(userID, planDate, i, b.TopicID, b.Label, b.Section,
				b.Paper, b.Hours, b.Emoji, b.Hint, string(status), now)
		}

		sql, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("build SQL query (user_id: %d, date: %s): %w", userID, planDate, err)
		}
		if _, err = tx.ExecContext(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert daily plan (user_id: %d, date: %s, blocks: %d): %w", userID, planDate, len(blocks), err)
		}
		return nil
	})
}

// GetDailyPlan returns the blocks in order, joined with their topic details.
func (r DB) GetDailyPlan(ctx context.Context, userID int64, planDate string) ([]models.DailyPlanBlock, error) {
	query := r.psql.Select(
		"p.plan_id", "p.user_id", "p.plan_date", "p.block_index", "p.topic_id", "p.label",
		"p.section", "p.paper", "p.hours", "p.emoji", "p.hint", "p.status", "p.updated_at",
		"COALESCE(t.name, '') AS topic_name",
		"COALESCE(t.free_pdf_link, '') AS free_pdf_link",
		"COALESCE(t.recommended_books, '') AS recommended_books",
		"COALESCE(t.marks_weight, 0) AS marks_weight",
	).
		From("daily_plan p").
		LeftJoin("topics t ON t.topic_id = p.topic_id").
		Where("p.user_id = ? AND p.plan_date = ?", userID, planDate).
		OrderBy("p.block_index")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (user_id: %d, date: %s): %w", userID, planDate, err)
	}

	var blocks []models.DailyPlanBlock
	if err = r.SelectContext(ctx, &blocks, sql, args...); err != nil {
		return nil, fmt.Errorf("get daily plan (user_id: %d, date: %s): %w", userID, planDate, err)
	}
	return blocks, nil
}

// SetBlockStatus reports false when no such block exists.
func (r DB) SetBlockStatus(ctx context.Context, userID int64, planDate string, blockIndex int, status models.BlockStatus) (bool, error) {
	query := r.psql.Update("daily_plan").
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where("user_id = ? AND plan_date = ? AND block_index = ?", userID, planDate, blockIndex)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build SQL query (user_id: %d, block: %d): %w", userID, blockIndex, err)
	}

	res, err := r.ExecContext(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("set block status (user_id: %d, date: %s, block: %d): %w", userID, planDate, blockIndex, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read affected rows (user_id: %d, block: %d): %w", userID, blockIndex, err)
	}
	return n > 0, nil
}
