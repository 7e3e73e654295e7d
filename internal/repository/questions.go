package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

var questionColumns = []string{
	"q_id", "paper", "section", "topic_id", "question", "opt_a", "opt_b", "opt_c", "opt_d",
	"answer_idx", "level", "explanation", "is_diagnostic",
}

// GetDiagnosticQuestions draws the onboarding set: for each stratum the lowest-id
// diagnostic questions of that section, in stratum order. When the strata yield
// fewer than total, the rest is padded with random diagnostic questions not yet drawn.
func (r DB) GetDiagnosticQuestions(ctx context.Context, strata []models.Stratum, total int) ([]models.Question, error) {
	var (
		result []models.Question
		seen   []int64
	)

	for _, s := range strata {
		query := r.psql.Select(questionColumns...).
			From("questions").
			Where(squirrel.Eq{"is_diagnostic": true, "section": s.Section}).
			OrderBy("q_id").
			Limit(uint64(s.Count))

		sql, args, err := query.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build SQL query (section: %s): %w", s.Section, err)
		}

		var batch []models.Question
		if err = r.SelectContext(ctx, &batch, sql, args...); err != nil {
			return nil, fmt.Errorf("get diagnostic questions (section: %s): %w", s.Section, err)
		}

		for _, q := range batch {
			seen = append(seen, q.ID)
		}
		result = append(result, batch...)
	}

	if len(result) >= total {
		return result[:total], nil
	}

	query := r.psql.Select(questionColumns...).
		From("questions").
		Where(squirrel.Eq{"is_diagnostic": true}).
		OrderBy("RANDOM()").
		Limit(uint64(total - len(result)))
	if len(seen) > 0 {
		query = query.Where(squirrel.NotEq{"q_id": seen})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (padding: %d): %w", total-len(result), err)
	}

	var padding []models.Question
	if err = r.SelectContext(ctx, &padding, sql, args...); err != nil {
		return nil, fmt.Errorf("get diagnostic padding (count: %d): %w", total-len(result), err)
	}

	return append(result, padding...), nil
}

// GetQuestions draws practice (non-diagnostic) questions in random order.
func (r DB) GetQuestions(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error) {
	query := r.psql.Select(questionColumns...).
		From("questions").
		Where(squirrel.Eq{"is_diagnostic": false}).
		OrderBy("RANDOM()")
	if filter.Paper > 0 {
		query = query.Where(squirrel.Eq{"paper": filter.Paper})
	}
	if filter.Section != "" {
		query = query.Where(squirrel.Eq{"section": filter.Section})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (paper: %d, section: %s): %w", filter.Paper, filter.Section, err)
	}

	var questions []models.Question
	if err = r.SelectContext(ctx, &questions, sql, args...); err != nil {
		return nil, fmt.Errorf("get questions (paper: %d, section: %s): %w", filter.Paper, filter.Section, err)
	}
	return questions, nil
}

func (r DB) CountQuestions(ctx context.Context) (int, error) {
	var count int
	if err := r.GetContext(ctx, &count, "SELECT COUNT(*) FROM questions"); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (r DB) InsertQuestions(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	query := r.psql.Insert("questions").Columns(questionColumns...)
	for _, q := range questions {
		query = query.Values(q.ID, q.Paper, q.Section, q.TopicID, q.Text, q.OptA, q.OptB, q.OptC, q.OptD,
			q.AnswerIdx, q.Level, q.Explanation, q.IsDiagnostic)
	}
	query = query.Suffix("ON CONFLICT (q_id) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (questions: %d): %w", len(questions), err)
	}

	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert questions (questions: %d): %w", len(questions), err)
	}
	return nil
}
