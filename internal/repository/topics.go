package repository

import (
	"context"
	"fmt"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
)

var topicColumns = []string{
	"topic_id", "name", "paper", "section", "target_hours", "marks_weight",
	"priority", "pyq_weight", "recommended_books", "free_pdf_link",
}

// GetTopics lists the catalog, optionally limited to one paper (0 means all).
func (r DB) GetTopics(ctx context.Context, paper int) ([]models.Topic, error) {
	query := r.psql.Select(topicColumns...).From("topics").OrderBy("paper", "section", "topic_id")
	if paper > 0 {
		query = query.Where("paper = ?", paper)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (paper: %d): %w", paper, err)
	}

	var topics []models.Topic
	if err = r.SelectContext(ctx, &topics, sql, args...); err != nil {
		return nil, fmt.Errorf("get topics (paper: %d): %w", paper, err)
	}
	return topics, nil
}

func (r DB) GetTopic(ctx context.Context, topicID int64) (*models.Topic, error) {
	query := r.psql.Select(topicColumns...).From("topics").Where("topic_id = ?", topicID)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (topic_id: %d): %w", topicID, err)
	}

	var topic models.Topic
	if err = r.GetContext(ctx, &topic, sql, args...); err != nil {
		return nil, fmt.Errorf("get topic (topic_id: %d): %w", topicID, err)
	}
	return &topic, nil
}

func (r DB) CountTopics(ctx context.Context) (int, error) {
	var count int
	if err := r.GetContext(ctx, &count, "SELECT COUNT(*) FROM topics"); err != nil {
		return 0, fmt.Errorf("count topics: %w", err)
	}
	return count, nil
}

// InsertTopics loads catalog rows, ignoring ids that already exist.
func (r DB) InsertTopics(ctx context.Context, topics []models.Topic) error {
	if len(topics) == 0 {
		return nil
	}

	query := r.psql.Insert("topics").Columns(topicColumns...)
	for _, t := range topics {
		query = query.Values(t.ID, t.Name, t.Paper, t.Section, t.TargetHours, t.MarksWeight,
			t.Priority, t.PYQWeight, t.RecommendedBooks, t.FreePDFLink)
	}
	query = query.Suffix("ON CONFLICT (topic_id) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (topics: %d): %w", len(topics), err)
	}

	if _, err = r.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert topics (topics: %d): %w", len(topics), err)
	}
	return nil
}
