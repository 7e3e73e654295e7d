package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Topics    []models.Topic `yaml:"topics"`
	Questions []SeedQuestion `yaml:"questions"`
}

type SeedQuestion struct {
	ID          int64    `yaml:"id"`
	Paper       int      `yaml:"paper"`
	Section     string   `yaml:"section"`
	TopicID     *int64   `yaml:"topic_id"`
	Question    string   `yaml:"question"`
	Options     []string `yaml:"options"`
	AnswerIndex int      `yaml:"answer_index"`
	Level       string   `yaml:"level"`
	Explanation string   `yaml:"explanation"`
	Diagnostic  bool     `yaml:"diagnostic"`
}

func (q SeedQuestion) model() models.Question {
	opts := make([]string, 4)
	copy(opts, q.Options)

	paper := q.Paper
	if paper == 0 {
		paper = 2
	}
	level := q.Level
	if level == "" {
		level = "medium"
	}

	return models.Question{
		ID:           q.ID,
		Paper:        paper,
		Section:      q.Section,
		TopicID:      q.TopicID,
		Text:         q.Question,
		OptA:         opts[0],
		OptB:         opts[1],
		OptC:         opts[2],
		OptD:         opts[3],
		AnswerIdx:    q.AnswerIndex,
		Level:        level,
		Explanation:  q.Explanation,
		IsDiagnostic: q.Diagnostic,
	}
}

// LoadCatalog reads a seed catalog from path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed catalog (path: %s): %w", path, err)
		}
		raw = b
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse seed catalog (path: %s): %w", path, err)
	}

	for _, q := range c.Questions {
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
			return nil, fmt.Errorf("invalid answer index (question: %d, index: %d)", q.ID, q.AnswerIndex)
		}
	}

	return &c, nil
}

// Seed fills the topic and question tables when they are empty. Non-empty
// tables are left untouched so edits made in the database survive restarts.
func Seed(ctx context.Context, repo models.Repository, c *Catalog) error {
	return repo.RunInTx(ctx, func(tx models.Repository) error {
		topics, err := tx.CountTopics(ctx)
		if err != nil {
			return err
		}
		if topics == 0 {
			if err = tx.InsertTopics(ctx, c.Topics); err != nil {
				return err
			}
			zap.S().Infow("seeded topics", "count", len(c.Topics))
		}

		questions, err := tx.CountQuestions(ctx)
		if err != nil {
			return err
		}
		if questions == 0 {
			batch := make([]models.Question, 0, len(c.Questions))
			for _, q := range c.Questions {
				batch = append(batch, q.model())
			}
			if err = tx.InsertQuestions(ctx, batch); err != nil {
				return err
			}
			zap.S().Infow("seeded questions", "count", len(batch))
		}

		return nil
	})
}
