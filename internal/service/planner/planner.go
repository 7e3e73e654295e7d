package planner

import (
	"math"
	"math/rand"
	"sync"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/adaptive"
)

const RestDayInterval = 14

type BlockTemplate struct {
	Label   string  `yaml:"label"`
	Paper   int     `yaml:"paper"`
	Section string  `yaml:"section"`
	Hours   float64 `yaml:"hours"`
	Emoji   string  `yaml:"emoji"`
}

type Template struct {
	Blocks  []BlockTemplate `yaml:"blocks"`
	RestDay []BlockTemplate `yaml:"rest_day"`
	Routine Routine         `yaml:"routine"`
}

// Input is everything a plan depends on besides the random source.
type Input struct {
	Profile        *models.Profile
	Topics         []models.Topic
	Streak         int
	DaysSinceStart int
}

type Planner struct {
	tpl Template

	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a planner drawing topics from rnd. rnd is guarded internally.
func New(tpl Template, rnd *rand.Rand) *Planner {
	return &Planner{tpl: tpl, rnd: rnd}
}

func (p *Planner) Template() Template {
	return p.tpl
}

func IsRestDay(daysSinceStart int) bool {
	return daysSinceStart > 0 && daysSinceStart%RestDayInterval == 0
}

// Build assembles the day's blocks. Template hours are scaled by the profile's
// recommended hours over the 10.5h baseline, and every block with a paper gets
// a topic drawn with probability proportional to its priority.
func (p *Planner) Build(in Input) []models.DailyPlanBlock {
	if IsRestDay(in.DaysSinceStart) {
		return p.restDay()
	}

	var (
		accuracy models.SectionAccuracy
		hours    = adaptive.BaselineHours
		errType  = models.ErrorConceptual
	)
	if in.Profile != nil {
		accuracy = in.Profile.TopicAccuracy
		if in.Profile.RecommendedDailyHours > 0 {
			hours = in.Profile.RecommendedDailyHours
		}
		if in.Profile.ErrorType != "" {
			errType = in.Profile.ErrorType
		}
	}
	scale := hours / adaptive.BaselineHours

	scores := make(map[int64]float64, len(in.Topics))
	for _, t := range in.Topics {
		scores[t.ID] = adaptive.Priority(t, accuracy, in.Streak)
	}

	blocks := make([]models.DailyPlanBlock, 0, len(p.tpl.Blocks))
	for i, def := range p.tpl.Blocks {
		b := models.DailyPlanBlock{
			BlockIndex: i,
			Label:      def.Label,
			Section:    def.Section,
			Paper:      def.Paper,
			Hours:      round1(def.Hours * scale),
			Emoji:      def.Emoji,
			Status:     models.BlockPending,
		}

		if def.Paper > 0 {
			if topic, ok := p.pick(poolFor(in.Topics, def), scores); ok {
				id := topic.ID
				b.TopicID = &id
				b.TopicName = topic.Name
				b.FreePDFLink = topic.FreePDFLink
				b.RecommendedBooks = topic.RecommendedBooks
				b.MarksWeight = topic.MarksWeight
				b.Priority = scores[topic.ID]
				b.Hint = Hint(errType)
			}
		}

		blocks = append(blocks, b)
	}

	return blocks
}

func (p *Planner) restDay() []models.DailyPlanBlock {
	blocks := make([]models.DailyPlanBlock, 0, len(p.tpl.RestDay))
	for i, def := range p.tpl.RestDay {
		blocks = append(blocks, models.DailyPlanBlock{
			BlockIndex: i,
			Label:      def.Label,
			Section:    def.Section,
			Paper:      def.Paper,
			Hours:      def.Hours,
			Emoji:      def.Emoji,
			Status:     models.BlockPending,
		})
	}
	return blocks
}

// Hint tells a conceptual learner to read first and a careless one to drill first.
func Hint(e models.ErrorType) string {
	if e == models.ErrorConceptual {
		return "Theory→MCQ"
	}
	return "MCQ→Review"
}

// poolFor prefers topics of the block's section and falls back to its whole paper.
func poolFor(topics []models.Topic, def BlockTemplate) []models.Topic {
	var section, paper []models.Topic
	for _, t := range topics {
		if t.Paper != def.Paper {
			continue
		}
		paper = append(paper, t)
		if t.Section == def.Section {
			section = append(section, t)
		}
	}
	if len(section) > 0 {
		return section
	}
	return paper
}

func (p *Planner) pick(pool []models.Topic, scores map[int64]float64) (models.Topic, bool) {
	if len(pool) == 0 {
		return models.Topic{}, false
	}

	weights := make([]float64, len(pool))
	var total float64
	for i, t := range pool {
		weights[i] = math.Max(0.01, scores[t.ID])
		total += weights[i]
	}

	p.mu.Lock()
	r := p.rnd.Float64() * total
	p.mu.Unlock()

	for i, w := range weights {
		if r < w {
			return pool[i], true
		}
		r -= w
	}
	return pool[len(pool)-1], true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
