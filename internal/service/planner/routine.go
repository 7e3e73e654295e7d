package planner

import (
	"fmt"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/pkg/utils"
)

type Meal struct {
	Name         string `yaml:"name"`
	At           string `yaml:"at"`
	BreakMinutes int    `yaml:"break_minutes"`
}

type Routine struct {
	Wake  string `yaml:"wake"`
	Meals []Meal `yaml:"meals"`
}

// Slot is a block placed on the clock, in minutes since midnight.
type Slot struct {
	Block models.DailyPlanBlock
	Start int
	End   int
}

func (s Slot) String() string {
	return utils.FormatClock(s.Start) + "–" + utils.FormatClock(s.End)
}

type meal struct {
	name  string
	at    int
	until int
	used  bool
}

// Schedule lays blocks out from the wake time. A block that would run into a
// meal starts after that meal's break instead; each meal moves the day once.
func Schedule(blocks []models.DailyPlanBlock, r Routine) ([]Slot, error) {
	cursor, err := utils.ParseClock(r.Wake)
	if err != nil {
		return nil, fmt.Errorf("parse wake time (wake: %s): %w", r.Wake, err)
	}

	meals := make([]meal, 0, len(r.Meals))
	for _, m := range r.Meals {
		at, err := utils.ParseClock(m.At)
		if err != nil {
			return nil, fmt.Errorf("parse meal time (meal: %s): %w", m.Name, err)
		}
		meals = append(meals, meal{name: m.Name, at: at, until: at + m.BreakMinutes})
	}

	slots := make([]Slot, 0, len(blocks))
	for _, b := range blocks {
		start := cursor
		for i := range meals {
			m := &meals[i]
			if m.used {
				continue
			}
			if start < m.until && start+b.Minutes() > m.at {
				start = max(start, m.until)
				m.used = true
			}
		}

		end := start + b.Minutes()
		slots = append(slots, Slot{Block: b, Start: start, End: end})
		cursor = end
	}

	return slots, nil
}
