package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/romanzh1/rpsc-study-coach/internal/models"
	"github.com/romanzh1/rpsc-study-coach/internal/service/planner"
	"gopkg.in/yaml.v3"
)

//go:embed plan.yaml
var defaultPlan []byte

// CalibrationMock is the mode started after the night summary.
const CalibrationMock = "mini"

type MockMode struct {
	Label     string `yaml:"label"`
	Paper     int    `yaml:"paper"`
	Section   string `yaml:"section"`
	Questions int    `yaml:"questions"`
	Minutes   int    `yaml:"minutes"`
}

func (m MockMode) Filter() models.QuestionFilter {
	return models.QuestionFilter{Paper: m.Paper, Section: m.Section, Limit: m.Questions}
}

type Plan struct {
	planner.Template `yaml:",inline"`

	DiagnosticSize int                 `yaml:"diagnostic_size"`
	Strata         []models.Stratum    `yaml:"diagnostic_strata"`
	Mocks          map[string]MockMode `yaml:"mocks"`
}

// MockNames returns the configured mock modes in a stable order.
func (p *Plan) MockNames() []string {
	names := make([]string, 0, len(p.Mocks))
	for name := range p.Mocks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadPlan reads the plan template from path, or the built-in one when path is empty.
func LoadPlan(path string) (*Plan, error) {
	raw := defaultPlan
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plan file (path: %s): %w", path, err)
		}
		raw = b
	}

	var p Plan
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse plan file (path: %s): %w", path, err)
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("validate plan file (path: %s): %w", path, err)
	}

	return &p, nil
}

func (p *Plan) validate() error {
	if len(p.Blocks) == 0 {
		return fmt.Errorf("no study blocks")
	}
	for _, b := range slices.Concat(p.Blocks, p.RestDay) {
		if b.Hours <= 0 {
			return fmt.Errorf("block %q has no hours", b.Label)
		}
	}

	sum := 0
	for _, s := range p.Strata {
		if s.Count <= 0 {
			return fmt.Errorf("stratum %q has no questions", s.Section)
		}
		sum += s.Count
	}
	if p.DiagnosticSize == 0 {
		p.DiagnosticSize = sum
	}
	if p.DiagnosticSize < sum {
		return fmt.Errorf("diagnostic size %d is below the strata total %d", p.DiagnosticSize, sum)
	}

	if _, ok := p.Mocks[CalibrationMock]; !ok {
		return fmt.Errorf("missing %q mock mode", CalibrationMock)
	}
	for name, m := range p.Mocks {
		if m.Questions <= 0 {
			return fmt.Errorf("mock %q has no questions", name)
		}
	}

	return nil
}
