// Package seed provides the demo data served by the task and review views
// and helpers to populate a development database with listings.
package seed

import (
	_ "embed"
	"fmt"

	"marketplace/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

// Badge is a community trust badge and how many providers hold it.
type Badge struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Fixtures is the static demo data set.
type Fixtures struct {
	Tasks   []models.Task   `yaml:"tasks"`
	Reviews []models.Review `yaml:"reviews"`
	Badges  []Badge         `yaml:"badges"`
}

// LoadFixtures parses the embedded fixtures.
func LoadFixtures() (*Fixtures, error) {
	return ParseFixtures(fixturesYAML)
}

// ParseFixtures parses a fixtures document and checks enumerated fields.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for _, t := range f.Tasks {
		switch t.Type {
		case models.TaskPosted, models.TaskAccepted:
		default:
			return nil, fmt.Errorf("task %s: unknown type %q", t.ID, t.Type)
		}
		if !isTaskStatus(t.Status) {
			return nil, fmt.Errorf("task %s: unknown status %q", t.ID, t.Status)
		}
	}
	for _, r := range f.Reviews {
		if r.Rating < 1 || r.Rating > 5 {
			return nil, fmt.Errorf("review %s: rating %d out of range", r.ID, r.Rating)
		}
	}
	return &f, nil
}

func isTaskStatus(s models.TaskStatus) bool {
	for _, known := range models.TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}
