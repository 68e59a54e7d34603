package service

import (
	"slices"
	"strings"

	"marketplace/internal/models"
)

// Task tabs.
const (
	TaskTabAll      = "all"
	TaskTabPosted   = "posted"
	TaskTabAccepted = "accepted"
)

// TaskFilter selects tasks by tab and status. Empty values mean "all".
type TaskFilter struct {
	Tab    string
	Status string
}

// TaskStats summarizes the task collection.
type TaskStats struct {
	Total    int                       `json:"total"`
	ByStatus map[models.TaskStatus]int `json:"byStatus"`
}

// TabCount is one tab with the number of tasks it holds.
type TabCount struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TaskService is the read-only view over the user's tasks.
type TaskService struct {
	tasks []models.Task
}

// NewTaskService serves the given tasks in the given order.
func NewTaskService(tasks []models.Task) *TaskService {
	return &TaskService{tasks: slices.Clone(tasks)}
}

// List returns the tasks matching f, preserving order.
func (s *TaskService) List(f TaskFilter) ([]models.Task, error) {
	tab := strings.ToLower(strings.TrimSpace(f.Tab))
	switch tab {
	case "", TaskTabAll, TaskTabPosted, TaskTabAccepted:
	default:
		return nil, models.NewValidationError("Invalid tab: must be all, posted or accepted")
	}
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status != "" && status != "all" && !slices.Contains(models.TaskStatuses, models.TaskStatus(status)) {
		return nil, models.NewValidationError("Invalid status")
	}

	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if tab != "" && tab != TaskTabAll && string(t.Type) != tab {
			continue
		}
		if status != "" && status != "all" && string(t.Status) != status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Stats counts tasks in total and per status. Every status is present.
func (s *TaskService) Stats() TaskStats {
	st := TaskStats{Total: len(s.tasks), ByStatus: make(map[models.TaskStatus]int, len(models.TaskStatuses))}
	for _, status := range models.TaskStatuses {
		st.ByStatus[status] = 0
	}
	for _, t := range s.tasks {
		st.ByStatus[t.Status]++
	}
	return st
}

// TabCounts returns the tab strip with counts.
func (s *TaskService) TabCounts() []TabCount {
	posted, accepted := 0, 0
	for _, t := range s.tasks {
		switch t.Type {
		case models.TaskPosted:
			posted++
		case models.TaskAccepted:
			accepted++
		}
	}
	return []TabCount{
		{Value: TaskTabAll, Label: "All Tasks", Count: len(s.tasks)},
		{Value: TaskTabPosted, Label: "Posted by Me", Count: posted},
		{Value: TaskTabAccepted, Label: "Accepted by Me", Count: accepted},
	}
}
