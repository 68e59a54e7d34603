package models

// TaskType says whether the current user posted or accepted the task.
type TaskType string

const (
	TaskPosted   TaskType = "posted"
	TaskAccepted TaskType = "accepted"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskActive     TaskStatus = "active"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{TaskActive, TaskInProgress, TaskCompleted, TaskCancelled}

// Person is a name and avatar shown next to a task or review.
type Person struct {
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
}

// Task is a job the current user posted or accepted.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Type        TaskType   `json:"type" yaml:"type"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Budget      string     `json:"budget,omitempty" yaml:"budget"`
	Timeline    string     `json:"timeline,omitempty" yaml:"timeline"`
	Location    string     `json:"location" yaml:"location"`
	PostedBy    Person     `json:"postedBy" yaml:"postedBy"`
	AssignedTo  *Person    `json:"assignedTo,omitempty" yaml:"assignedTo"`
	CreatedAt   string     `json:"createdAt" yaml:"createdAt"`
	Tags        []string   `json:"tags" yaml:"tags"`
}

// Review is a rating left for a provider.
type Review struct {
	ID       string `json:"id" yaml:"id"`
	Reviewer Person `json:"reviewer" yaml:"reviewer"`
	Provider Person `json:"provider" yaml:"provider"`
	Rating   int    `json:"rating" yaml:"rating"`
	Service  string `json:"service" yaml:"service"`
	Comment  string `json:"comment" yaml:"comment"`
	Date     string `json:"date" yaml:"date"`
	Helpful  int    `json:"helpful" yaml:"helpful"`
	Verified bool   `json:"verified" yaml:"verified"`
}
