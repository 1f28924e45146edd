package entity

import "github.com/google/uuid"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

type Task struct {
	ID          string
	Description string
	Status      TaskStatus
}

func NewTask(description string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskStatusPending,
	}
}
