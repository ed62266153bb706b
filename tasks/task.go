// Package tasks is the frontend's view of the tasks backend API.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("tasks: task not found")

// Task mirrors the backend's task representation.
type Task struct {
	TaskID         uuid.UUID `json:"taskId"`
	TaskName       string    `json:"taskName"`
	TaskCreatedBy  string    `json:"taskCreatedBy"`
	TaskCreatedOn  time.Time `json:"taskCreatedOn"`
	TaskDueDate    time.Time `json:"taskDueDate"`
	TaskAssignedTo string    `json:"taskAssignedTo"`
	IsCompleted    bool      `json:"isCompleted"`
	IsOverDue      bool      `json:"isOverDue"`
}

type AddTaskRequest struct {
	TaskName       string    `json:"taskName"`
	TaskCreatedBy  string    `json:"taskCreatedBy"`
	TaskDueDate    time.Time `json:"taskDueDate"`
	TaskAssignedTo string    `json:"taskAssignedTo"`
}

type UpdateTaskRequest struct {
	TaskID         uuid.UUID `json:"taskId"`
	TaskName       string    `json:"taskName"`
	TaskDueDate    time.Time `json:"taskDueDate"`
	TaskAssignedTo string    `json:"taskAssignedTo"`
}

// Gateway is everything the pages need from the backend.
type Gateway interface {
	List(ctx context.Context, createdBy string) ([]Task, error)
	Get(ctx context.Context, id uuid.UUID) (Task, error)
	Create(ctx context.Context, req AddTaskRequest) (uuid.UUID, error)
	Update(ctx context.Context, req UpdateTaskRequest) error
	MarkComplete(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
