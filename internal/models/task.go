package models

const (
	TaskPlanning   = "Planning"
	TaskInProgress = "In Progress"
	TaskReview     = "Review"
	TaskCompleted  = "Completed"
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = []string{TaskPlanning, TaskInProgress, TaskReview, TaskCompleted}

type Task struct {
	ID         int64  `json:"id" validate:"required"`
	Title      string `json:"title"`
	Details    string `json:"details"`
	Status     string `json:"status"`
	AssignedTo string `json:"assignedTo"`
}

type CreateTaskRequest struct {
	AssignedTo string `json:"assignedTo" validate:"required,email"`
	Title      string `json:"title" validate:"required"`
	Details    string `json:"details" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=Planning"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Planning 'In Progress' Review Completed" validate:"required,oneof=Planning 'In Progress' Review Completed"`
}
