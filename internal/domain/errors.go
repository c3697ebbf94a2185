package domain

import "fmt"

// TaskNotFoundError is returned when a task file does not exist in the folder it was looked up in.
type TaskNotFoundError struct {
	Name   string
	Folder Folder
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s/%s", e.Folder, e.Name)
}

// RateLimitExceededError is returned when an action type exceeds its rate limit.
type RateLimitExceededError struct {
	TaskType string
	Limit    int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for task type %q: limit is %d", e.TaskType, e.Limit)
}

// InvalidTaskTypeError is returned when no handler exists for an approved task.
type InvalidTaskTypeError struct {
	TaskType string
	Action   string
}

func (e *InvalidTaskTypeError) Error() string {
	return fmt.Sprintf("no handler registered for task type %q (action %q)", e.TaskType, e.Action)
}

// InvalidTransitionError is returned when an event does not apply to the task's current state.
type InvalidTransitionError struct {
	Task  string
	From  Status
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: event %s not allowed from status %s", e.Task, e.Event, e.From)
}

// PathOutsideVaultError is returned when a caller-supplied path escapes the vault root.
type PathOutsideVaultError struct {
	Path string
}

func (e *PathOutsideVaultError) Error() string {
	return fmt.Sprintf("path outside vault: %s", e.Path)
}

// TaskExistsError is returned when a move would replace a task file of the same name.
type TaskExistsError struct {
	Name   string
	Folder Folder
}

func (e *TaskExistsError) Error() string {
	return fmt.Sprintf("task already exists: %s/%s", e.Folder, e.Name)
}
