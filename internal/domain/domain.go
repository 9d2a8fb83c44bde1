package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusActive    TaskStatus = "active"
	StatusCompleted TaskStatus = "completed"
	StatusArchived  TaskStatus = "archived"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Task is the document owned by the task repository. Its images list is the
// single source of truth for which blobs belong to the task.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Images []ImageAttachment `json:"images"`
}

// MarshalJSON renders zero timestamps as null and a nil images slice as [].
func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	view := struct {
		alias
		CreatedAt *time.Time        `json:"createdAt"`
		UpdatedAt *time.Time        `json:"updatedAt"`
		Images    []ImageAttachment `json:"images"`
	}{alias: alias(t), Images: t.Images}

	if !t.CreatedAt.IsZero() {
		view.CreatedAt = &t.CreatedAt
	}
	if !t.UpdatedAt.IsZero() {
		view.UpdatedAt = &t.UpdatedAt
	}
	if view.Images == nil {
		view.Images = []ImageAttachment{}
	}

	return json.Marshal(view)
}

// ImageAttachment links a task to one object in blob storage. DownloadURL is
// derived on every read from a freshly signed URL and is never persisted.
type ImageAttachment struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`

	DownloadURL *string `json:"downloadUrl"`
}

// TaskUpdate carries a partial field set for an update; nil means "leave as is".
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}

// Metrics are per-status task counters.
type Metrics struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Archived  int `json:"archived"`
}

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrImageNotFound = errors.New("image not found")

	// ErrBlobStoreNotReady means required blob storage configuration is
	// absent; no network call was attempted.
	ErrBlobStoreNotReady = errors.New("blob storage is not configured")

	ErrEmptyUpdate = errors.New("no fields to update")
)

// ValidationError aggregates every violated input rule into one message.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, " ")
}

func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}
