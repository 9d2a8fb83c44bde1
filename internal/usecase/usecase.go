package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/you-humble/taskboard/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// signConcurrency caps parallel signing calls during read-path enrichment.
const signConcurrency = 8

type TaskRepository interface {
	Create(ctx context.Context, title, description string) (domain.Task, error)
	Task(ctx context.Context, id string) (domain.Task, error)
	Tasks(ctx context.Context) ([]domain.Task, error)
	UpdateFields(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error)
	AppendImage(ctx context.Context, id string, img domain.ImageAttachment) (domain.Task, error)
	RemoveImage(ctx context.Context, id string, img domain.ImageAttachment) (domain.Task, error)
	Delete(ctx context.Context, id string) error
}

type BlobStore interface {
	Ready() bool
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	SignDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type CreateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
}

// usecase orchestrates task documents and their image blobs. The repository
// and the blob store fail independently, so every mixed operation orders its
// steps such that a crash in between leaves at worst an orphan blob, never a
// document referencing a blob known to be gone.
type usecase struct {
	signTTL time.Duration
	tasks   TaskRepository
	blobs   BlobStore
}

func New(signTTL time.Duration, tasks TaskRepository, blobs BlobStore) *usecase {
	return &usecase{
		signTTL: signTTL,
		tasks:   tasks,
		blobs:   blobs,
	}
}

func (uc *usecase) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	var violations []string

	title := ""
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		violations = append(violations, "title must be a non-empty string.")
	} else {
		title = strings.TrimSpace(*in.Title)
	}

	description := ""
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}

	if in.Status != nil {
		violations = append(violations, "status is assigned by the server on create.")
	}

	if len(violations) > 0 {
		return domain.Task{}, domain.NewValidationError(violations...)
	}

	return uc.tasks.Create(ctx, title, description)
}

func (uc *usecase) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (domain.Task, error) {
	var violations []string
	var upd domain.TaskUpdate

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			violations = append(violations, "title must be a non-empty string.")
		} else {
			title := strings.TrimSpace(*in.Title)
			upd.Title = &title
		}
	}

	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		upd.Description = &description
	}

	if in.Status != nil {
		status := domain.TaskStatus(*in.Status)
		if !status.Valid() {
			violations = append(violations, "invalid status (active, completed, archived).")
		} else {
			upd.Status = &status
		}
	}

	if len(violations) > 0 {
		return domain.Task{}, domain.NewValidationError(violations...)
	}
	if upd.Empty() {
		return domain.Task{}, domain.NewValidationError("no fields to update.")
	}

	task, err := uc.tasks.UpdateFields(ctx, id, upd)
	if err != nil {
		return domain.Task{}, err
	}

	return uc.enrich(ctx, task), nil
}

func (uc *usecase) Tasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := uc.tasks.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tasks {
		tasks[i] = uc.enrich(ctx, tasks[i])
	}

	return tasks, nil
}

func (uc *usecase) TaskImages(ctx context.Context, id string) ([]domain.ImageAttachment, error) {
	task, err := uc.tasks.Task(ctx, id)
	if err != nil {
		return nil, err
	}

	return uc.enrich(ctx, task).Images, nil
}

// AttachImage uploads the blob first and records metadata only after the
// upload succeeded. A failed upload leaves the document untouched; a failed
// append after a successful upload strands the blob, which is logged and
// accepted rather than hidden.
func (uc *usecase) AttachImage(ctx context.Context, taskID, filename, contentType string, reader io.Reader, size int64) (domain.Task, error) {
	if !uc.blobs.Ready() {
		return domain.Task{}, domain.ErrBlobStoreNotReady
	}

	if _, err := uc.tasks.Task(ctx, taskID); err != nil {
		return domain.Task{}, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	img := domain.ImageAttachment{
		ID:          uuid.NewString(),
		Filename:    sanitizeFilename(filename),
		Size:        size,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}
	img.Key = fmt.Sprintf("tasks/%s/%s-%s", taskID, img.ID, img.Filename)

	if err := uc.blobs.Put(ctx, img.Key, reader, size, contentType); err != nil {
		return domain.Task{}, fmt.Errorf("upload image: %w", err)
	}

	task, err := uc.tasks.AppendImage(ctx, taskID, img)
	if err != nil {
		slog.Warn("image uploaded but metadata append failed, blob is orphaned",
			slog.String("task_id", taskID),
			slog.String("key", img.Key),
			slog.String("error", err.Error()),
		)
		return domain.Task{}, fmt.Errorf("record image metadata: %w", err)
	}

	return uc.enrich(ctx, task), nil
}

// DetachImage deletes the blob before removing its metadata, so the document
// never keeps a reference this operation already knows is gone from storage.
func (uc *usecase) DetachImage(ctx context.Context, taskID, imageID string) (domain.Task, error) {
	task, err := uc.tasks.Task(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}

	img, ok := findImage(task.Images, imageID)
	if !ok {
		return domain.Task{}, domain.ErrImageNotFound
	}

	if !uc.blobs.Ready() {
		return domain.Task{}, domain.ErrBlobStoreNotReady
	}

	if err := uc.blobs.Delete(ctx, img.Key); err != nil {
		return domain.Task{}, fmt.Errorf("delete image blob: %w", err)
	}

	task, err = uc.tasks.RemoveImage(ctx, taskID, img)
	if err != nil {
		return domain.Task{}, err
	}

	return uc.enrich(ctx, task), nil
}

// DeleteTask clears every attached blob before deleting the document. The
// first blob failure aborts the whole operation with the document intact.
func (uc *usecase) DeleteTask(ctx context.Context, id string) error {
	task, err := uc.tasks.Task(ctx, id)
	if err != nil {
		return err
	}

	if len(task.Images) > 0 && !uc.blobs.Ready() {
		return domain.ErrBlobStoreNotReady
	}

	for _, img := range task.Images {
		if err := uc.blobs.Delete(ctx, img.Key); err != nil {
			return fmt.Errorf("delete image blob %s: %w", img.Key, err)
		}
	}

	return uc.tasks.Delete(ctx, id)
}

func (uc *usecase) ImageDownloadURL(ctx context.Context, taskID, imageID string) (string, error) {
	task, err := uc.tasks.Task(ctx, taskID)
	if err != nil {
		return "", err
	}

	img, ok := findImage(task.Images, imageID)
	if !ok {
		return "", domain.ErrImageNotFound
	}

	if !uc.blobs.Ready() {
		return "", domain.ErrBlobStoreNotReady
	}

	url, err := uc.blobs.SignDownloadURL(ctx, img.Key, uc.signTTL)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}

	return url, nil
}

func (uc *usecase) Metrics(ctx context.Context) (domain.Metrics, error) {
	tasks, err := uc.tasks.Tasks(ctx)
	if err != nil {
		return domain.Metrics{}, err
	}

	m := domain.Metrics{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusActive:
			m.Active++
		case domain.StatusCompleted:
			m.Completed++
		case domain.StatusArchived:
			m.Archived++
		}
	}

	return m, nil
}

// enrich fills every image's downloadUrl with a freshly signed URL. A signing
// failure nulls that one image's URL and never fails the read; when the blob
// store is not ready no signing is attempted at all.
func (uc *usecase) enrich(ctx context.Context, task domain.Task) domain.Task {
	for i := range task.Images {
		task.Images[i].DownloadURL = nil
	}

	if len(task.Images) == 0 || !uc.blobs.Ready() {
		return task
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(signConcurrency)

	for i := range task.Images {
		eg.Go(func() error {
			url, err := uc.blobs.SignDownloadURL(egCtx, task.Images[i].Key, uc.signTTL)
			if err != nil {
				slog.Warn("sign download url failed",
					slog.String("key", task.Images[i].Key),
					slog.String("error", err.Error()),
				)
				return nil
			}
			task.Images[i].DownloadURL = &url
			return nil
		})
	}

	// workers only report nil; Wait is for completion, not errors
	_ = eg.Wait()

	return task
}

func findImage(images []domain.ImageAttachment, imageID string) (domain.ImageAttachment, bool) {
	for _, img := range images {
		if img.ID == imageID {
			return img, true
		}
	}
	return domain.ImageAttachment{}, false
}

// sanitizeFilename keeps letters, digits, dot, dash and underscore, replaces
// everything else with an underscore, bounds the result to its last 128
// characters and falls back to "image" when nothing usable remains.
func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}

	if len(out) > 128 {
		out = out[len(out)-128:]
	}
	if len(out) == 0 {
		return "image"
	}

	return string(out)
}

