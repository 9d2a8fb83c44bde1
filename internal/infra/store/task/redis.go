package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/you-humble/taskboard/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds the optimistic-retry loop for read-modify-write
// transactions that lose a WATCH race.
const maxTxRetries = 5

// Store keeps one hash per task document plus a ZSET index scored by creation
// time for newest-first listing. Single-document mutations run under WATCH so
// concurrent writers to the same task never interleave half-applied states.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Create(ctx context.Context, title, description string) (domain.Task, error) {
	now := time.Now()
	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Images:      []domain.ImageAttachment{},
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, taskKey(t.ID), map[string]interface{}{
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"images":      "[]",
		"created_at":  t.CreatedAt.UnixNano(),
		"updated_at":  t.UpdatedAt.UnixNano(),
	})
	pipe.ZAdd(ctx, tasksByCreatedKey(), redis.Z{
		Score:  float64(t.CreatedAt.UnixNano()),
		Member: t.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Task{}, fmt.Errorf("redis pipeline create task: %w", err)
	}

	return t, nil
}

func (s *Store) Task(ctx context.Context, id string) (domain.Task, error) {
	res, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return domain.Task{}, fmt.Errorf("redis get task %s: %w", id, err)
	}
	if len(res) == 0 {
		return domain.Task{}, domain.ErrTaskNotFound
	}

	return taskFromHash(id, res), nil
}

// Tasks returns every task, newest first.
func (s *Store) Tasks(ctx context.Context) ([]domain.Task, error) {
	ids, err := s.rdb.ZRevRange(ctx, tasksByCreatedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list task ids: %w", err)
	}

	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.Task(ctx, id)
		if errors.Is(err, domain.ErrTaskNotFound) {
			// index entry outlived its document; skip
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

func (s *Store) UpdateFields(ctx context.Context, id string, upd domain.TaskUpdate) (domain.Task, error) {
	if upd.Empty() {
		return domain.Task{}, domain.ErrEmptyUpdate
	}

	var updated domain.Task
	err := s.withTx(ctx, taskKey(id), func(tx *redis.Tx) error {
		res, err := tx.HGetAll(ctx, taskKey(id)).Result()
		if err != nil {
			return fmt.Errorf("redis get task %s: %w", id, err)
		}
		if len(res) == 0 {
			return domain.ErrTaskNotFound
		}

		t := taskFromHash(id, res)
		fields := map[string]interface{}{}
		if upd.Title != nil {
			t.Title = *upd.Title
			fields["title"] = *upd.Title
		}
		if upd.Description != nil {
			t.Description = *upd.Description
			fields["description"] = *upd.Description
		}
		if upd.Status != nil {
			t.Status = *upd.Status
			fields["status"] = string(*upd.Status)
		}
		t.UpdatedAt = time.Now()
		fields["updated_at"] = t.UpdatedAt.UnixNano()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, taskKey(id), fields)
			return nil
		})
		if err != nil {
			return err
		}

		updated = t
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	return updated, nil
}

// AppendImage atomically appends one attachment to the task's images list and
// refreshes updated_at. The signed URL is derived state and never persisted.
func (s *Store) AppendImage(ctx context.Context, id string, img domain.ImageAttachment) (domain.Task, error) {
	return s.mutateImages(ctx, id, func(images []domain.ImageAttachment) ([]domain.ImageAttachment, error) {
		return append(images, img), nil
	})
}

// RemoveImage atomically removes the entry matching img.ID and refreshes
// updated_at; entries for other attachments keep their order.
func (s *Store) RemoveImage(ctx context.Context, id string, img domain.ImageAttachment) (domain.Task, error) {
	return s.mutateImages(ctx, id, func(images []domain.ImageAttachment) ([]domain.ImageAttachment, error) {
		kept := images[:0]
		for _, existing := range images {
			if existing.ID != img.ID {
				kept = append(kept, existing)
			}
		}
		return kept, nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, taskKey(id), func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, taskKey(id)).Result()
		if err != nil {
			return fmt.Errorf("redis exists task %s: %w", id, err)
		}
		if exists == 0 {
			return domain.ErrTaskNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, taskKey(id))
			pipe.ZRem(ctx, tasksByCreatedKey(), id)
			return nil
		})
		return err
	})
}

func (s *Store) mutateImages(
	ctx context.Context,
	id string,
	mutate func([]domain.ImageAttachment) ([]domain.ImageAttachment, error),
) (domain.Task, error) {
	var updated domain.Task
	err := s.withTx(ctx, taskKey(id), func(tx *redis.Tx) error {
		res, err := tx.HGetAll(ctx, taskKey(id)).Result()
		if err != nil {
			return fmt.Errorf("redis get task %s: %w", id, err)
		}
		if len(res) == 0 {
			return domain.ErrTaskNotFound
		}

		t := taskFromHash(id, res)
		images, err := mutate(t.Images)
		if err != nil {
			return err
		}
		if images == nil {
			images = []domain.ImageAttachment{}
		}

		encoded, err := encodeImages(images)
		if err != nil {
			return fmt.Errorf("marshal images for task %s: %w", id, err)
		}

		t.Images = images
		t.UpdatedAt = time.Now()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, taskKey(id),
				"images", encoded,
				"updated_at", t.UpdatedAt.UnixNano(),
			)
			return nil
		})
		if err != nil {
			return err
		}

		updated = t
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	return updated, nil
}

func (s *Store) withTx(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := s.rdb.Watch(ctx, fn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %s: %w", key, redis.TxFailedErr)
}

func taskFromHash(id string, res map[string]string) domain.Task {
	t := domain.Task{
		ID:          id,
		Title:       res["title"],
		Description: res["description"],
		Status:      domain.TaskStatus(res["status"]),
		Images:      []domain.ImageAttachment{},
	}
	if t.Status == "" {
		t.Status = domain.StatusActive
	}

	if v := res["images"]; v != "" {
		if images, err := decodeImages(v); err == nil && images != nil {
			t.Images = images
		}
	}

	if v := res["created_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.CreatedAt = time.Unix(0, n)
		}
	}
	if v := res["updated_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			t.UpdatedAt = time.Unix(0, n)
		}
	}

	return t
}

// storedImage is the persisted shape of an attachment. The signed download
// URL is derived on every read and deliberately has no field here.
type storedImage struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func encodeImages(images []domain.ImageAttachment) (string, error) {
	stored := make([]storedImage, 0, len(images))
	for _, img := range images {
		stored = append(stored, storedImage{
			ID:          img.ID,
			Key:         img.Key,
			Filename:    img.Filename,
			Size:        img.Size,
			ContentType: img.ContentType,
			UploadedAt:  img.UploadedAt,
		})
	}

	b, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeImages(raw string) ([]domain.ImageAttachment, error) {
	var stored []storedImage
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}

	images := make([]domain.ImageAttachment, 0, len(stored))
	for _, img := range stored {
		images = append(images, domain.ImageAttachment{
			ID:          img.ID,
			Key:         img.Key,
			Filename:    img.Filename,
			Size:        img.Size,
			ContentType: img.ContentType,
			UploadedAt:  img.UploadedAt,
		})
	}
	return images, nil
}

func taskKey(id string) string {
	return "task:" + id
}

func tasksByCreatedKey() string {
	return "tasks:by_created"
}
