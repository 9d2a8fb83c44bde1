package taskstore

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/you-humble/taskboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskFromHash(t *testing.T) {
	created := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	task := taskFromHash("t-1", map[string]string{
		"title":       "Buy milk",
		"description": "two cartons",
		"status":      "completed",
		"images":      `[{"id":"img-1","key":"tasks/t-1/img-1-a.png","filename":"a.png","size":6,"contentType":"image/png","uploadedAt":"2026-05-04T12:30:00Z"}]`,
		"created_at":  strconv.FormatInt(created.UnixNano(), 10),
		"updated_at":  strconv.FormatInt(updated.UnixNano(), 10),
	})

	assert.Equal(t, "t-1", task.ID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	assert.True(t, task.CreatedAt.Equal(created))
	assert.True(t, task.UpdatedAt.Equal(updated))

	require.Len(t, task.Images, 1)
	assert.Equal(t, "img-1", task.Images[0].ID)
	assert.Equal(t, "tasks/t-1/img-1-a.png", task.Images[0].Key)
	assert.Nil(t, task.Images[0].DownloadURL)
}

func TestTaskFromHashDefaults(t *testing.T) {
	task := taskFromHash("t-1", map[string]string{"title": "Buy milk"})

	assert.Equal(t, domain.StatusActive, task.Status)
	assert.NotNil(t, task.Images)
	assert.Empty(t, task.Images)
	assert.True(t, task.CreatedAt.IsZero())
}

func TestEncodeImagesStripsDownloadURL(t *testing.T) {
	url := "https://signed.example/k"
	encoded, err := encodeImages([]domain.ImageAttachment{{
		ID:          "img-1",
		Key:         "tasks/t-1/img-1-a.png",
		Filename:    "a.png",
		Size:        6,
		ContentType: "image/png",
		UploadedAt:  time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC),
		DownloadURL: &url,
	}})
	require.NoError(t, err)
	assert.False(t, strings.Contains(encoded, "downloadUrl"), "signed URLs are never persisted")
	assert.False(t, strings.Contains(encoded, "signed.example"))

	decoded, err := decodeImages(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "img-1", decoded[0].ID)
	assert.Nil(t, decoded[0].DownloadURL)
}

func TestEncodeImagesEmpty(t *testing.T) {
	encoded, err := encodeImages(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)
}
