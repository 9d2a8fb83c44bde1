package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/you-humble/taskboard/internal/domain"
	"github.com/you-humble/taskboard/internal/usecase"

	"github.com/google/uuid"
)

type Usecase interface {
	CreateTask(ctx context.Context, in usecase.CreateTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, in usecase.UpdateTaskInput) (domain.Task, error)
	Tasks(ctx context.Context) ([]domain.Task, error)
	TaskImages(ctx context.Context, id string) ([]domain.ImageAttachment, error)
	AttachImage(ctx context.Context, taskID, filename, contentType string, reader io.Reader, size int64) (domain.Task, error)
	DetachImage(ctx context.Context, taskID, imageID string) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ImageDownloadURL(ctx context.Context, taskID, imageID string) (string, error)
	Metrics(ctx context.Context) (domain.Metrics, error)
}

type handler struct {
	maxUploadBytes int64
	usecase        Usecase
}

func NewHandler(maxUploadMb int64, uc Usecase) *handler {
	return &handler{
		maxUploadBytes: maxUploadMb << 20,
		usecase:        uc,
	}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "listTasks")

	tasks, err := h.usecase.Tasks(r.Context())
	if err != nil {
		respondError(logger, w, err, "unable to fetch tasks")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

type taskPayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "createTask")

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON.")
		return
	}

	task, err := h.usecase.CreateTask(r.Context(), usecase.CreateTaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
	})
	if err != nil {
		respondError(logger, w, err, "unable to create task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "updateTask")

	var payload taskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON.")
		return
	}

	task, err := h.usecase.UpdateTask(r.Context(), r.PathValue("id"), usecase.UpdateTaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
	})
	if err != nil {
		respondError(logger, w, err, "unable to update task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "deleteTask")

	if err := h.usecase.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		respondError(logger, w, err, "unable to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) attachImage(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "attachImage")

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		logger.Error("ParseMultipartForm", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unable to parse multipart form.")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		logger.Warn("missing image field")
		writeError(w, http.StatusBadRequest, "no image file received.")
		return
	}
	defer file.Close()

	task, err := h.usecase.AttachImage(
		r.Context(),
		r.PathValue("id"),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		header.Size,
	)
	if err != nil {
		respondError(logger, w, err, "unable to attach image to task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *handler) listImages(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "listImages")

	images, err := h.usecase.TaskImages(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(logger, w, err, "unable to fetch images")
		return
	}

	writeJSON(w, http.StatusOK, images)
}

func (h *handler) downloadImage(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "downloadImage")

	url, err := h.usecase.ImageDownloadURL(r.Context(), r.PathValue("id"), r.PathValue("imageID"))
	if err != nil {
		respondError(logger, w, err, "unable to generate download link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *handler) detachImage(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "detachImage")

	task, err := h.usecase.DetachImage(r.Context(), r.PathValue("id"), r.PathValue("imageID"))
	if err != nil {
		respondError(logger, w, err, "unable to remove image")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, "metrics")

	m, err := h.usecase.Metrics(r.Context())
	if err != nil {
		respondError(logger, w, err, "unable to compute metrics")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func requestLogger(r *http.Request, handlerName string) *slog.Logger {
	return slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("handler", handlerName),
		slog.String("remote_addr", r.RemoteAddr),
	)
}

// respondError maps service errors to HTTP responses. Unexpected errors are
// logged with detail but surface only the fallback message.
func respondError(logger *slog.Logger, w http.ResponseWriter, err error, fallback string) {
	var vErr *domain.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found.")
	case errors.Is(err, domain.ErrImageNotFound):
		writeError(w, http.StatusNotFound, "image not found for this task.")
	case errors.Is(err, domain.ErrBlobStoreNotReady):
		writeError(w, http.StatusInternalServerError, "blob storage is unavailable. Check the storage configuration.")
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fallback+".")
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}
