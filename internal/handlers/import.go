// internal/handlers/import.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/posflow/pos-be/internal/adapters/storage"
	"github.com/posflow/pos-be/internal/workers"
)

// ImportHandler receives supplier delivery notes. The PDF is parked in
// object storage and a worker parses it into stock batches.
type ImportHandler struct {
	storage     storage.StorageClient
	asynqClient *asynq.Client
	logger      *slog.Logger
	maxFileSize int64
}

// NewImportHandler creates a new import handler
func NewImportHandler(storageClient storage.StorageClient, asynqClient *asynq.Client, logger *slog.Logger, maxFileSize int64) *ImportHandler {
	return &ImportHandler{
		storage:     storageClient,
		asynqClient: asynqClient,
		logger:      logger.With(slog.String("handler", "import")),
		maxFileSize: maxFileSize,
	}
}

// ImportDeliveryNote handles POST /api/v1/import/delivery-note
func (h *ImportHandler) ImportDeliveryNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		h.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		h.respondError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}

	supplier := r.FormValue("supplier")
	if supplier == "" {
		h.respondError(w, http.StatusBadRequest, "supplier is required")
		return
	}

	jobID := uuid.New()
	key := fmt.Sprintf("%s/%s_%s", storage.PrefixDeliveryNotes, jobID, header.Filename)

	if _, err := h.storage.Upload(ctx, key, file, "application/pdf"); err != nil {
		h.logger.ErrorContext(ctx, "failed to store delivery note",
			slog.String("key", key),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	payload := workers.DeliveryNotePayload{
		JobID:      jobID,
		StorageKey: key,
		Supplier:   supplier,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal delivery note payload", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	info, err := h.asynqClient.Enqueue(
		asynq.NewTask(workers.TypeDeliveryNoteProcess, b),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue delivery note task", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	h.logger.InfoContext(ctx, "delivery note import queued",
		slog.String("job_id", jobID.String()),
		slog.String("task_id", info.ID),
		slog.String("supplier", supplier))

	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Delivery note has been queued for processing",
	})
}

// Helper methods

func (h *ImportHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ImportHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
