package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/visionid/visionid/internal/constants"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/recognition"
)

// RecognitionService is the slice of the recognition pipeline the handler needs.
type RecognitionService interface {
	RecognizeImage(ctx context.Context, imageData []byte, opts recognition.Options) (*recognition.ImageResult, error)
	RecognizeBulk(ctx context.Context, images [][]byte, opts recognition.Options) ([]recognition.BulkImageResult, error)
}

// RecognizeHandler serves the recognition endpoints.
type RecognizeHandler struct {
	service RecognitionService
	history database.RecognitionReader
}

// NewRecognizeHandler creates a recognition handler.
func NewRecognizeHandler(service RecognitionService, history database.RecognitionReader) *RecognizeHandler {
	return &RecognizeHandler{service: service, history: history}
}

// matchOptions parses the optional per-request threshold and top_k form
// values. Both are policy knobs with configured defaults.
func matchOptions(r *http.Request) (recognition.Options, error) {
	var opts recognition.Options

	if raw := r.FormValue("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 1 {
			return opts, errors.New("threshold must be a number in (0, 1]")
		}
		opts.Threshold = v
	}
	if raw := r.FormValue("top_k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return opts, errors.New("top_k must be a positive integer")
		}
		opts.TopK = v
	}
	return opts, nil
}

// Recognize handles POST /recognize. Expects a multipart form with a single
// "file" image and optional threshold/top_k overrides; returns one outcome
// per matched face.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	imageData, err := readFormFile(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or unreadable file upload")
		return
	}
	opts, err := matchOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RecognizeImage(r.Context(), imageData, opts)
	if err != nil {
		log.Printf("recognition failed: %v", err)
		respondError(w, http.StatusBadGateway, "recognition failed")
		return
	}

	warnRecordFailures(result.Outcomes)
	respondJSON(w, http.StatusOK, result)
}

// RecognizeBulk handles POST /recognize/bulk. Expects a multipart form with
// up to MaxBulkImages "files" entries; each image is processed independently.
func (h *RecognizeHandler) RecognizeBulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes * constants.MaxBulkImages); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) > constants.MaxBulkImages {
		respondError(w, http.StatusBadRequest, "too many images in one request")
		return
	}
	opts, err := matchOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	images := make([][]byte, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable file upload")
			return
		}
		data, err := readAll(file)
		file.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable file upload")
			return
		}
		images = append(images, data)
	}

	results, err := h.service.RecognizeBulk(r.Context(), images, opts)
	if err != nil {
		log.Printf("bulk recognition failed: %v", err)
		respondError(w, http.StatusBadGateway, "recognition failed")
		return
	}

	for _, res := range results {
		if res.Result != nil {
			warnRecordFailures(res.Result.Outcomes)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"images_count": len(results),
		"results":      results,
	})
}

// historyItem is one recognition attempt in an API response. The stored probe
// embedding stays out of responses; it is audit data, not API data.
type historyItem struct {
	ID           int64     `json:"id"`
	IdentityID   string    `json:"identity_id,omitempty"`
	IdentityName string    `json:"identity_name,omitempty"`
	Score        float64   `json:"score"`
	Matched      bool      `json:"matched"`
	LoggedAt     time.Time `json:"logged_at"`
}

// History handles GET /recognize/history. Supports limit and identity_id
// query parameters.
func (h *RecognizeHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", constants.DefaultHistoryLimit)

	var (
		records []database.RecognitionRecord
		err     error
	)
	if identityID := r.URL.Query().Get("identity_id"); identityID != "" {
		records, err = h.history.HistoryByIdentity(r.Context(), identityID, limit)
	} else {
		records, err = h.history.History(r.Context(), limit)
	}
	if err != nil {
		log.Printf("failed to load recognition history: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	items := make([]historyItem, len(records))
	for i, rec := range records {
		items[i] = historyItem{
			ID:           rec.ID,
			IdentityID:   rec.IdentityID,
			IdentityName: rec.IdentityName,
			Score:        rec.Score,
			Matched:      rec.Matched,
			LoggedAt:     rec.LoggedAt,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(items),
		"history": items,
	})
}

// warnRecordFailures logs persistence failures that did not fail the request.
func warnRecordFailures(outcomes []recognition.Outcome) {
	for i := range outcomes {
		if outcomes[i].RecordError != nil {
			log.Printf("warning: face %d outcome not fully recorded: %v",
				outcomes[i].FaceIndex, outcomes[i].RecordError)
		}
	}
}
