package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visionid/visionid/internal/constants"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/recognition"
)

// AttendanceHandler serves attendance endpoints. Its recognizer is wired with
// an attendance-marking recorder, unlike the plain recognize endpoints which
// only write history.
type AttendanceHandler struct {
	recognizer RecognitionService
	attendance database.AttendanceWriter
	identities database.IdentityReader
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(recognizer RecognitionService, attendance database.AttendanceWriter, identities database.IdentityReader) *AttendanceHandler {
	return &AttendanceHandler{recognizer: recognizer, attendance: attendance, identities: identities}
}

// attendanceItem is one attendance record in an API response.
type attendanceItem struct {
	ID           int64     `json:"id"`
	IdentityID   string    `json:"identity_id"`
	IdentityName string    `json:"identity_name"`
	MarkedAt     time.Time `json:"marked_at"`
	Status       string    `json:"status"`
	Score        float64   `json:"score,omitempty"`
}

func toAttendanceItems(logs []database.AttendanceLog) []attendanceItem {
	items := make([]attendanceItem, len(logs))
	for i, l := range logs {
		items[i] = attendanceItem{
			ID:           l.ID,
			IdentityID:   l.IdentityID,
			IdentityName: l.IdentityName,
			MarkedAt:     l.MarkedAt,
			Status:       l.Status,
			Score:        l.Score,
		}
	}
	return items
}

// Mark handles POST /attendance/mark: recognize the faces in the uploaded
// image and mark attendance for every accepted outcome. Same contract as
// /recognize plus the attendance side effect.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.recognizer.RecognizeImage(r.Context(), imageData, opts)
	if err != nil {
		log.Printf("attendance recognition failed: %v", err)
		respondError(w, http.StatusBadGateway, "recognition failed")
		return
	}

	marked := 0
	for i := range result.Outcomes {
		if result.Outcomes[i].State == recognition.StateAccepted && result.Outcomes[i].RecordError == nil {
			marked++
		}
	}
	warnRecordFailures(result.Outcomes)
	respondJSON(w, http.StatusOK, map[string]any{
		"faces_count":  result.FacesCount,
		"marked_count": marked,
		"outcomes":     result.Outcomes,
	})
}

// markRequest is the body of a manual attendance mark.
type markRequest struct {
	IdentityID string `json:"identity_id"`
	Status     string `json:"status,omitempty"`
}

// ManualMark handles POST /attendance/manual: a mark entered by an operator,
// outside the recognition flow.
func (h *AttendanceHandler) ManualMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.IdentityID == "" {
		respondError(w, http.StatusBadRequest, "identity_id is required")
		return
	}
	if req.Status != "" && req.Status != database.StatusPresent && req.Status != database.StatusLate {
		respondError(w, http.StatusBadRequest, "status must be present or late")
		return
	}

	identity, err := h.identities.Get(r.Context(), req.IdentityID)
	if err != nil {
		log.Printf("failed to load identity %s: %v", sanitizeForLog(req.IdentityID), err)
		respondError(w, http.StatusInternalServerError, "failed to mark attendance")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}

	entry := &database.AttendanceLog{
		IdentityID:   identity.ID,
		IdentityName: identity.Name,
		Status:       req.Status,
	}
	if err := h.attendance.Mark(r.Context(), entry); err != nil {
		log.Printf("failed to mark attendance for %s: %v", sanitizeForLog(req.IdentityID), err)
		respondError(w, http.StatusInternalServerError, "failed to mark attendance")
		return
	}
	respondJSON(w, http.StatusCreated, toAttendanceItems([]database.AttendanceLog{*entry})[0])
}

// Today handles GET /attendance/today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	logs, err := h.attendance.Today(r.Context())
	if err != nil {
		log.Printf("failed to load today's attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	present, err := h.attendance.CountToday(r.Context())
	if err != nil {
		log.Printf("failed to count today's attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"present_count": present,
		"records":       toAttendanceItems(logs),
	})
}

// Report handles GET /attendance/report?start_date=YYYY-MM-DD&end_date=... with
// an optional comma-separated identity_ids filter. The end date is inclusive.
func (h *AttendanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "start_date must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "end_date must be a YYYY-MM-DD date")
		return
	}
	if end.Before(start) {
		respondError(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}
	end = end.Add(24*time.Hour - time.Nanosecond)

	var identityIDs []string
	if raw := r.URL.Query().Get("identity_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				identityIDs = append(identityIDs, id)
			}
		}
	}

	logs, err := h.attendance.Range(r.Context(), start, end, identityIDs)
	if err != nil {
		log.Printf("failed to load attendance report: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(logs),
		"records": toAttendanceItems(logs),
	})
}

// ByIdentity handles GET /attendance/identity/{id}.
func (h *AttendanceHandler) ByIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", constants.DefaultAttendanceLimit)

	logs, err := h.attendance.ByIdentity(r.Context(), id, limit)
	if err != nil {
		log.Printf("failed to load attendance for %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": id,
		"records":     toAttendanceItems(logs),
	})
}

// Statistics handles GET /attendance/statistics.
func (h *AttendanceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	total, err := h.identities.Count(r.Context())
	if err != nil {
		log.Printf("failed to count identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	present, err := h.attendance.CountToday(r.Context())
	if err != nil {
		log.Printf("failed to count today's attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	stats := database.AttendanceStats{
		TotalRegistered: total,
		PresentToday:    present,
	}
	if total > 0 {
		stats.OverallRate = float64(present) / float64(total)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_registered": stats.TotalRegistered,
		"present_today":    stats.PresentToday,
		"attendance_rate":  stats.OverallRate,
	})
}
