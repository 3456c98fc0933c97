package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visionid/visionid/internal/constants"
	"github.com/visionid/visionid/internal/database"
	"github.com/visionid/visionid/internal/detector"
	"github.com/visionid/visionid/internal/embedding"
	"github.com/visionid/visionid/internal/enroll"
	"github.com/visionid/visionid/internal/gallery"
)

// EnrollService is the slice of the enrollment service the handler needs.
type EnrollService interface {
	Enroll(ctx context.Context, name string, imageData []byte, imagePath, metadata string) (*database.Identity, bool, error)
	EnrollVector(ctx context.Context, name string, vec []float32, imagePath, metadata string) (*database.Identity, bool, error)
	Update(ctx context.Context, id, name, metadata string) (*database.Identity, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// RegisterHandler serves identity registration and management endpoints.
type RegisterHandler struct {
	enroll     EnrollService
	identities database.IdentityReader
	lookalike  *gallery.LookalikeIndex
}

// NewRegisterHandler creates a registration handler. lookalike may be nil,
// which disables the similar-identities endpoint.
func NewRegisterHandler(enrollService EnrollService, identities database.IdentityReader, lookalike *gallery.LookalikeIndex) *RegisterHandler {
	return &RegisterHandler{
		enroll:     enrollService,
		identities: identities,
		lookalike:  lookalike,
	}
}

// identityItem is an identity in an API response. Embeddings never leave the
// server through this surface.
type identityItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dim       int       `json:"dim"`
	ImagePath string    `json:"image_path,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toIdentityItem(identity *database.Identity) identityItem {
	return identityItem{
		ID:        identity.ID,
		Name:      identity.Name,
		Dim:       identity.Dim,
		ImagePath: identity.ImagePath,
		Metadata:  identity.Metadata,
		CreatedAt: identity.CreatedAt,
		UpdatedAt: identity.UpdatedAt,
	}
}

// Register handles POST /register. Expects a multipart form with "name",
// optional "metadata" and either a single-face "file" image or a raw
// "embedding" (base64 little-endian float32 bytes). Registering an existing
// name replaces its embedding and returns 200 instead of 201.
func (h *RegisterHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	name := r.FormValue("name")
	metadata := r.FormValue("metadata")

	var (
		identity *database.Identity
		replaced bool
		err      error
	)
	if raw := r.FormValue("embedding"); raw != "" {
		vec, decErr := decodeEmbeddingField(raw)
		if decErr != nil {
			respondError(w, http.StatusBadRequest, "embedding must be base64-encoded little-endian float32 bytes")
			return
		}
		identity, replaced, err = h.enroll.EnrollVector(r.Context(), name, vec, "", metadata)
	} else {
		imageData, fileErr := readFormFile(r, "file")
		if fileErr != nil {
			respondError(w, http.StatusBadRequest, "either a file upload or an embedding is required")
			return
		}
		identity, replaced, err = h.enroll.Enroll(r.Context(), name, imageData, "", metadata)
	}
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrEmptyName):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, enroll.ErrBadEmbedding):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, detector.ErrNoFace), errors.Is(err, detector.ErrMultipleFaces):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("enrollment of %q failed: %v", sanitizeForLog(name), err)
			respondError(w, http.StatusBadGateway, "enrollment failed")
		}
		return
	}

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]any{
		"identity": toIdentityItem(identity),
		"replaced": replaced,
	})
}

// decodeEmbeddingField turns a base64 form value into a vector.
func decodeEmbeddingField(raw string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return embedding.Decode(data)
}

// updateRequest is the body of an identity update.
type updateRequest struct {
	Name     string `json:"name,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// Update handles PUT /register/identities/{id}. Changes name and/or metadata;
// the stored embedding is replaced only through re-registration.
func (h *RegisterHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Name) == "" && req.Metadata == "" {
		respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	identity, err := h.enroll.Update(r.Context(), id, req.Name, req.Metadata)
	if err != nil {
		if errors.Is(err, enroll.ErrNameTaken) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("failed to update identity %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to update identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityItem(identity))
}

// List handles GET /register/identities with limit/offset pagination.
func (h *RegisterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", constants.DefaultHistoryLimit)
	offset := queryInt(r, "offset", 0)

	identities, err := h.identities.List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("failed to list identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}
	total, err := h.identities.Count(r.Context())
	if err != nil {
		log.Printf("failed to count identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	items := make([]identityItem, len(identities))
	for i := range identities {
		items[i] = toIdentityItem(&identities[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":      total,
		"identities": items,
	})
}

// Get handles GET /register/identities/{id}.
func (h *RegisterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	identity, err := h.identities.Get(r.Context(), id)
	if err != nil {
		log.Printf("failed to load identity %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityItem(identity))
}

// Delete handles DELETE /register/identities/{id}.
func (h *RegisterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.enroll.Delete(r.Context(), id)
	if err != nil {
		log.Printf("failed to delete identity %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to delete identity")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Similar handles GET /register/identities/{id}/similar. Returns the closest
// other identities by approximate search; purely diagnostic.
func (h *RegisterHandler) Similar(w http.ResponseWriter, r *http.Request) {
	if h.lookalike == nil {
		respondError(w, http.StatusNotFound, "similarity index not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	k := queryInt(r, "k", constants.DefaultTopK)

	identity, err := h.identities.Get(r.Context(), id)
	if err != nil {
		log.Printf("failed to load identity %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}

	// Ask for one extra neighbor since the identity matches itself.
	neighbors := h.lookalike.Neighbors(identity.Embedding, k+1)
	similar := make([]gallery.Match, 0, k)
	for _, n := range neighbors {
		if n.IdentityID == id {
			continue
		}
		similar = append(similar, n)
		if len(similar) == k {
			break
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": id,
		"similar":     similar,
	})
}
