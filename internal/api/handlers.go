package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"life.tape/config"
	"life.tape/internal/audio"
	"life.tape/internal/crypto"
	"life.tape/internal/logging"
	"life.tape/internal/models"
	"life.tape/internal/store"
)

// AudioStorage presigns recording uploads and downloads. Nil disables the
// audio endpoints.
type AudioStorage interface {
	NewUpload(ctx context.Context, ext string) (*audio.Upload, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

type Handler struct {
	store  store.Store
	audio  AudioStorage
	config *config.Config
	log    logging.Logger
	now    func() time.Time
}

func NewHandler(s store.Store, a AudioStorage, cfg *config.Config, log logging.Logger) *Handler {
	return &Handler{
		store:  s,
		audio:  a,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

type PutStateRequest struct {
	Value json.RawMessage `json:"value"`
}

type AudioUploadRequest struct {
	Ext string `json:"ext,omitempty"`
}

type AudioURLResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// app_state

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetState(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, rec)
}

func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	var req PutStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Value) == 0 || !json.Valid(req.Value) {
		h.error(w, http.StatusBadRequest, "value is required")
		return
	}

	rec := &models.StateRecord{
		Key:       chi.URLParam(r, "key"),
		Value:     req.Value,
		UpdatedAt: h.now().UTC(),
	}
	if err := h.store.UpsertState(r.Context(), rec); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteState(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteState(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// entries

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEntryFilter(r)
	if err != nil {
		h.error(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.store.ListEntries(r.Context(), filter)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, entries)
}

func parseEntryFilter(r *http.Request) (models.EntryFilter, error) {
	q := r.URL.Query()
	filter := models.EntryFilter{
		Tag:    q.Get("tag"),
		Search: q.Get("q"),
	}

	if v := q.Get("darkSide"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("darkSide must be true or false")
		}
		filter.DarkSide = &b
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "desc", "newest":
	case "asc", "oldest":
		filter.Ascending = true
	default:
		return filter, errors.New("order must be asc or desc")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	return filter, nil
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var e models.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	if e.ID == "" {
		e.ID = crypto.GenerateEntryID(now)
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = now.UnixMilli()
	}
	if e.Duration < 0 {
		h.error(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	if err := h.store.InsertEntry(r.Context(), &e); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	h.json(w, http.StatusCreated, e)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, e)
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var patch models.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Empty() {
		h.error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	e, err := h.store.UpdateEntry(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, e)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// audio

func (h *Handler) CreateAudioUpload(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		h.error(w, http.StatusServiceUnavailable, "audio storage is not configured")
		return
	}

	var req AudioUploadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	up, err := h.audio.NewUpload(r.Context(), req.Ext)
	if err != nil {
		h.log.Error(r.Context(), "presign upload failed", "error", err)
		h.error(w, http.StatusBadGateway, "could not presign upload")
		return
	}
	h.json(w, http.StatusCreated, up)
}

func (h *Handler) AudioURL(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		h.error(w, http.StatusServiceUnavailable, "audio storage is not configured")
		return
	}

	url, err := h.audio.DownloadURL(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		if errors.Is(err, audio.ErrInvalidURI) {
			h.error(w, http.StatusBadRequest, "invalid key")
			return
		}
		h.log.Error(r.Context(), "presign download failed", "error", err)
		h.error(w, http.StatusBadGateway, "could not presign download")
		return
	}
	h.json(w, http.StatusOK, AudioURLResponse{URL: url})
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.error(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		h.error(w, http.StatusConflict, "entry already exists")
	case errors.Is(err, store.ErrInvalid):
		h.error(w, http.StatusBadRequest, "invalid key or id")
	default:
		h.log.Error(r.Context(), "store error", "error", err, "path", r.URL.Path)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
