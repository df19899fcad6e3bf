package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhikangxie107/transcribe/internal/auth"
	"github.com/zhikangxie107/transcribe/internal/recognizer"
	"github.com/zhikangxie107/transcribe/internal/transcript"
)

type TranscriptHandler struct {
	svc *transcript.Service
}

func NewTranscriptHandler(svc *transcript.Service) *TranscriptHandler {
	return &TranscriptHandler{svc: svc}
}

type createTranscriptRequest struct {
	Text     string            `json:"text"`
	Words    []transcript.Word `json:"words"`
	Filename *string           `json:"filename"`
}

type updateTranscriptRequest struct {
	Text     *string            `json:"text"`
	Words    *[]transcript.Word `json:"words"`
	Filename *string            `json:"filename"`
}

func (h *TranscriptHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req createTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.svc.Create(r.Context(), owner, transcript.CreateFields{
		Text:     req.Text,
		Words:    req.Words,
		Filename: req.Filename,
	})
	if err != nil {
		writeTranscriptError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TranscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	transcripts, err := h.svc.List(r.Context(), owner)
	if err != nil {
		writeTranscriptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcripts)
}

func (h *TranscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := transcriptID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), id, owner)
	if err != nil {
		writeTranscriptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TranscriptHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := transcriptID(w, r)
	if !ok {
		return
	}

	var req updateTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.svc.Update(r.Context(), id, owner, transcript.UpdateFields{
		Text:     req.Text,
		Words:    req.Words,
		Filename: req.Filename,
	})
	if err != nil {
		writeTranscriptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TranscriptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	id, ok := transcriptID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, owner); err != nil {
		writeTranscriptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Transcribe accepts a multipart upload and either creates a transcript or,
// when transcript_id is supplied, overwrites an existing one.
func (h *TranscriptHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil { // 64MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "audio file required"})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read upload"})
		return
	}

	req := transcript.RecognitionRequest{
		Audio:       audio,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Language:    r.FormValue("language"),
	}

	if tid := r.FormValue("transcript_id"); tid != "" {
		id, err := uuid.Parse(tid)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transcript_id"})
			return
		}
		req.TargetID = &id
	}

	t, err := h.svc.Transcribe(r.Context(), owner, req)
	if err != nil {
		writeTranscriptError(w, err)
		return
	}

	status := http.StatusCreated
	if req.TargetID != nil {
		status = http.StatusOK
	}
	writeJSON(w, status, t)
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := auth.OwnerFromContext(r.Context())
	if owner == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authenticated owner"})
		return "", false
	}
	return owner, true
}

func transcriptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transcript ID"})
		return uuid.Nil, false
	}
	return id, true
}

func writeTranscriptError(w http.ResponseWriter, err error) {
	var decodeErr *recognizer.DecodeError
	var inferErr *recognizer.InferenceError

	switch {
	case errors.Is(err, transcript.ErrEmptyAudio):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty audio upload"})
	case errors.Is(err, transcript.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcript not found"})
	case errors.As(err, &decodeErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "could not decode audio"})
	case errors.As(err, &inferErr):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription failed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
