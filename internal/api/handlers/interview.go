package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/visaprep/internal/auth"
	"github.com/nikhilbhutani/visaprep/internal/interview"
)

type InterviewHandler struct {
	svc       *interview.Service
	maxUpload int64
}

func NewInterviewHandler(svc *interview.Service, maxUploadBytes int64) *InterviewHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &InterviewHandler{svc: svc, maxUpload: maxUploadBytes}
}

type startRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type emailRequest struct {
	Transcript string `json:"transcript"`
	Analysis   string `json:"analysis"`
	Email      string `json:"email,omitempty"`
}

// Start begins an interview and returns the greeting.
func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	greeting, err := h.svc.Start(r.Context(), auth.SessionIDFromContext(r.Context()), req.Name, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"greeting": greeting})
}

// NextQuestion returns the current question, or a completion message once
// every question has been answered.
func (h *InterviewHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.NextQuestion(r.Context(), auth.SessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if q.Complete {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Interview complete!"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"question": q.Text, "caption": q.Caption})
}

// ProcessVoiceResponse accepts a multipart upload in the "file" field.
func (h *InterviewHandler) ProcessVoiceResponse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		default:
			writeError(w, http.StatusBadRequest, "No audio file provided")
		}
		return
	}
	defer file.Close()

	ans, err := h.svc.SubmitAnswer(r.Context(), auth.SessionIDFromContext(r.Context()), interview.Audio{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"transcription": ans.Transcription,
		"feedback":      ans.Feedback,
	})
}

func (h *InterviewHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Finalize(r.Context(), auth.SessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"transcript": res.Transcript,
		"analysis":   res.Analysis,
		"message":    "Interview completed. Here is the analysis.",
	})
}

func (h *InterviewHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sent, err := h.svc.SendEmail(r.Context(), auth.SessionIDFromContext(r.Context()), req.Transcript, req.Analysis, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !sent {
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transcript and feedback sent via email successfully!"})
}

// QuestionAudio streams the spoken form of the current question.
func (h *InterviewHandler) QuestionAudio(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.QuestionAudio(r.Context(), auth.SessionIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Audio)
}

func (h *InterviewHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context(), auth.SessionIDFromContext(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrSessionMissing):
		writeError(w, http.StatusBadRequest, "No user found in session")
	case errors.Is(err, interview.ErrInputMissing):
		writeError(w, http.StatusBadRequest, "No audio file provided")
	case errors.Is(err, interview.ErrInterviewComplete):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interview.ErrSpeechDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, interview.ErrTranscription), errors.Is(err, interview.ErrGeneration), errors.Is(err, interview.ErrSynthesis):
		slog.Error("upstream call failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
