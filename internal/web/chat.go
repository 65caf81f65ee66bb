package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/pipeline"
)

const (
	maxBodyBytes      = 64 << 10
	errNoMessage      = "No message provided"
	errSynthesisFails = "Failed to synthesize speech"
)

// ChatRequest is the body of POST /chat and each websocket frame from the page.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the reply text and its MP3 audio, base64 encoded.
type ChatResponse struct {
	Response string `json:"response"`
	Audio    string `json:"audio"`
	Status   string `json:"status,omitempty"`
}

// ErrorResponse is returned for rejected or failed turns.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.logger.Debug().Err(err).Msg("Rejecting malformed chat request")
		writeError(w, http.StatusBadRequest, errNoMessage)
		return
	}

	resp, code := s.turn(r.Context(), "web", req.Message)
	if code != http.StatusOK {
		writeJSON(w, code, ErrorResponse{Error: resp.Response})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// turn runs one utterance through the pipeline. A non-200 code means the
// response's Response field holds the error message.
func (s *Server) turn(ctx context.Context, surface, message string) (ChatResponse, int) {
	if message == "" {
		return ChatResponse{Response: errNoMessage}, http.StatusBadRequest
	}

	metrics := observability.NewTurnMetrics(surface)
	reply, err := s.processor.Process(ctx, message)
	switch {
	case errors.Is(err, pipeline.ErrEmptyUtterance):
		metrics.RecordTurnEnd("rejected")
		return ChatResponse{Response: errNoMessage}, http.StatusBadRequest
	case err != nil:
		metrics.RecordTurnEnd("error")
		observability.RecordError("synthesis", surface)
		s.logger.Error().Err(err).Str("surface", surface).Msg("Chat turn failed")
		return ChatResponse{Response: errSynthesisFails}, http.StatusInternalServerError
	}
	metrics.RecordTurnEnd(string(reply.Status))

	return ChatResponse{
		Response: reply.Text,
		Audio:    base64.StdEncoding.EncodeToString(reply.Audio.Audio),
		Status:   string(reply.Status),
	}, http.StatusOK
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
