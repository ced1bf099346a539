package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ItshMoh/ExamPrepAgent/pkg/agent"
	"github.com/ItshMoh/ExamPrepAgent/pkg/store"
	"github.com/ItshMoh/ExamPrepAgent/pkg/transcribe"
	"github.com/ItshMoh/ExamPrepAgent/pkg/tts"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	userID, err := s.directory.CreateUser(r.Context(), req.Name)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		SessionName string `json:"session_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sessionID, err := s.directory.CreateSession(r.Context(), req.UserID, req.SessionName)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sessions, err := s.directory.ListSessions(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	err := s.directory.DeleteSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete session")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	response, err := s.chat.ProcessMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("Message processing failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"response":  response,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleChatAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxAudioBytes)

	if err := r.ParseMultipartForm(s.options.MaxAudioBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	sessionID := r.FormValue("session_id")
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	language := r.FormValue("language")

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audio upload")
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "audio_upload.webm"
	}

	result := s.chat.ProcessAudioMessage(r.Context(), sessionID, audio, filename, language)

	// A spoken reply is attached when synthesis is available; a synthesis
	// failure never fails the exchange.
	resp := audioChatResponse{AudioResult: result}
	if s.speech != nil && s.speech.Configured() && result.Success && result.Response != "" {
		synth := s.speech.Synthesize(r.Context(), result.Response, false)
		if synth.Success {
			resp.TTSAudio = synth.AudioBase64
			resp.TTSFormat = synth.Format
		} else {
			s.logger.Warn().Str("error", synth.Error).Msg("Speech synthesis for reply failed")
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// audioChatResponse is the audio exchange result, optionally enriched
// with a synthesized spoken reply.
type audioChatResponse struct {
	agent.AudioResult
	TTSAudio  string `json:"tts_audio,omitempty"`
	TTSFormat string `json:"tts_format,omitempty"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Slow     bool   `json:"slow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if s.speech == nil {
		writeError(w, http.StatusInternalServerError, "speech synthesis is not configured")
		return
	}

	result := s.speech.Synthesize(r.Context(), req.Text, req.Slow)
	if !result.Success {
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"audio_data": result.AudioBase64,
		"format":     result.Format,
		"language":   result.Language,
	})
}

func (s *Server) handleTTSSupport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supported":        s.speech != nil && s.speech.Configured(),
		"languages":        tts.SupportedLanguages(),
		"default_language": "en",
	})
}

func (s *Server) handleAudioSupport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supported":         true,
		"max_file_size_mb":  s.options.MaxAudioBytes >> 20,
		"supported_formats": transcribe.SupportedFormats(),
	})
}
