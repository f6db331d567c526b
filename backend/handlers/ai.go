// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/integration"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
)

// AIHandler fronts the learning-engine endpoints: matchmaking, speech and
// writing evaluation. Every call is delegated; failures map to a 502.
type AIHandler struct {
	ai     *integration.AIClient
	logger *zap.Logger
}

func NewAIHandler(ai *integration.AIClient, logger *zap.Logger) *AIHandler {
	return &AIHandler{ai: ai, logger: logger}
}

type matchResponse struct {
	integration.MatchResult
	CallCreated bool `json:"call_created"`
}

// Match requests a conversation partner. On a successful match the call
// session is registered with the video-call service before responding; a
// failed registration is reported but does not undo the match.
func (h *AIHandler) Match(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		writeError(w, errs.Forbidden("authentication required"))
		return
	}

	var prefs integration.MatchPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, errs.MalformedEvent("invalid match payload"))
		return
	}

	result, err := h.ai.FindMatch(r.Context(), userID, prefs)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := matchResponse{MatchResult: *result}
	if result.Matched {
		if err := h.ai.CreateCallSession(r.Context(), userID, result.PartnerID); err != nil {
			h.logger.Error("call session create failed",
				zap.String("user_id", userID),
				zap.String("partner_id", result.PartnerID),
				zap.Error(err))
		} else {
			resp.CallCreated = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type speechRequest struct {
	Audio               []byte `json:"audio"`
	Language            string `json:"language"`
	ReferenceTranscript string `json:"reference_transcript"`
}

// EvaluateSpeech scores one utterance in a single round trip.
func (h *AIHandler) EvaluateSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.MalformedEvent("invalid speech payload"))
		return
	}
	if len(req.Audio) == 0 {
		writeError(w, errs.MalformedEvent("audio is required"))
		return
	}

	eval, err := h.ai.EvaluateSpeech(r.Context(), req.Audio, req.Language, req.ReferenceTranscript)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// EvaluateSpeechStream relays incremental evaluation results as
// line-delimited JSON. Client disconnect cancels the upstream stream via
// the request context.
func (h *AIHandler) EvaluateSpeechStream(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.MalformedEvent("invalid speech payload"))
		return
	}
	if len(req.Audio) == 0 {
		writeError(w, errs.MalformedEvent("audio is required"))
		return
	}

	partials, err := h.ai.EvaluateSpeechStream(r.Context(), req.Audio, req.Language, req.ReferenceTranscript)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for partial := range partials {
		if err := enc.Encode(partial); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

type writingRequest struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt"`
	Image  []byte `json:"image,omitempty"`
}

// EvaluateWriting scores a written exercise, optionally with a photographed
// handwriting image.
func (h *AIHandler) EvaluateWriting(w http.ResponseWriter, r *http.Request) {
	var req writingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.MalformedEvent("invalid writing payload"))
		return
	}
	if req.Text == "" && len(req.Image) == 0 {
		writeError(w, errs.MalformedEvent("text or image is required"))
		return
	}

	eval, err := h.ai.EvaluateWriting(r.Context(), req.Text, req.Prompt, req.Image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}
