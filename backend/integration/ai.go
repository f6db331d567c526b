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

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

// AIClient calls the external AI service over JSON/HTTP. Every unary call
// carries a bounded timeout; the streaming call lives until the caller's
// context is cancelled. Failures surface as AI_PROCESSING_FAILED and never
// block persistence of the user's own message.
type AIClient struct {
	baseURL string
	callURL string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the endpoints of the AI service and the video-call
// collaborator.
type Config struct {
	BaseURL     string
	CallBaseURL string
	Timeout     time.Duration
}

func NewAIClient(cfg Config, logger *zap.Logger) *AIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callURL := cfg.CallBaseURL
	if callURL == "" {
		callURL = cfg.BaseURL
	}
	return &AIClient{
		baseURL: cfg.BaseURL,
		callURL: callURL,
		timeout: timeout,
		// No client-level timeout: streaming responses outlive any fixed
		// deadline, unary calls bound themselves via context.
		http:   &http.Client{},
		logger: logger,
	}
}

type MatchPreferences struct {
	Language    string `json:"language"`
	Level       string `json:"level,omitempty"`
	TopicHint   string `json:"topic_hint,omitempty"`
	MaxWaitSecs int    `json:"max_wait_secs,omitempty"`
}

type MatchResult struct {
	Matched   bool   `json:"matched"`
	PartnerID string `json:"partner_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// SpeechPartial is one incremental result of a streaming speech evaluation.
type SpeechPartial struct {
	Transcript string  `json:"transcript,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Feedback   string  `json:"feedback,omitempty"`
	Final      bool    `json:"final"`
}

// FindMatch asks the matchmaking engine for a partner. Creating the video
// call session for a successful match is the caller's side effect, via
// CreateCallSession.
func (c *AIClient) FindMatch(ctx context.Context, userID string, prefs MatchPreferences) (*MatchResult, error) {
	body := struct {
		UserID string           `json:"user_id"`
		Prefs  MatchPreferences `json:"preferences"`
	}{UserID: userID, Prefs: prefs}

	var result MatchResult
	if err := c.post(ctx, "/v1/match", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateCallSession registers a one-to-one call with the video-call
// collaborator after a successful match.
func (c *AIClient) CreateCallSession(ctx context.Context, userID, partnerID string) error {
	body := struct {
		CallerID string `json:"caller_id"`
		CalleeID string `json:"callee_id"`
	}{CallerID: userID, CalleeID: partnerID}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return errs.AIProcessingFailed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.callURL+"/v1/calls", bytes.NewReader(payload))
	if err != nil {
		return errs.AIProcessingFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.AIProcessingFailed(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.AIProcessingFailed(fmt.Errorf("call service returned %d", resp.StatusCode))
	}
	return nil
}

// EvaluateSpeech scores a recorded utterance against a reference transcript.
func (c *AIClient) EvaluateSpeech(ctx context.Context, audio []byte, languageCode, referenceTranscript string) (*Evaluation, error) {
	body := struct {
		Audio      []byte `json:"audio"`
		Language   string `json:"language"`
		Transcript string `json:"reference_transcript"`
	}{Audio: audio, Language: languageCode, Transcript: referenceTranscript}

	var eval Evaluation
	if err := c.post(ctx, "/v1/speech/evaluate", body, &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

// EvaluateSpeechStream emits incremental partial results on the returned
// channel, closing it on the final result, upstream EOF, or error.
// Cancelling ctx aborts the outbound request and releases the stream.
func (c *AIClient) EvaluateSpeechStream(ctx context.Context, audio []byte, languageCode, referenceTranscript string) (<-chan SpeechPartial, error) {
	body := struct {
		Audio      []byte `json:"audio"`
		Language   string `json:"language"`
		Transcript string `json:"reference_transcript"`
	}{Audio: audio, Language: languageCode, Transcript: referenceTranscript}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errs.AIProcessingFailed(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.AIProcessingFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.AIProcessingFailed(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errs.AIProcessingFailed(fmt.Errorf("ai service returned %d", resp.StatusCode))
	}

	out := make(chan SpeechPartial)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		// Line-delimited JSON partials until EOF or cancellation.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var partial SpeechPartial
			if err := json.Unmarshal(scanner.Bytes(), &partial); err != nil {
				c.logger.Warn("skipping malformed stream partial", zap.Error(err))
				continue
			}
			select {
			case out <- partial:
			case <-ctx.Done():
				return
			}
			if partial.Final {
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("speech stream ended abnormally", zap.Error(err))
		}
	}()
	return out, nil
}

// EvaluateWriting scores a written answer; the optional image carries a
// photographed handwriting sample.
func (c *AIClient) EvaluateWriting(ctx context.Context, text, prompt string, image []byte) (*Evaluation, error) {
	body := struct {
		Text   string `json:"text"`
		Prompt string `json:"prompt"`
		Image  []byte `json:"image,omitempty"`
	}{Text: text, Prompt: prompt, Image: image}

	var eval Evaluation
	if err := c.post(ctx, "/v1/writing/evaluate", body, &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

// GenerateChatReply produces the assistant half of an AI_CHAT turn.
func (c *AIClient) GenerateChatReply(ctx context.Context, history []*models.ChatMessage, prompt string) (string, error) {
	type turn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	turns := make([]turn, 0, len(history))
	// History arrives newest-first; the service expects oldest-first.
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		role := "user"
		if msg.SenderID == nil {
			role = "assistant"
		}
		turns = append(turns, turn{Role: role, Content: msg.Content})
	}

	body := struct {
		History []turn `json:"history"`
		Prompt  string `json:"prompt"`
	}{History: turns, Prompt: prompt}

	var result struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/v1/chat/reply", body, &result); err != nil {
		return "", err
	}
	return result.Reply, nil
}

func (c *AIClient) post(ctx context.Context, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return errs.AIProcessingFailed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errs.AIProcessingFailed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.AIProcessingFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.AIProcessingFailed(fmt.Errorf("ai service returned %d: %s", resp.StatusCode, snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.AIProcessingFailed(err)
	}
	return nil
}
