// Package ai holds the chat-completion clients used for summarization and
// quiz question generation. Model replies are treated as untrusted text:
// JSON is parsed with validation and repaired with exactly one bounded
// re-prompt.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
)

// Completer is a single-turn prompt/response chat model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAI calls the chat completions endpoint.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewOpenAI creates an OpenAI chat client. baseURL empty means the public
// endpoint; model empty means gpt-4o-mini.
func NewOpenAI(apiKey, baseURL, model string, logger *zap.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a single-turn prompt and returns the reply text.
func (c *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeNetwork, "chat request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeNetwork, "read chat response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusFault(resp.StatusCode, raw, "chat api")
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", faults.New(faults.TypeExternalAPI, "chat api returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// statusFault tags a non-200 response with the fault type implied by the
// status code.
func statusFault(status int, body []byte, api string) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	var t faults.Type
	switch {
	case status == http.StatusTooManyRequests:
		t = faults.TypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = faults.TypeAuthentication
	case status >= 500:
		t = faults.TypeExternalAPI
	default:
		t = faults.TypeValidation
	}
	return faults.Newf(t, "%s status %d: %s", api, status, message)
}
