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

// Gemini calls the Google generative language REST API. It implements
// Completer so summarization can run on either provider.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewGemini creates a Gemini client. model empty means gemini-1.5-flash.
func NewGemini(apiKey, baseURL, model string, logger *zap.Logger) *Gemini {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete sends a single-turn prompt. The system prompt is prepended to the
// user turn since the REST API has no dedicated system role for single turns.
func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	prompt := user
	if system != "" {
		prompt = system + "\n\n" + user
	}
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeNetwork, "gemini request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", faults.Wrap(err, faults.TypeNetwork, "read gemini response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusFault(resp.StatusCode, raw, "gemini api")
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", faults.New(faults.TypeExternalAPI, "gemini api returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
