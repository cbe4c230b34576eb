// Package transcription adapts the Whisper HTTP API: payload validation, MIME
// sanitization, container fallback, and normalization of the three response
// shapes into one result. Browsers produce inconsistent MIME strings and some
// encoders yield containers the remote API rejects; all of that brittleness
// is isolated here.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
)

// Transcription methods recorded on results.
const (
	MethodWhisper          = "whisper"
	MethodWhisperTranslate = "whisper-translate"
	MethodWebSpeech        = "web-speech"
)

// minAudioBytes rejects payloads that are almost certainly silence or a
// truncated recording.
const minAudioBytes = 2048

// defaultMaxAudioBytes matches the Whisper API upload limit.
const defaultMaxAudioBytes = 25 * 1024 * 1024

// Segment is one timed transcript span from a verbose response.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Word is one word-level timing from a verbose response.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the single normalized transcription shape.
type Result struct {
	Text       string    `json:"text"`
	Method     string    `json:"method"`
	Confidence *float64  `json:"confidence,omitempty"`
	Language   string    `json:"language,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	Words      []Word    `json:"words,omitempty"`
}

// Config selects model and response handling for one call.
type Config struct {
	Model          string // e.g. whisper-1
	Language       string // optional hint
	ResponseFormat string // text | json | verbose_json
	Prompt         string // optional context prompt
}

// AudioConverter re-encodes audio to the canonical WAV container.
// Satisfied by media.FFmpeg.
type AudioConverter interface {
	ConvertToWAV(ctx context.Context, inPath, outPath string) error
}

// Client calls the Whisper transcription and translation endpoints.
type Client struct {
	apiKey    string
	baseURL   string
	http      *http.Client
	converter AudioConverter
	maxBytes  int64
	tempDir   string
	logger    *zap.Logger
}

// NewClient creates a Whisper client. baseURL empty means the public OpenAI
// endpoint; maxBytes <= 0 means the API default of 25MB.
func NewClient(apiKey, baseURL string, converter AudioConverter, maxBytes int64, tempDir string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxAudioBytes
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 5 * time.Minute},
		converter: converter,
		maxBytes:  maxBytes,
		tempDir:   tempDir,
		logger:    logger,
	}
}

// extensionByMIME maps sanitized MIME types to filenames the API accepts.
var extensionByMIME = map[string]string{
	"audio/webm":  ".webm",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/mp4":   ".m4a",
	"audio/m4a":   ".m4a",
	"audio/x-m4a": ".m4a",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/ogg":   ".ogg",
	"audio/flac":  ".flac",
	"video/webm":  ".webm",
	"video/mp4":   ".mp4",
}

// SanitizeMIME strips codec parameters (e.g. "audio/webm;codecs=opus").
func SanitizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// ExtensionForMIME derives a filename extension from a (possibly dirty) MIME
// type, defaulting to .webm which the API accepts for browser recordings.
func ExtensionForMIME(mime string) string {
	if ext, ok := extensionByMIME[SanitizeMIME(mime)]; ok {
		return ext
	}
	return ".webm"
}

// ValidateAudio rejects zero-byte, too-small, oversize and non-audio
// payloads. Permissive otherwise: Whisper accepts many containers.
func (c *Client) ValidateAudio(size int64, mime string) error {
	if size == 0 {
		return faults.New(faults.TypeValidation, "audio file is empty")
	}
	if size < minAudioBytes {
		return faults.Newf(faults.TypeValidation, "audio file too small (%d bytes), likely silence or truncated", size)
	}
	if size > c.maxBytes {
		return faults.Newf(faults.TypeValidation, "audio file too large (%d bytes, max %d)", size, c.maxBytes)
	}
	clean := SanitizeMIME(mime)
	if clean != "" && !strings.HasPrefix(clean, "audio/") && clean != "video/webm" && clean != "video/mp4" && clean != "application/octet-stream" {
		return faults.Newf(faults.TypeValidation, "unsupported content type %q", clean)
	}
	return nil
}

// Transcribe validates and transcribes a local audio file. On a
// format-rejection response the audio is converted to mono 16kHz WAV and
// retried once.
func (c *Client) Transcribe(ctx context.Context, audioPath, mime string, cfg Config) (*Result, error) {
	res, err := c.call(ctx, "/audio/transcriptions", audioPath, mime, cfg)
	if err != nil {
		return nil, err
	}
	res.Method = MethodWhisper
	return res, nil
}

// Translate is the same path against the translation endpoint; output is
// always English.
func (c *Client) Translate(ctx context.Context, audioPath, mime string, cfg Config) (*Result, error) {
	res, err := c.call(ctx, "/audio/translations", audioPath, mime, cfg)
	if err != nil {
		return nil, err
	}
	res.Method = MethodWhisperTranslate
	return res, nil
}

// FallbackFunc produces a transcription by other means (e.g. a browser
// web-speech result relayed by the client).
type FallbackFunc func(ctx context.Context) (*Result, error)

// TranscribeWithFallback tries Whisper first; on failure with a fallback
// supplied, the fallback result is retagged and returned.
func (c *Client) TranscribeWithFallback(ctx context.Context, audioPath, mime string, cfg Config, fallback FallbackFunc) (*Result, error) {
	res, err := c.Transcribe(ctx, audioPath, mime, cfg)
	if err == nil {
		return res, nil
	}
	if fallback == nil {
		return nil, err
	}
	c.logger.Warn("whisper transcription failed, using fallback", zap.Error(err))
	fb, fbErr := fallback(ctx)
	if fbErr != nil {
		return nil, fmt.Errorf("whisper failed (%v) and fallback failed: %w", err, fbErr)
	}
	fb.Method = MethodWebSpeech
	return fb, nil
}

func (c *Client) call(ctx context.Context, endpoint, audioPath, mime string, cfg Config) (*Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeFile, "stat audio file")
	}
	if err := c.ValidateAudio(info.Size(), mime); err != nil {
		return nil, err
	}

	res, err := c.post(ctx, endpoint, audioPath, mime, cfg)
	if err == nil {
		return res, nil
	}
	if !isFormatRejection(err) || c.converter == nil {
		return nil, err
	}

	// Remote side rejected the container; re-encode to canonical WAV and
	// retry exactly once.
	c.logger.Info("audio container rejected, converting to wav",
		zap.String("mime", SanitizeMIME(mime)),
		zap.String("path", filepath.Base(audioPath)),
	)
	wavPath := filepath.Join(c.tempDir, fmt.Sprintf("converted_%d.wav", time.Now().UnixNano()))
	if convErr := c.converter.ConvertToWAV(ctx, audioPath, wavPath); convErr != nil {
		return nil, fmt.Errorf("container rejected and wav conversion failed: %w", convErr)
	}
	defer os.Remove(wavPath)
	return c.post(ctx, endpoint, wavPath, "audio/wav", cfg)
}

// isFormatRejection matches the API's 400 responses for unsupported
// containers.
func isFormatRejection(err error) bool {
	var apiErr *apiError
	if !asAPIError(err, &apiErr) || apiErr.status != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.message)
	return strings.Contains(msg, "format") || strings.Contains(msg, "supported")
}

func (c *Client) post(ctx context.Context, endpoint, audioPath, mime string, cfg Config) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeFile, "open audio file")
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio"+ExtensionForMIME(mime))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	_ = mw.WriteField("model", model)
	format := cfg.ResponseFormat
	if format == "" {
		format = "verbose_json"
	}
	_ = mw.WriteField("response_format", format)
	if cfg.Language != "" {
		_ = mw.WriteField("language", cfg.Language)
	}
	if cfg.Prompt != "" {
		_ = mw.WriteField("prompt", cfg.Prompt)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeNetwork, "whisper request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(err, faults.TypeNetwork, "read whisper response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return Normalize(raw, format)
}

// Normalize converts any of the three response shapes (plain text, compact
// JSON, verbose JSON with segments/words) into one Result.
func Normalize(raw []byte, format string) (*Result, error) {
	if format == "text" {
		return &Result{Text: strings.TrimSpace(string(raw))}, nil
	}

	var verbose struct {
		Text     string    `json:"text"`
		Language string    `json:"language"`
		Duration float64   `json:"duration"`
		Segments []Segment `json:"segments"`
		Words    []Word    `json:"words"`
	}
	if err := json.Unmarshal(raw, &verbose); err != nil {
		// Some deployments return plain text regardless of the selector.
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return nil, fmt.Errorf("parse transcription response: %w", err)
		}
		return &Result{Text: text}, nil
	}
	return &Result{
		Text:     strings.TrimSpace(verbose.Text),
		Language: verbose.Language,
		Duration: verbose.Duration,
		Segments: verbose.Segments,
		Words:    verbose.Words,
	}, nil
}
