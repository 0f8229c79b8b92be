package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the whisper variant used when none is configured.
	DefaultModel = "whisper-large-v3"
)

// GroqClient implements the Transcriber interface against Groq's audio
// transcription endpoint. Requests ask for verbose_json at temperature 0 so
// repeated transcriptions of the same audio come back as stable as the
// model allows, along with duration and detected language.
type GroqClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

var _ gdsync.Transcriber = (*GroqClient)(nil)

// NewGroqClient creates a client. Empty model and baseURL fall back to the
// defaults; baseURL is overridden in tests to point at a local server.
func NewGroqClient(apiKey string, model string, baseURL string) *GroqClient {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &GroqClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Whisper on a long recording can legitimately take minutes.
		httpc: &http.Client{Timeout: 10 * time.Minute},
	}
}

// verboseTranscription is the subset of the verbose_json response the
// pipeline consumes.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
}

// Transcribe sends the audio as a multipart upload and returns the parsed
// transcription. The payload is buffered in memory; the pipeline's size
// ceiling keeps it bounded.
func (c *GroqClient) Transcribe(ctx context.Context, r io.Reader, filename string) (gdsync.Transcription, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.model); err != nil {
		return gdsync.Transcription{}, fmt.Errorf("writing model field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return gdsync.Transcription{}, fmt.Errorf("writing response_format field: %w", err)
	}
	if err := mw.WriteField("temperature", "0"); err != nil {
		return gdsync.Transcription{}, fmt.Errorf("writing temperature field: %w", err)
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return gdsync.Transcription{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return gdsync.Transcription{}, fmt.Errorf("reading audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return gdsync.Transcription{}, fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return gdsync.Transcription{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gdsync.Transcription{}, ctx.Err()
		}
		return gdsync.Transcription{}, &gdsync.TranscribeError{
			Kind: gdsync.TranscribeServiceError,
			Err:  err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gdsync.Transcription{}, c.statusError(resp)
	}

	var vt verboseTranscription
	if err := json.NewDecoder(resp.Body).Decode(&vt); err != nil {
		return gdsync.Transcription{}, &gdsync.TranscribeError{
			Kind: gdsync.TranscribeServiceError,
			Err:  fmt.Errorf("decoding response: %w", err),
		}
	}

	return gdsync.Transcription{
		Text:            vt.Text,
		DurationSeconds: vt.Duration,
		Language:        vt.Language,
	}, nil
}

// statusError classifies a non-200 response. Rejected credentials are a
// configuration problem, 429 waits for the backoff policy, other 4xx mean
// the audio itself was refused, and everything else is the service's fault
// and worth retrying.
func (c *GroqClient) statusError(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	base := fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(detail)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &gdsync.ConfigError{Field: "transcriber api key", Err: base}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &gdsync.TranscribeError{Kind: gdsync.TranscribeRateLimited, StatusCode: resp.StatusCode, Err: base}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &gdsync.TranscribeError{Kind: gdsync.TranscribeInvalidInput, StatusCode: resp.StatusCode, Err: base}
	default:
		return &gdsync.TranscribeError{Kind: gdsync.TranscribeServiceError, StatusCode: resp.StatusCode, Err: base}
	}
}
