package gdsync

import (
	"errors"
	"fmt"
)

// ConfigError indicates the engine cannot start because configuration or
// environment is unusable. Nothing retries these.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError indicates a credential could not be obtained or refreshed for an
// account. In non-interactive runs this is fatal for the whole pass.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// InvalidAssetError marks an asset the pipeline can never process, such as an
// audio file the transcription backend rejects as malformed. Retrying cannot
// help; the asset is skipped and reported.
type InvalidAssetError struct {
	Asset string
	Err   error
}

func (e *InvalidAssetError) Error() string {
	return fmt.Sprintf("invalid asset %s: %v", e.Asset, e.Err)
}

func (e *InvalidAssetError) Unwrap() error { return e.Err }

// TranscribeKind classifies transcription backend failures for retry
// decisions.
type TranscribeKind int

const (
	// TranscribeServiceError covers 5xx responses, timeouts and transport
	// failures. Retryable.
	TranscribeServiceError TranscribeKind = iota
	// TranscribeRateLimited covers 429 responses. Retryable after backoff.
	TranscribeRateLimited
	// TranscribeInvalidInput covers 4xx rejections of the audio itself.
	// Never retried.
	TranscribeInvalidInput
)

func (k TranscribeKind) String() string {
	switch k {
	case TranscribeServiceError:
		return "service_error"
	case TranscribeRateLimited:
		return "rate_limited"
	case TranscribeInvalidInput:
		return "invalid_input"
	default:
		return fmt.Sprintf("transcribe_kind(%d)", int(k))
	}
}

// TranscribeError is returned by transcription backends so the pipeline can
// distinguish failures worth retrying from permanent rejections.
type TranscribeError struct {
	Kind       TranscribeKind
	StatusCode int
	Err        error
}

func (e *TranscribeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcribe (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transcribe (%s): %v", e.Kind, e.Err)
}

func (e *TranscribeError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
func (e *TranscribeError) Retryable() bool {
	return e.Kind == TranscribeServiceError || e.Kind == TranscribeRateLimited
}

// IsRetryable reports whether err should be retried by the per-asset retry
// loop. Transcription errors carry their own classification; everything else
// (network hiccups from storage gateways and the like) is assumed transient.
// Invalid assets and auth failures are permanent.
func IsRetryable(err error) bool {
	var te *TranscribeError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ie *InvalidAssetError
	if errors.As(err, &ie) {
		return false
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return false
	}
	return true
}
