package transcribe_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
	"github.com/atulpatildbz/groq-speech-to-text/internal/transcribe"
)

func TestGroqClient_Transcribe(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotFields map[string]string
	var gotFile []byte
	var gotFilename string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q, want /audio/transcriptions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("reading file part: %v", err)
		} else {
			gotFilename = hdr.Filename
			gotFile, _ = io.ReadAll(f)
			f.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text": "hello world", "duration": 42.5, "language": "english"}`)
	}))
	defer srv.Close()

	client := transcribe.NewGroqClient("test-key", "", srv.URL)
	tr, err := client.Transcribe(context.Background(), strings.NewReader("fake audio"), "memo.mp3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if tr.Text != "hello world" {
		t.Errorf("Text = %q, want hello world", tr.Text)
	}
	if tr.DurationSeconds != 42.5 {
		t.Errorf("DurationSeconds = %v, want 42.5", tr.DurationSeconds)
	}
	if tr.Language != "english" {
		t.Errorf("Language = %q, want english", tr.Language)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotFields["model"] != transcribe.DefaultModel {
		t.Errorf("model = %q, want %q", gotFields["model"], transcribe.DefaultModel)
	}
	if gotFields["response_format"] != "verbose_json" {
		t.Errorf("response_format = %q, want verbose_json", gotFields["response_format"])
	}
	if gotFields["temperature"] != "0" {
		t.Errorf("temperature = %q, want 0", gotFields["temperature"])
	}
	if gotFilename != "memo.mp3" {
		t.Errorf("filename = %q, want memo.mp3", gotFilename)
	}
	if string(gotFile) != "fake audio" {
		t.Errorf("file content = %q, want fake audio", gotFile)
	}
}

func TestGroqClient_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantKind  gdsync.TranscribeKind
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: gdsync.TranscribeRateLimited, retryable: true},
		{name: "invalid input", status: http.StatusBadRequest, wantKind: gdsync.TranscribeInvalidInput, retryable: false},
		{name: "service error", status: http.StatusInternalServerError, wantKind: gdsync.TranscribeServiceError, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			client := transcribe.NewGroqClient("test-key", "", srv.URL)
			_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "a.mp3")

			var terr *gdsync.TranscribeError
			if !errors.As(err, &terr) {
				t.Fatalf("error = %v, want TranscribeError", err)
			}
			if terr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", terr.Kind, tt.wantKind)
			}
			if terr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", terr.StatusCode, tt.status)
			}
			if got := gdsync.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestGroqClient_RejectedKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := transcribe.NewGroqClient("bad-key", "", srv.URL)
	_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "a.mp3")

	var cfgErr *gdsync.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if gdsync.IsRetryable(err) {
		t.Error("rejected key reported as retryable")
	}
}
