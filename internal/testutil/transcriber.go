package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// StubTranscriber is a Transcriber fake. By default it returns a transcript
// derived from the audio content so tests can assert the right bytes flowed
// through. Errors can be queued to fail the first N calls. Safe for
// concurrent use.
type StubTranscriber struct {
	// Result, when set, is returned for every successful call instead of the
	// derived transcript.
	Result *gdsync.Transcription

	mu     sync.Mutex
	errs   []error
	calls  int
	inputs []string
}

var _ gdsync.Transcriber = (*StubTranscriber)(nil)

// NewStubTranscriber creates a StubTranscriber.
func NewStubTranscriber() *StubTranscriber {
	return &StubTranscriber{}
}

// FailNext queues errors to be returned by upcoming calls, in order. Once
// the queue is drained, calls succeed again.
func (s *StubTranscriber) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// Calls reports how many times Transcribe ran.
func (s *StubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Inputs returns the audio content of every call, in order.
func (s *StubTranscriber) Inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inputs...)
}

func (s *StubTranscriber) Transcribe(_ context.Context, r io.Reader, _ string) (gdsync.Transcription, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return gdsync.Transcription{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputs = append(s.inputs, string(data))

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return gdsync.Transcription{}, err
	}

	if s.Result != nil {
		return *s.Result, nil
	}
	return gdsync.Transcription{
		Text:            fmt.Sprintf("transcript of %q", string(data)),
		DurationSeconds: 12.5,
		Language:        "english",
	}, nil
}
