package testutil

import (
	"context"
	"os"
	"sync"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// StubCompressor is a Compressor fake that writes a fixed payload to the
// destination instead of invoking an encoder.
type StubCompressor struct {
	// Output is the content written to dst. Defaults to "compressed".
	Output []byte

	// Err, when set, is returned without writing anything.
	Err error

	mu    sync.Mutex
	calls int
}

var _ gdsync.Compressor = (*StubCompressor)(nil)

// NewStubCompressor creates a StubCompressor.
func NewStubCompressor() *StubCompressor {
	return &StubCompressor{}
}

// Calls reports how many times Compress ran.
func (s *StubCompressor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubCompressor) Compress(_ context.Context, _ string, dst string) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	out := s.Output
	if out == nil {
		out = []byte("compressed")
	}
	return os.WriteFile(dst, out, 0o600)
}
