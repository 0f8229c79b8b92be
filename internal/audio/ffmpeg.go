package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// FFmpegCompressor implements the Compressor interface by shelling out to
// ffmpeg. Audio is re-encoded to mono 16 kHz mp3 at 32 kbps, which is all
// the fidelity speech recognition needs and shrinks typical recordings far
// below the transcription service's payload ceiling.
type FFmpegCompressor struct {
	binary string
}

var _ gdsync.Compressor = (*FFmpegCompressor)(nil)

// NewFFmpegCompressor creates a compressor using the ffmpeg binary found on
// PATH.
func NewFFmpegCompressor() *FFmpegCompressor {
	return &FFmpegCompressor{binary: "ffmpeg"}
}

// Args returns the ffmpeg arguments used to re-encode src into dst.
func Args(src string, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-ar", "16000",
		"-ac", "1",
		"-b:a", "32k",
		"-f", "mp3",
		dst,
	}
}

// Compress re-encodes src into dst. src is never modified. A missing
// binary or a failed encode returns an error carrying ffmpeg's stderr tail
// for diagnosis.
func (c *FFmpegCompressor) Compress(ctx context.Context, src string, dst string) error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, Args(src, dst)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// tail returns the last n bytes of s, trimmed. ffmpeg prints its actual
// error at the end of a long banner.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
