package gdsync

import (
	"context"
	"io"
)

// Transcription is the result of one transcription call.
type Transcription struct {
	Text            string
	DurationSeconds float64
	Language        string
}

// Transcriber converts audio content into text. Implementations classify
// their failures with TranscribeError so the pipeline can decide what to
// retry.
type Transcriber interface {
	// Transcribe reads audio from r and returns its transcription. filename
	// is the original asset name; backends use it to hint the container
	// format.
	Transcribe(ctx context.Context, r io.Reader, filename string) (Transcription, error)
}

// Compressor shrinks an audio file to satisfy a backend size ceiling.
type Compressor interface {
	// Compress re-encodes the audio at src into a new file at dst. src is
	// never modified.
	Compress(ctx context.Context, src string, dst string) error
}
