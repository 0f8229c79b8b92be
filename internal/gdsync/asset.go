package gdsync

import (
	"path/filepath"
	"strings"
	"time"
)

// AudioAsset is one source audio object eligible for transcription.
// Assets are re-listed fresh on every pass; Name is the only key that
// correlates an asset with its transcript across the two accounts.
type AudioAsset struct {
	ID         string
	Name       string
	Size       int64
	MimeType   string
	ModifiedAt time.Time
}

// TranscriptRecord is a transcript object in the destination folder.
type TranscriptRecord struct {
	Name       string
	ModifiedAt time.Time
}

// Object is a single remote storage listing entry.
type Object struct {
	ID         string
	Name       string
	Size       int64
	MimeType   string
	ModifiedAt time.Time
	IsFolder   bool
}

// audioExtensions are the formats the pipeline will pick up from the source
// folder. Matching is by file extension so all gateway backends behave the
// same regardless of how well they report MIME types.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
}

// IsAudioName reports whether name looks like a supported audio file.
func IsAudioName(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// TranscriptName maps an audio file name to its transcript name by swapping
// the extension for ".txt" (e.g. "standup.mp3" -> "standup.txt").
func TranscriptName(audioName string) string {
	return strings.TrimSuffix(audioName, filepath.Ext(audioName)) + ".txt"
}

// AudioAssets filters a source listing down to the audio assets in it.
func AudioAssets(objects []Object) []AudioAsset {
	var assets []AudioAsset
	for _, o := range objects {
		if o.IsFolder || !IsAudioName(o.Name) {
			continue
		}
		assets = append(assets, AudioAsset{
			ID:         o.ID,
			Name:       o.Name,
			Size:       o.Size,
			MimeType:   o.MimeType,
			ModifiedAt: o.ModifiedAt,
		})
	}
	return assets
}

// TranscriptRecords filters a destination listing down to transcript objects.
func TranscriptRecords(objects []Object) []TranscriptRecord {
	var records []TranscriptRecord
	for _, o := range objects {
		if o.IsFolder || !strings.EqualFold(filepath.Ext(o.Name), ".txt") {
			continue
		}
		records = append(records, TranscriptRecord{Name: o.Name, ModifiedAt: o.ModifiedAt})
	}
	return records
}
