package gdsync

import "time"

// Stage names a step of the per-asset pipeline. An AssetOutcome records the
// stage an asset reached, or the stage it failed in.
type Stage string

const (
	StageDownload   Stage = "download"
	StageCompress   Stage = "compress"
	StageTranscribe Stage = "transcribe"
	StageUpload     Stage = "upload"
	StageArchive    Stage = "archive"
)

// Status is the terminal state of one asset within a run.
type Status string

const (
	// StatusSucceeded: the transcript was uploaded and the source archived.
	StatusSucceeded Status = "succeeded"
	// StatusFailed: a stage failed after exhausting any retries.
	StatusFailed Status = "failed"
	// StatusSkipped: the resolver found a fresh transcript.
	StatusSkipped Status = "skipped"
)

// AssetOutcome is the per-asset result of a run.
type AssetOutcome struct {
	Asset  AudioAsset
	Status Status
	Reason Reason
	// Stage and Err are set only for failed outcomes.
	Stage Stage
	Err   error
}

// RunReport aggregates one pass over the source folder. Reports exist for
// operator visibility only; the next pass re-derives its work set from live
// listings and never consults a previous report.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []AssetOutcome
}

// Counts returns the number of succeeded, failed and skipped outcomes.
func (r *RunReport) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Failures returns the failed outcomes converted to history records.
func (r *RunReport) Failures() []RunFailure {
	var failures []RunFailure
	for _, o := range r.Outcomes {
		if o.Status != StatusFailed {
			continue
		}
		reason := ""
		if o.Err != nil {
			reason = o.Err.Error()
		}
		failures = append(failures, RunFailure{
			Asset:  o.Asset.Name,
			Stage:  o.Stage,
			Reason: reason,
		})
	}
	return failures
}
