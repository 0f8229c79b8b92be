package gdsync

import "time"

// Reason explains why an asset was or was not selected for transcription.
type Reason string

const (
	// ReasonMissing: no transcript with the mapped name exists yet.
	ReasonMissing Reason = "missing"
	// ReasonStale: a transcript exists but is older than the threshold.
	ReasonStale Reason = "stale"
	// ReasonFresh: a transcript exists and is recent enough to keep.
	ReasonFresh Reason = "fresh"
)

// Decision is the per-asset output of Resolve, recomputed on every pass.
type Decision struct {
	Asset      AudioAsset
	Transcribe bool
	Reason     Reason
}

// Resolve computes the work set for one pass. An asset is selected when no
// transcript with the mapped name exists in the destination listing, or when
// that transcript's modification time is older than thresholdDays before now.
// thresholdDays == 0 disables the staleness check entirely: every source
// asset is selected.
//
// Resolve is a pure function over the two listings. It never performs I/O and
// is deterministic for identical inputs, which is what makes the pipeline's
// self-healing safe: correctness is always re-derived from live listings,
// never from remembered state.
func Resolve(source []AudioAsset, dest []TranscriptRecord, thresholdDays int, now time.Time) []Decision {
	index := make(map[string]time.Time, len(dest))
	for _, rec := range dest {
		index[rec.Name] = rec.ModifiedAt
	}

	cutoff := now.AddDate(0, 0, -thresholdDays)

	decisions := make([]Decision, 0, len(source))
	for _, asset := range source {
		modified, ok := index[TranscriptName(asset.Name)]
		switch {
		case !ok:
			decisions = append(decisions, Decision{Asset: asset, Transcribe: true, Reason: ReasonMissing})
		case thresholdDays == 0:
			// Threshold zero means "always reprocess", even with a transcript present.
			decisions = append(decisions, Decision{Asset: asset, Transcribe: true, Reason: ReasonStale})
		case modified.Before(cutoff):
			decisions = append(decisions, Decision{Asset: asset, Transcribe: true, Reason: ReasonStale})
		default:
			decisions = append(decisions, Decision{Asset: asset, Transcribe: false, Reason: ReasonFresh})
		}
	}
	return decisions
}

// WorkSet filters decisions down to the assets selected for transcription.
func WorkSet(decisions []Decision) []AudioAsset {
	var assets []AudioAsset
	for _, d := range decisions {
		if d.Transcribe {
			assets = append(assets, d.Asset)
		}
	}
	return assets
}
