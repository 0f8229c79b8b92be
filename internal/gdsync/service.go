package gdsync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options configure the pipeline for one deployment.
type Options struct {
	// SourceFolder and DestFolder are backend folder identifiers.
	SourceFolder string
	DestFolder   string

	// ArchiveFolder is the name of the sub-folder of SourceFolder that
	// processed audio files move into. Defaults to "processed".
	ArchiveFolder string

	// ThresholdDays is the transcript staleness threshold. 0 reprocesses
	// every asset regardless of existing transcripts.
	ThresholdDays int

	// SizeLimit is the transcription backend's payload ceiling in bytes.
	// Downloads above it are re-encoded before transcription. 0 disables
	// the check.
	SizeLimit int64

	// MaxRetries bounds how many times a retryable transcription failure
	// is retried per asset.
	MaxRetries int

	// Retry computes the backoff delay between those attempts.
	Retry RetryPolicy
}

// DefaultArchiveFolder is the sub-folder processed sources are moved into.
const DefaultArchiveFolder = "processed"

// Service is the orchestration layer that drives the transcription pipeline.
// Each Run lists both folders, resolves the work set, and walks every
// selected asset through download → size compliance → transcription →
// upload → archive.
//
// Strategy: the transcript upload happens before the source file is
// archived, and no step records durable state a later run depends on. A
// crash at any point leaves either a missing transcript, which the next run
// redoes, or an uploaded transcript with an unarchived source, which the
// next run sees as fresh and skips. The worst outcome is repeated work,
// never lost work.
type Service struct {
	source      StorageGateway
	dest        StorageGateway
	transcriber Transcriber
	compressor  Compressor
	workdir     *Workdir
	history     History
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	opts        Options
}

// NewService creates a Service with the provided dependencies. history
// receives one record per completed run; recording failures are logged and
// never affect the run's outcome.
func NewService(source StorageGateway, dest StorageGateway, transcriber Transcriber, compressor Compressor, workdir *Workdir, history History, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	if opts.ArchiveFolder == "" {
		opts.ArchiveFolder = DefaultArchiveFolder
	}
	return &Service{
		source:      source,
		dest:        dest,
		transcriber: transcriber,
		compressor:  compressor,
		workdir:     workdir,
		history:     history,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		opts:        opts,
	}
}

// Run performs one full pass. Listing or setup failures abort the run with
// an error; failures inside an asset's pipeline are recorded in the report
// and the run continues with the next asset. When ctx is cancelled the run
// stops at the next asset boundary and returns the partial report together
// with ctx's error.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{StartedAt: s.clock.Now()}

	// Leftover scratch from a previous abnormal termination.
	if err := s.workdir.Purge(); err != nil {
		return nil, fmt.Errorf("purging work dir: %w", err)
	}

	sourceObjects, err := s.source.List(ctx, s.opts.SourceFolder)
	if err != nil {
		return nil, fmt.Errorf("listing source folder: %w", err)
	}
	destObjects, err := s.dest.List(ctx, s.opts.DestFolder)
	if err != nil {
		return nil, fmt.Errorf("listing destination folder: %w", err)
	}

	assets := AudioAssets(sourceObjects)
	records := TranscriptRecords(destObjects)
	decisions := Resolve(assets, records, s.opts.ThresholdDays, report.StartedAt)
	work := len(WorkSet(decisions))

	s.logger.Info("work set resolved",
		"audio_files", len(assets),
		"transcripts", len(records),
		"to_transcribe", work,
		"threshold_days", s.opts.ThresholdDays)

	archiveFolder := ""
	if work > 0 {
		archiveFolder, err = s.source.EnsureFolder(ctx, s.opts.SourceFolder, s.opts.ArchiveFolder)
		if err != nil {
			return nil, fmt.Errorf("ensuring archive folder: %w", err)
		}
	}

	for _, d := range decisions {
		if !d.Transcribe {
			s.logger.Debug("skipping asset", "name", d.Asset.Name, "reason", d.Reason)
			report.Outcomes = append(report.Outcomes, AssetOutcome{Asset: d.Asset, Status: StatusSkipped, Reason: d.Reason})
			continue
		}
		if ctx.Err() != nil {
			break
		}
		report.Outcomes = append(report.Outcomes, s.processAsset(ctx, d, archiveFolder))
	}

	report.FinishedAt = s.clock.Now()
	s.recordRun(report)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	succeeded, failed, skipped := report.Counts()
	s.logger.Info("run complete", "succeeded", succeeded, "failed", failed, "skipped", skipped)
	return report, nil
}

// processAsset drives one asset through the pipeline. It always returns an
// outcome; errors are captured, never propagated, so one bad asset cannot
// take down the run.
func (s *Service) processAsset(ctx context.Context, d Decision, archiveFolder string) AssetOutcome {
	asset := d.Asset
	outcome := AssetOutcome{Asset: asset, Reason: d.Reason}

	s.logger.Info("processing asset", "name", asset.Name, "size", asset.Size, "reason", d.Reason)

	scope, err := s.workdir.NewScope(s.idgen.New())
	if err != nil {
		return s.fail(outcome, StageDownload, err)
	}
	defer func() {
		if err := scope.Remove(); err != nil {
			s.logger.Warn("removing scratch dir", "name", asset.Name, "error", err)
		}
	}()

	audioPath := scope.Path(asset.Name)
	if err := s.download(ctx, asset, audioPath); err != nil {
		return s.fail(outcome, StageDownload, err)
	}

	uploadPath, err := s.ensureWithinLimit(ctx, scope, asset, audioPath)
	if err != nil {
		return s.fail(outcome, StageCompress, err)
	}

	transcription, err := s.transcribeWithRetry(ctx, uploadPath)
	if err != nil {
		return s.fail(outcome, StageTranscribe, err)
	}

	if err := s.uploadTranscript(ctx, asset, transcription); err != nil {
		return s.fail(outcome, StageUpload, err)
	}

	if err := s.source.Move(ctx, asset.ID, s.opts.SourceFolder, archiveFolder); err != nil {
		return s.fail(outcome, StageArchive, err)
	}

	s.logger.Info("asset transcribed",
		"name", asset.Name,
		"duration_seconds", transcription.DurationSeconds,
		"language", transcription.Language)
	outcome.Status = StatusSucceeded
	return outcome
}

func (s *Service) fail(outcome AssetOutcome, stage Stage, err error) AssetOutcome {
	s.logger.Error("asset failed", "name", outcome.Asset.Name, "stage", stage, "error", err)
	outcome.Status = StatusFailed
	outcome.Stage = stage
	outcome.Err = err
	return outcome
}

// download streams the asset's content into path.
func (s *Service) download(ctx context.Context, asset AudioAsset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating local file: %w", err)
	}
	if err := s.source.Download(ctx, asset.ID, f); err != nil {
		f.Close()
		return fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing local file: %w", err)
	}
	return nil
}

// ensureWithinLimit returns the path to hand to the transcriber. Downloads
// at or under the limit pass through byte-identical. Larger ones are
// re-encoded into a compressed copy inside the scope; the original download
// is never modified. A copy that still exceeds the limit marks the asset
// invalid rather than looping on ever-lower bitrates.
func (s *Service) ensureWithinLimit(ctx context.Context, scope *Scope, asset AudioAsset, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspecting download: %w", err)
	}
	if s.opts.SizeLimit <= 0 || info.Size() <= s.opts.SizeLimit {
		return path, nil
	}

	s.logger.Info("compressing oversized asset", "name", asset.Name, "size", info.Size(), "limit", s.opts.SizeLimit)

	compressed := scope.Path(strings.TrimSuffix(asset.Name, filepath.Ext(asset.Name)) + "_compressed.mp3")
	if err := s.compressor.Compress(ctx, path, compressed); err != nil {
		return "", fmt.Errorf("compressing %s: %w", asset.Name, err)
	}

	compressedInfo, err := os.Stat(compressed)
	if err != nil {
		return "", fmt.Errorf("inspecting compressed copy: %w", err)
	}
	if compressedInfo.Size() > s.opts.SizeLimit {
		return "", &InvalidAssetError{
			Asset: asset.Name,
			Err:   fmt.Errorf("still %d bytes after compression, limit is %d", compressedInfo.Size(), s.opts.SizeLimit),
		}
	}
	return compressed, nil
}

// transcribeWithRetry opens the audio file fresh for every attempt so each
// request sends the full content. Only failures the transcriber marks
// retryable are tried again; invalid input fails immediately.
func (s *Service) transcribeWithRetry(ctx context.Context, path string) (Transcription, error) {
	for attempt := 0; ; attempt++ {
		transcription, err := s.transcribeOnce(ctx, path)
		if err == nil {
			return transcription, nil
		}
		if !IsRetryable(err) || attempt >= s.opts.MaxRetries {
			return Transcription{}, err
		}
		delay := s.opts.Retry.Delay(attempt + 1)
		s.logger.Warn("transcription failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return Transcription{}, err
		}
	}
}

func (s *Service) transcribeOnce(ctx context.Context, path string) (Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return Transcription{}, fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()
	return s.transcriber.Transcribe(ctx, f, filepath.Base(path))
}

// uploadTranscript writes the transcript next to its siblings in the
// destination folder, overwriting any previous version by name. Duration
// and detected language travel as object metadata so the text itself stays
// byte-stable across reruns.
func (s *Service) uploadTranscript(ctx context.Context, asset AudioAsset, transcription Transcription) error {
	name := TranscriptName(asset.Name)
	content := []byte(transcription.Text)

	meta := map[string]string{
		"duration_seconds": strconv.FormatFloat(transcription.DurationSeconds, 'f', 2, 64),
	}
	if transcription.Language != "" {
		meta["language"] = transcription.Language
	}

	if _, err := s.dest.Upload(ctx, s.opts.DestFolder, name, bytes.NewReader(content), int64(len(content)), meta); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// recordRun appends the run to history. History is observability only, so a
// recording failure is logged and otherwise ignored.
func (s *Service) recordRun(report *RunReport) {
	if s.history == nil {
		return
	}
	succeeded, failed, skipped := report.Counts()
	run := &Run{
		ID:         s.idgen.New(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  succeeded,
		Failed:     failed,
		Skipped:    skipped,
		Failures:   report.Failures(),
	}
	if err := s.history.RecordRun(run); err != nil {
		s.logger.Warn("recording run history", "error", err)
	}
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
