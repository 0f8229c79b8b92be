package gdsync_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gateway"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
	"github.com/atulpatildbz/groq-speech-to-text/internal/history"
	"github.com/atulpatildbz/groq-speech-to-text/internal/testutil"
)

const (
	srcFolder = "src"
	dstFolder = "dst"
)

type pipeline struct {
	source  *gateway.MemoryGateway
	dest    *gateway.MemoryGateway
	trans   *testutil.StubTranscriber
	comp    *testutil.StubCompressor
	store   *history.MemoryHistory
	clock   *testutil.StubClock
	workdir *gdsync.Workdir
	svc     *gdsync.Service
}

// newPipeline wires a Service against in-memory collaborators. opts zero
// fields get working defaults.
func newPipeline(t *testing.T, opts gdsync.Options) *pipeline {
	t.Helper()

	if opts.SourceFolder == "" {
		opts.SourceFolder = srcFolder
	}
	if opts.DestFolder == "" {
		opts.DestFolder = dstFolder
	}
	if opts.SizeLimit == 0 {
		opts.SizeLimit = 25_000_000
	}

	clock := testutil.FixedClock()
	source := gateway.NewMemoryGateway()
	source.Clock = clock
	dest := gateway.NewMemoryGateway()
	dest.Clock = clock

	workdir, err := gdsync.NewWorkdir(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("NewWorkdir() error = %v", err)
	}

	p := &pipeline{
		source:  source,
		dest:    dest,
		trans:   testutil.NewStubTranscriber(),
		comp:    testutil.NewStubCompressor(),
		store:   history.NewMemoryHistory(),
		clock:   clock,
		workdir: workdir,
	}
	p.svc = gdsync.NewService(
		source, dest, p.trans, p.comp, workdir, p.store,
		gdsync.NewNopLogger(), clock, testutil.NewStubIDGenerator(), opts,
	)
	return p
}

func (p *pipeline) run(t *testing.T) *gdsync.RunReport {
	t.Helper()
	report, err := p.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func (p *pipeline) destTranscript(t *testing.T, name string) (string, map[string]string) {
	t.Helper()
	obj, ok := p.dest.Find(dstFolder, name)
	if !ok {
		t.Fatalf("transcript %s not found in destination", name)
	}
	data, _ := p.dest.Data(obj.ID)
	meta, _ := p.dest.Meta(obj.ID)
	return string(data), meta
}

func TestService_Run(t *testing.T) {
	t.Run("transcribes a new asset end to end", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		id := p.source.Put(srcFolder, "standup.mp3", []byte("audio-bytes"), p.clock.Now())

		report := p.run(t)

		succeeded, failed, skipped := report.Counts()
		if succeeded != 1 || failed != 0 || skipped != 0 {
			t.Fatalf("counts = %d/%d/%d, want 1/0/0", succeeded, failed, skipped)
		}

		text, meta := p.destTranscript(t, "standup.txt")
		if text != `transcript of "audio-bytes"` {
			t.Errorf("transcript content = %q", text)
		}
		if meta["duration_seconds"] != "12.50" {
			t.Errorf("duration_seconds = %q, want 12.50", meta["duration_seconds"])
		}
		if meta["language"] != "english" {
			t.Errorf("language = %q, want english", meta["language"])
		}

		// The source file moved into the processed sub-folder.
		parent, _ := p.source.Parent(id)
		if parent == srcFolder {
			t.Error("source file was not archived")
		}
		if _, ok := p.source.Find(srcFolder, "standup.mp3"); ok {
			t.Error("source file still listed in source folder")
		}

		// Scratch space is released.
		entries, err := os.ReadDir(p.workdir.Root())
		if err != nil {
			t.Fatalf("reading work dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("work dir has %d leftover entries", len(entries))
		}
	})

	t.Run("skips assets with a fresh transcript", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		p.dest.Put(dstFolder, "a.txt", []byte("existing"), p.clock.Now().AddDate(0, 0, -3))

		report := p.run(t)

		if _, _, skipped := report.Counts(); skipped != 1 {
			t.Fatalf("skipped = %d, want 1", skipped)
		}
		if p.trans.Calls() != 0 {
			t.Errorf("transcriber called %d times, want 0", p.trans.Calls())
		}
		text, _ := p.destTranscript(t, "a.txt")
		if text != "existing" {
			t.Errorf("existing transcript was modified: %q", text)
		}
	})

	t.Run("reprocesses stale transcripts in place", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		staleID := p.dest.Put(dstFolder, "a.txt", []byte("old transcript"), p.clock.Now().AddDate(0, 0, -10))

		report := p.run(t)

		if succeeded, _, _ := report.Counts(); succeeded != 1 {
			t.Fatalf("succeeded = %d, want 1", succeeded)
		}
		obj, ok := p.dest.Find(dstFolder, "a.txt")
		if !ok {
			t.Fatal("transcript missing after reprocess")
		}
		if obj.ID != staleID {
			t.Errorf("overwrite created a new object: id %s, want %s", obj.ID, staleID)
		}
		data, _ := p.dest.Data(obj.ID)
		if string(data) != `transcript of "audio"` {
			t.Errorf("transcript not replaced: %q", data)
		}
	})

	t.Run("second run is idempotent", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())

		p.run(t)
		firstText, _ := p.destTranscript(t, "a.txt")
		calls := p.trans.Calls()

		p.run(t)

		if p.trans.Calls() != calls {
			t.Errorf("second run re-invoked the transcriber: %d calls, want %d", p.trans.Calls(), calls)
		}
		secondText, _ := p.destTranscript(t, "a.txt")
		if secondText != firstText {
			t.Errorf("transcript changed across runs: %q -> %q", firstText, secondText)
		}
	})

	t.Run("self-heals after a crash between upload and archive", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		// The previous run uploaded the transcript but crashed before the
		// move, so the audio is still in the source folder.
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now().AddDate(0, 0, -1))
		p.dest.Put(dstFolder, "a.txt", []byte("uploaded before crash"), p.clock.Now())

		report := p.run(t)

		if _, _, skipped := report.Counts(); skipped != 1 {
			t.Fatalf("skipped = %d, want 1", skipped)
		}
		if p.trans.Calls() != 0 {
			t.Errorf("transcriber called %d times, want 0", p.trans.Calls())
		}
		text, _ := p.destTranscript(t, "a.txt")
		if text != "uploaded before crash" {
			t.Errorf("transcript rewritten: %q", text)
		}
	})

	t.Run("a failing asset does not stop the others", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, MaxRetries: 3})
		p.source.Put(srcFolder, "a.mp3", []byte("one"), p.clock.Now())
		p.source.Put(srcFolder, "b.mp3", []byte("two"), p.clock.Now())
		p.trans.FailNext(&gdsync.TranscribeError{Kind: gdsync.TranscribeInvalidInput, Err: errors.New("malformed audio")})

		report := p.run(t)

		succeeded, failed, _ := report.Counts()
		if succeeded != 1 || failed != 1 {
			t.Fatalf("counts = %d succeeded / %d failed, want 1/1", succeeded, failed)
		}
		for _, o := range report.Outcomes {
			if o.Status == gdsync.StatusFailed && o.Stage != gdsync.StageTranscribe {
				t.Errorf("failed stage = %s, want %s", o.Stage, gdsync.StageTranscribe)
			}
		}
	})

	t.Run("retries rate limited transcription", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, MaxRetries: 2})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		p.trans.FailNext(&gdsync.TranscribeError{Kind: gdsync.TranscribeRateLimited, StatusCode: 429, Err: errors.New("slow down")})

		report := p.run(t)

		if succeeded, _, _ := report.Counts(); succeeded != 1 {
			t.Fatalf("succeeded = %d, want 1", succeeded)
		}
		if p.trans.Calls() != 2 {
			t.Errorf("transcriber called %d times, want 2", p.trans.Calls())
		}
	})

	t.Run("does not retry invalid input", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, MaxRetries: 3})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		p.trans.FailNext(&gdsync.TranscribeError{Kind: gdsync.TranscribeInvalidInput, Err: errors.New("empty audio")})

		report := p.run(t)

		if _, failed, _ := report.Counts(); failed != 1 {
			t.Fatalf("failed = %d, want 1", failed)
		}
		if p.trans.Calls() != 1 {
			t.Errorf("transcriber called %d times, want 1", p.trans.Calls())
		}
	})

	t.Run("gives up after exhausting retries", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, MaxRetries: 1})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		p.trans.FailNext(
			&gdsync.TranscribeError{Kind: gdsync.TranscribeServiceError, Err: errors.New("boom")},
			&gdsync.TranscribeError{Kind: gdsync.TranscribeServiceError, Err: errors.New("boom again")},
		)

		report := p.run(t)

		if _, failed, _ := report.Counts(); failed != 1 {
			t.Fatalf("failed = %d, want 1", failed)
		}
		if p.trans.Calls() != 2 {
			t.Errorf("transcriber called %d times, want 2", p.trans.Calls())
		}
	})

	t.Run("compresses oversized assets before transcription", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, SizeLimit: 10})
		p.source.Put(srcFolder, "long.mp3", []byte("this recording is larger than the limit"), p.clock.Now())
		p.comp.Output = []byte("tiny")

		report := p.run(t)

		if succeeded, _, _ := report.Counts(); succeeded != 1 {
			t.Fatalf("succeeded = %d, want 1", succeeded)
		}
		if p.comp.Calls() != 1 {
			t.Errorf("compressor called %d times, want 1", p.comp.Calls())
		}
		inputs := p.trans.Inputs()
		if len(inputs) != 1 || inputs[0] != "tiny" {
			t.Errorf("transcriber received %v, want the compressed copy", inputs)
		}
	})

	t.Run("passes small assets through untouched", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, SizeLimit: 1000})
		p.source.Put(srcFolder, "short.mp3", []byte("small"), p.clock.Now())

		p.run(t)

		if p.comp.Calls() != 0 {
			t.Errorf("compressor called %d times, want 0", p.comp.Calls())
		}
		inputs := p.trans.Inputs()
		if len(inputs) != 1 || inputs[0] != "small" {
			t.Errorf("transcriber received %v, want the original bytes", inputs)
		}
	})

	t.Run("fails an asset still oversized after compression", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, SizeLimit: 10})
		p.source.Put(srcFolder, "huge.mp3", []byte("far larger than the ten byte limit"), p.clock.Now())
		p.comp.Output = []byte("still bigger than ten")

		report := p.run(t)

		if _, failed, _ := report.Counts(); failed != 1 {
			t.Fatalf("failed = %d, want 1", failed)
		}
		outcome := report.Outcomes[0]
		if outcome.Stage != gdsync.StageCompress {
			t.Errorf("failed stage = %s, want %s", outcome.Stage, gdsync.StageCompress)
		}
		var invalid *gdsync.InvalidAssetError
		if !errors.As(outcome.Err, &invalid) {
			t.Errorf("outcome error = %v, want InvalidAssetError", outcome.Err)
		}
		if p.trans.Calls() != 0 {
			t.Errorf("transcriber called %d times, want 0", p.trans.Calls())
		}
	})

	t.Run("threshold zero reprocesses everything", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 0})
		p.source.Put(srcFolder, "a.mp3", []byte("audio"), p.clock.Now())
		p.dest.Put(dstFolder, "a.txt", []byte("fresh"), p.clock.Now())

		report := p.run(t)

		if succeeded, _, _ := report.Counts(); succeeded != 1 {
			t.Fatalf("succeeded = %d, want 1", succeeded)
		}
		if p.trans.Calls() != 1 {
			t.Errorf("transcriber called %d times, want 1", p.trans.Calls())
		}
	})

	t.Run("cancelled context stops before the next asset", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})
		p.source.Put(srcFolder, "a.mp3", []byte("one"), p.clock.Now())
		p.source.Put(srcFolder, "b.mp3", []byte("two"), p.clock.Now())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := p.svc.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
		if report == nil {
			t.Fatal("Run() returned nil report on cancellation")
		}
		if succeeded, _, _ := report.Counts(); succeeded != 0 {
			t.Errorf("succeeded = %d, want 0 after pre-cancelled context", succeeded)
		}
		if p.trans.Calls() != 0 {
			t.Errorf("transcriber called %d times, want 0", p.trans.Calls())
		}
	})

	t.Run("purges orphaned scratch before starting", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7})

		orphan, err := p.workdir.NewScope("crashed-run")
		if err != nil {
			t.Fatalf("NewScope() error = %v", err)
		}
		if err := os.WriteFile(orphan.Path("leftover.mp3"), []byte("x"), 0o600); err != nil {
			t.Fatalf("writing orphan file: %v", err)
		}

		p.run(t)

		entries, err := os.ReadDir(p.workdir.Root())
		if err != nil {
			t.Fatalf("reading work dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("work dir has %d entries after run, want 0", len(entries))
		}
	})

	t.Run("records the run in history", func(t *testing.T) {
		t.Parallel()
		p := newPipeline(t, gdsync.Options{ThresholdDays: 7, MaxRetries: 0})
		p.source.Put(srcFolder, "good.mp3", []byte("fine"), p.clock.Now())
		p.source.Put(srcFolder, "bad.mp3", []byte("broken"), p.clock.Now())
		p.trans.FailNext(&gdsync.TranscribeError{Kind: gdsync.TranscribeInvalidInput, Err: errors.New("no speech")})

		p.run(t)

		runs, err := p.store.ListRuns(10)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("history has %d runs, want 1", len(runs))
		}
		run := runs[0]
		if run.Succeeded != 1 || run.Failed != 1 || run.Skipped != 0 {
			t.Errorf("run counts = %d/%d/%d, want 1/1/0", run.Succeeded, run.Failed, run.Skipped)
		}
		if len(run.Failures) != 1 {
			t.Fatalf("run has %d failures, want 1", len(run.Failures))
		}
		if run.Failures[0].Stage != gdsync.StageTranscribe {
			t.Errorf("failure stage = %s, want %s", run.Failures[0].Stage, gdsync.StageTranscribe)
		}
		if !run.StartedAt.Equal(p.clock.Now()) {
			t.Errorf("run StartedAt = %v, want %v", run.StartedAt, p.clock.Now())
		}
	})
}
