package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atulpatildbz/groq-speech-to-text/internal/audio"
	"github.com/atulpatildbz/groq-speech-to-text/internal/config"
	"github.com/atulpatildbz/groq-speech-to-text/internal/encryption"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gateway"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
	"github.com/atulpatildbz/groq-speech-to-text/internal/history"
	"github.com/atulpatildbz/groq-speech-to-text/internal/session"
	"github.com/atulpatildbz/groq-speech-to-text/internal/transcribe"
)

// SyncApp is the application layer between the CLI and the sync engine. It
// constructs all dependencies from config and manages their lifecycle on
// Close. Gateways are built lazily because acquiring a session may run the
// interactive authorization flow, which only the commands that actually
// touch remote storage should trigger.
type SyncApp struct {
	cfg      *config.Config
	logger   gdsync.Logger
	slog     *slog.Logger
	logFile  *os.File
	sessions *session.Manager
	store    history.Store
	workdir  *gdsync.Workdir

	service *gdsync.Service
}

// NewSyncApp creates a SyncApp from the given config. noInput disables the
// interactive authorization flow, making any command that would need it fail
// with an AuthError instead of blocking unattended runs. The caller must
// call Close when done.
func NewSyncApp(cfg *config.Config, noInput bool) (*SyncApp, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logger, logFile, err := newLogger(cfg.LogDir, slog.LevelInfo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("setting up encryption keys: %w", err)
	}

	store, err := history.NewHistoryFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	workdir, err := gdsync.NewWorkdir(cfg.WorkDir)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, err
	}

	sessions := session.NewManager(session.NewStore(enc), adapter, os.Stdout, noInput)

	return &SyncApp{
		cfg:      cfg,
		logger:   adapter,
		slog:     logger,
		logFile:  logFile,
		sessions: sessions,
		store:    store,
		workdir:  workdir,
	}, nil
}

// validate rejects unusable configuration before anything touches the
// network or the filesystem.
func validate(cfg *config.Config) error {
	if cfg.BaseDir == "" {
		return &gdsync.ConfigError{Field: "base_dir", Err: fmt.Errorf("not set")}
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(cfg.BaseDir, "work")
	}
	if cfg.Sync.SizeLimitBytes < 0 {
		return &gdsync.ConfigError{Field: "sync.size_limit_bytes", Err: fmt.Errorf("must not be negative")}
	}
	if cfg.Sync.DaysThreshold < 0 {
		return &gdsync.ConfigError{Field: "sync.days_threshold", Err: fmt.Errorf("must not be negative")}
	}
	return nil
}

// ensureService builds the pipeline service on first use: both gateways (may
// prompt for authorization), the transcriber and the compressor.
func (a *SyncApp) ensureService(ctx context.Context) (*gdsync.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	transcriber, err := a.newTranscriber()
	if err != nil {
		return nil, err
	}

	source, err := gateway.NewGatewayFromConfig(ctx, a.cfg.Accounts.Source, "source", a.sessions)
	if err != nil {
		return nil, fmt.Errorf("opening source account: %w", err)
	}
	dest, err := gateway.NewGatewayFromConfig(ctx, a.cfg.Accounts.Dest, "dest", a.sessions)
	if err != nil {
		return nil, fmt.Errorf("opening destination account: %w", err)
	}

	a.service = gdsync.NewService(
		source,
		dest,
		transcriber,
		audio.NewFFmpegCompressor(),
		a.workdir,
		a.store,
		a.logger,
		gdsync.RealClock{},
		gdsync.UUIDGenerator{},
		gdsync.Options{
			SourceFolder:  a.cfg.Accounts.Source.Folder(),
			DestFolder:    a.cfg.Accounts.Dest.Folder(),
			ThresholdDays: a.cfg.Sync.DaysThreshold,
			SizeLimit:     a.cfg.Sync.SizeLimitBytes,
			MaxRetries:    a.cfg.Sync.MaxTranscriptionRetries,
			Retry:         gdsync.DefaultRetryPolicy(),
		},
	)
	return a.service, nil
}

func (a *SyncApp) newTranscriber() (gdsync.Transcriber, error) {
	keyEnv := a.cfg.Transcriber.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "GROQ_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		return nil, &gdsync.ConfigError{
			Field: "transcriber.api_key_env",
			Err:   fmt.Errorf("environment variable %s is empty", keyEnv),
		}
	}
	return transcribe.NewGroqClient(key, a.cfg.Transcriber.Model, ""), nil
}

// SetThresholdDays overrides the configured staleness threshold. Must be
// called before the first Sync or Schedule.
func (a *SyncApp) SetThresholdDays(days int) {
	a.cfg.Sync.DaysThreshold = days
}

// SetIntervalHours overrides the configured scheduling interval. The 2 hour
// floor still applies. Must be called before Schedule.
func (a *SyncApp) SetIntervalHours(hours int) {
	a.cfg.Sync.IntervalHours = hours
}

// Sync performs one full pipeline pass and returns its report.
func (a *SyncApp) Sync(ctx context.Context) (*gdsync.RunReport, error) {
	svc, err := a.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx)
}

// Schedule runs the pipeline immediately and then on the configured interval
// until ctx is cancelled.
func (a *SyncApp) Schedule(ctx context.Context) error {
	svc, err := a.ensureService(ctx)
	if err != nil {
		return err
	}
	return gdsync.NewScheduler(svc, a.cfg.Sync.Interval(), a.logger).Start(ctx)
}

// Authorize establishes a session for the named account ("source" or
// "dest"), or for both when label is empty, running the interactive flow if
// needed. Accounts that are not OAuth-backed are skipped.
func (a *SyncApp) Authorize(ctx context.Context, label string) error {
	for _, acct := range a.selectAccounts(label) {
		cfg := a.accountConfig(acct)
		if !oauthBacked(cfg) {
			fmt.Fprintf(os.Stdout, "Account %s (type %s) needs no authorization.\n", acct, cfg.Type)
			continue
		}
		if _, err := a.sessions.Acquire(ctx, session.Account{
			Label:           acct,
			CredentialsPath: cfg.CredentialsPath,
			TokenPath:       cfg.TokenPath,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ResetAuth deletes the stored token for the named account, or for both when
// label is empty, forcing a fresh authorization on the next run.
func (a *SyncApp) ResetAuth(label string) error {
	for _, acct := range a.selectAccounts(label) {
		cfg := a.accountConfig(acct)
		if !oauthBacked(cfg) {
			continue
		}
		if err := a.sessions.Reset(session.Account{
			Label:     acct,
			TokenPath: cfg.TokenPath,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *SyncApp) selectAccounts(label string) []string {
	if label == "" {
		return []string{"source", "dest"}
	}
	return []string{label}
}

func (a *SyncApp) accountConfig(label string) config.AccountConfig {
	if label == "dest" {
		return a.cfg.Accounts.Dest
	}
	return a.cfg.Accounts.Source
}

func oauthBacked(cfg config.AccountConfig) bool {
	return cfg.Type == "drive" || cfg.Type == ""
}

// History returns the most recent recorded runs, newest first.
func (a *SyncApp) History(limit int) ([]*gdsync.Run, error) {
	runs, err := a.store.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// LocalResult is the outcome of transcribing one local file.
type LocalResult struct {
	Path          string
	OutputPath    string
	Transcription gdsync.Transcription
}

// TranscribeLocal transcribes a local audio file and writes the transcript
// to a .txt file next to it, the same compress-if-oversized pipeline the
// sync applies to remote assets.
func (a *SyncApp) TranscribeLocal(ctx context.Context, path string) (LocalResult, error) {
	transcriber, err := a.newTranscriber()
	if err != nil {
		return LocalResult{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return LocalResult{}, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if !gdsync.IsAudioName(info.Name()) {
		return LocalResult{}, &gdsync.InvalidAssetError{Asset: info.Name(), Err: fmt.Errorf("unsupported audio format")}
	}

	audioPath := path
	limit := a.cfg.Sync.SizeLimitBytes
	if limit > 0 && info.Size() > limit {
		scope, err := a.workdir.NewScope(gdsync.UUIDGenerator{}.New())
		if err != nil {
			return LocalResult{}, err
		}
		defer func() {
			if err := scope.Remove(); err != nil {
				a.logger.Warn("removing scratch dir", "error", err)
			}
		}()

		a.logger.Info("compressing oversized file", "path", path, "size", info.Size(), "limit", limit)
		compressed := scope.Path(strings.TrimSuffix(info.Name(), filepath.Ext(info.Name())) + "_compressed.mp3")
		if err := audio.NewFFmpegCompressor().Compress(ctx, path, compressed); err != nil {
			return LocalResult{}, fmt.Errorf("compressing %s: %w", path, err)
		}
		compressedInfo, err := os.Stat(compressed)
		if err != nil {
			return LocalResult{}, fmt.Errorf("inspecting compressed copy: %w", err)
		}
		if compressedInfo.Size() > limit {
			return LocalResult{}, &gdsync.InvalidAssetError{
				Asset: info.Name(),
				Err:   fmt.Errorf("still %d bytes after compression, limit is %d", compressedInfo.Size(), limit),
			}
		}
		audioPath = compressed
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return LocalResult{}, fmt.Errorf("opening audio: %w", err)
	}
	transcription, err := transcriber.Transcribe(ctx, f, filepath.Base(audioPath))
	f.Close()
	if err != nil {
		return LocalResult{}, err
	}

	outPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	if err := os.WriteFile(outPath, []byte(transcription.Text), 0o644); err != nil {
		return LocalResult{}, fmt.Errorf("writing transcript: %w", err)
	}

	return LocalResult{Path: path, OutputPath: outPath, Transcription: transcription}, nil
}

// Close releases all resources.
func (a *SyncApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing history store: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
