package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// Config represents the main configuration for gdsync.
type Config struct {
	HostID      string            `toml:"host_id"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	WorkDir     string            `toml:"work_dir"`
	Sync        SyncConfig        `toml:"sync"`
	Accounts    AccountsConfig    `toml:"accounts"`
	Transcriber TranscriberConfig `toml:"transcriber"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	History     HistoryConfig     `toml:"history"`
}

// SyncConfig holds the pipeline tuning knobs.
type SyncConfig struct {
	// DaysThreshold is how old a transcript may be before its audio is
	// reprocessed. 0 means every audio file is processed on every run.
	DaysThreshold int `toml:"days_threshold"`

	// IntervalHours is the scheduler period. Values below the 2 hour floor
	// are raised to it at wiring time.
	IntervalHours int `toml:"interval_hours"`

	// SizeLimitBytes is the transcription service's payload ceiling.
	SizeLimitBytes int64 `toml:"size_limit_bytes"`

	// MaxTranscriptionRetries bounds retries of transient transcription
	// failures per asset.
	MaxTranscriptionRetries int `toml:"max_transcription_retries"`
}

// Interval returns the scheduling period with the production floor applied.
func (c SyncConfig) Interval() time.Duration {
	d := time.Duration(c.IntervalHours) * time.Hour
	if d < gdsync.MinInterval {
		return gdsync.MinInterval
	}
	return d
}

// AccountsConfig names the two storage accounts the engine bridges.
type AccountsConfig struct {
	Source AccountConfig `toml:"source"`
	Dest   AccountConfig `toml:"dest"`
}

// AccountConfig represents configuration for a storage account.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type AccountConfig struct {
	Type string `toml:"type"` // "drive", "s3", or "memory"

	// Drive-specific fields (only used when Type == "drive")
	CredentialsPath string `toml:"credentials_path,omitempty"`
	TokenPath       string `toml:"token_path,omitempty"`
	FolderID        string `toml:"folder_id,omitempty"`

	// S3-specific fields (only used when Type == "s3"). The two accounts may
	// live in different AWS accounts, so each can carry its own static key:
	// S3AccessKeyID names the key, S3SecretKeyEnv names the environment
	// variable holding the secret. When S3AccessKeyID is empty the default
	// AWS credential chain is used instead.
	S3Bucket       string `toml:"s3_bucket,omitempty"`
	S3Prefix       string `toml:"s3_prefix,omitempty"`
	S3Region       string `toml:"s3_region,omitempty"`
	S3AccessKeyID  string `toml:"s3_access_key_id,omitempty"`
	S3SecretKeyEnv string `toml:"s3_secret_key_env,omitempty"`
}

// Folder returns the backend folder identifier the pipeline operates on:
// the Drive folder ID, or the S3 prefix.
func (c AccountConfig) Folder() string {
	if c.Type == "s3" {
		return c.S3Prefix
	}
	return c.FolderID
}

// TranscriberConfig selects the speech-to-text model.
type TranscriberConfig struct {
	Model string `toml:"model"`
	// APIKeyEnv names the environment variable holding the API key. The key
	// itself never appears in the config file.
	APIKeyEnv string `toml:"api_key_env"`
}

// EncryptionConfig holds paths to the age key pair protecting stored tokens.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// HistoryConfig represents configuration for the run-history store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default
// settings.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		WorkDir: filepath.Join(baseDir, "work"),
		Sync: SyncConfig{
			DaysThreshold:           7,
			IntervalHours:           2,
			SizeLimitBytes:          25_000_000,
			MaxTranscriptionRetries: 3,
		},
		Accounts: AccountsConfig{
			Source: AccountConfig{
				Type:            "drive",
				CredentialsPath: filepath.Join(baseDir, "keys", "source_credentials.json"),
				TokenPath:       filepath.Join(baseDir, "tokens", "source.token"),
			},
			Dest: AccountConfig{
				Type:            "drive",
				CredentialsPath: filepath.Join(baseDir, "keys", "dest_credentials.json"),
				TokenPath:       filepath.Join(baseDir, "tokens", "dest.token"),
			},
		},
		Transcriber: TranscriberConfig{
			Model:     "whisper-large-v3",
			APIKeyEnv: "GROQ_API_KEY",
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "gdsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "gdsync.key"),
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
