package history

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atulpatildbz/groq-speech-to-text/internal/config"
	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// Store is a History the application owns the lifecycle of.
type Store interface {
	gdsync.History
	Close() error
}

// NewHistoryFromConfig creates a Store based on the configuration type.
func NewHistoryFromConfig(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite history requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history data directory: %w", err)
		}
		return NewSQLiteHistory(filepath.Join(cfg.DataDir, "gdsync.db"))
	case "memory":
		return NewMemoryHistory(), nil
	default:
		return nil, fmt.Errorf("unknown history type: %q", cfg.Type)
	}
}
