package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// DriveScope is the authorization scope the engine requests. Full Drive
// access is needed to list, download, upload and move files across folders.
const DriveScope = "https://www.googleapis.com/auth/drive"

// Account describes one OAuth identity: where its client credentials live
// and where its token is persisted. Accounts are fully isolated; source and
// destination never share credential or token files.
type Account struct {
	Label           string
	CredentialsPath string
	TokenPath       string
}

// Manager obtains authorized sessions. Per account it loads the persisted
// token, refreshes an expired one, and falls back to the interactive
// browser flow when nothing usable is stored.
type Manager struct {
	store   *Store
	logger  gdsync.Logger
	out     io.Writer
	noInput bool

	// isTerminal reports whether a human can complete the browser flow.
	// Swapped out in tests.
	isTerminal func() bool
}

// NewManager creates a Manager. Interactive instructions are printed to
// out. When noInput is true the interactive flow is disabled even on a
// terminal, so any account that would need it fails with an AuthError.
func NewManager(store *Store, logger gdsync.Logger, out io.Writer, noInput bool) *Manager {
	return &Manager{
		store:   store,
		logger:  logger,
		out:     out,
		noInput: noInput,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Acquire returns an authorized session for the account.
func (m *Manager) Acquire(ctx context.Context, acct Account) (*Session, error) {
	cfg, err := m.loadClientConfig(acct)
	if err != nil {
		return nil, err
	}

	tok, err := m.store.Load(acct.TokenPath)
	if err != nil {
		// An unreadable token is replaced by re-authorization, not fatal.
		m.logger.Warn("stored token unreadable", "account", acct.Label, "error", err)
		tok = nil
	}

	switch {
	case tok == nil:
		m.logger.Info("no stored session", "account", acct.Label)
	case tok.Valid():
		m.logger.Debug("using stored session", "account", acct.Label)
		return m.newSession(acct, cfg, tok), nil
	case tok.RefreshToken != "":
		refreshed, refreshErr := cfg.TokenSource(ctx, tok).Token()
		if refreshErr == nil {
			m.logger.Info("session refreshed", "account", acct.Label)
			if err := m.store.Save(acct.TokenPath, refreshed); err != nil {
				m.logger.Warn("persisting refreshed token", "account", acct.Label, "error", err)
			}
			return m.newSession(acct, cfg, refreshed), nil
		}
		// A failed refresh usually means access was revoked; the only way
		// forward is a fresh authorization.
		m.logger.Warn("refresh failed, re-authorization required", "account", acct.Label, "error", refreshErr)
	default:
		m.logger.Info("stored session expired without refresh token", "account", acct.Label)
	}

	if !m.canPrompt() {
		return nil, &gdsync.AuthError{
			Account: acct.Label,
			Err:     fmt.Errorf("no usable stored token and interactive authorization is unavailable; run \"gdsync auth\" on a terminal first"),
		}
	}

	tok, err = authorize(ctx, cfg, acct.Label, m.out)
	if err != nil {
		return nil, &gdsync.AuthError{Account: acct.Label, Err: err}
	}
	if err := m.store.Save(acct.TokenPath, tok); err != nil {
		return nil, fmt.Errorf("persisting token for %s: %w", acct.Label, err)
	}
	m.logger.Info("account authorized", "account", acct.Label)
	return m.newSession(acct, cfg, tok), nil
}

// Reset deletes the stored token for the account, forcing a fresh
// authorization on the next Acquire.
func (m *Manager) Reset(acct Account) error {
	if err := m.store.Delete(acct.TokenPath); err != nil {
		return fmt.Errorf("resetting %s: %w", acct.Label, err)
	}
	m.logger.Info("stored session removed", "account", acct.Label)
	return nil
}

func (m *Manager) canPrompt() bool {
	return !m.noInput && m.isTerminal()
}

func (m *Manager) loadClientConfig(acct Account) (*oauth2.Config, error) {
	data, err := os.ReadFile(acct.CredentialsPath)
	if err != nil {
		return nil, &gdsync.ConfigError{
			Field: fmt.Sprintf("accounts.%s.credentials_path", acct.Label),
			Err:   fmt.Errorf("reading client credentials: %w", err),
		}
	}
	cfg, err := google.ConfigFromJSON(data, DriveScope)
	if err != nil {
		return nil, &gdsync.ConfigError{
			Field: fmt.Sprintf("accounts.%s.credentials_path", acct.Label),
			Err:   fmt.Errorf("parsing client credentials: %w", err),
		}
	}
	return cfg, nil
}

func (m *Manager) newSession(acct Account, cfg *oauth2.Config, tok *oauth2.Token) *Session {
	return &Session{
		Label:  acct.Label,
		config: cfg,
		token:  tok,
		store:  m.store,
		path:   acct.TokenPath,
		logger: m.logger,
	}
}

// Session is an authorized identity for one account.
type Session struct {
	Label  string
	config *oauth2.Config
	token  *oauth2.Token
	store  *Store
	path   string
	logger gdsync.Logger
}

// TokenSource returns a self-refreshing source that persists every rotated
// token, so the next process start can skip the refresh round trip.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &savingSource{
		src:     s.config.TokenSource(ctx, s.token),
		session: s,
		last:    s.token.AccessToken,
	}
}

// Client returns an *http.Client that authorizes every request with the
// session's token.
func (s *Session) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s.TokenSource(ctx))
}

// savingSource wraps a refreshing TokenSource and persists each newly
// rotated token.
type savingSource struct {
	src     oauth2.TokenSource
	session *Session

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		if err := s.session.store.Save(s.session.path, tok); err != nil {
			s.session.logger.Warn("persisting rotated token", "account", s.session.Label, "error", err)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
