package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/atulpatildbz/groq-speech-to-text/internal/encryption"
)

// Store persists oauth2 tokens at rest. Tokens are serialized as JSON and
// sealed with the configured encryptor before they touch disk.
type Store struct {
	enc encryption.Encryptor
}

// NewStore creates a Store that seals tokens with enc.
func NewStore(enc encryption.Encryptor) *Store {
	return &Store{enc: enc}
}

// Load reads the token stored at path. A missing file returns (nil, nil):
// the account simply has no stored session yet.
func (s *Store) Load(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening token file: %w", err)
	}
	defer f.Close()

	var plain bytes.Buffer
	if err := s.enc.Decrypt(f, &plain); err != nil {
		return nil, fmt.Errorf("unsealing token %s: %w", path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(plain.Bytes(), &tok); err != nil {
		return nil, fmt.Errorf("decoding token %s: %w", path, err)
	}
	return &tok, nil
}

// Save writes the token to path using an atomic temp file + rename, so a
// crash mid-write never corrupts a previously stored token.
func (s *Store) Save(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := s.enc.Encrypt(bytes.NewReader(data), tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sealing token: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("restricting token permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}

// Delete removes the stored token at path. A missing file is not an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
