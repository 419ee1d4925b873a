package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	configDirName   = "sanket"
	sessionFileName = "session.json"
	warningFileName = "role_warning"
)

// Store persists the single current session record across client restarts.
// It is a dumb persistence boundary: no whitelist validation happens here.
type Store interface {
	// Load returns the stored session, or nil when none exists. Malformed
	// persisted data is treated as absent and never propagated as an error.
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error

	// SetWarning sets the one-shot flag that survives a reset-to-login so the
	// unauthorized-role warning can be shown on the next login screen.
	SetWarning() error
	// ConsumeWarning reads and clears the warning flag in one step.
	ConsumeWarning() (bool, error)
}

// FileStore implements Store on top of JSON files under ~/.config/sanket/.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a store rooted at ~/.config/sanket.
func NewFileStore(logger zerolog.Logger) (*FileStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return &FileStore{
		dir:    filepath.Join(homeDir, ".config", configDirName),
		logger: logger,
	}, nil
}

// NewFileStoreAt creates a store rooted at an explicit directory (used in tests).
func NewFileStoreAt(dir string, logger zerolog.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger}
}

func (f *FileStore) sessionPath() string {
	return filepath.Join(f.dir, sessionFileName)
}

func (f *FileStore) warningPath() string {
	return filepath.Join(f.dir, warningFileName)
}

// Load reads the persisted session. A missing file yields (nil, nil). Corrupted
// JSON is logged and treated as no session rather than surfaced to the caller.
func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.sessionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		f.logger.Warn().Err(err).Msg("Failed to read session file, treating as no session")
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		f.logger.Warn().Err(err).Msg("Corrupted session file, treating as no session")
		return nil, nil
	}

	if !s.Role.Valid() {
		f.logger.Warn().Str("role", string(s.Role)).Msg("Session file has unknown role, treating as no session")
		return nil, nil
	}

	return &s, nil
}

// Save writes the session to disk, creating the config directory if needed.
func (f *FileStore) Save(s *Session) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(f.sessionPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Clear removes the persisted session. Clearing an absent session is not an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// SetWarning persists the one-shot unauthorized-role warning flag.
func (f *FileStore) SetWarning() error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(f.warningPath(), []byte("1"), 0600); err != nil {
		return fmt.Errorf("failed to write warning flag: %w", err)
	}
	return nil
}

// ConsumeWarning reports whether the warning flag was set and clears it.
func (f *FileStore) ConsumeWarning() (bool, error) {
	data, err := os.ReadFile(f.warningPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		f.logger.Warn().Err(err).Msg("Failed to read warning flag")
		return false, nil
	}

	if err := os.Remove(f.warningPath()); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to clear warning flag: %w", err)
	}

	return string(data) == "1", nil
}
