package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// URLPrefix is the public path clips are served under.
const URLPrefix = "/media"

// Store keeps uploaded audio clips on local disk under server-assigned
// names. The retention window bounds how long a clip stays addressable; the
// janitor drives the expiry sweep.
type Store struct {
	dir       string
	retention time.Duration
	logger    zerolog.Logger
}

func NewStore(dir string, retention time.Duration, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{
		dir:       dir,
		retention: retention,
		logger:    logger.With().Str("component", "media").Logger(),
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save stores the clip under a fresh uuid name, keeping only a sanitized
// extension from the client-supplied filename. Returns the stored name.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := uuid.New().String() + sanitizeExt(filename)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create clip file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write clip file: %w", err)
	}
	return name, nil
}

// URL returns the public path for a stored name.
func (s *Store) URL(name string) string {
	return URLPrefix + "/" + name
}

// SweepExpired removes clips whose modification time is older than the
// retention window and reports how many it deleted. Individual stat/remove
// failures are logged and skipped, never abort the sweep.
func (s *Store) SweepExpired() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error().Err(err).Str("dir", s.dir).Msg("media sweep failed to read dir")
		return 0
	}

	cutoff := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("media sweep skipped file")
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("media sweep failed to remove file")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired clips removed")
	}
	return removed
}

// sanitizeExt keeps a short alphanumeric extension, defaulting to nothing
// when the client name is weird.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
