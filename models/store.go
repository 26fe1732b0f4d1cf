package models

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-stationcast/internal/fsutil"
	"github.com/goccy/go-json"
)

// ArtifactVersion is bumped whenever the envelope layout changes. Artifacts of another version
// are treated as corrupt and refit.
const ArtifactVersion = 1

// Envelope wraps a strategy specific station model with the metadata needed to decide whether
// it can be reused.
type Envelope struct {
	Version     int             `json:"version"`
	Strategy    string          `json:"strategy"`
	Station     string          `json:"station"`
	Fingerprint string          `json:"fingerprint"`
	TrainedAt   time.Time       `json:"trained_at"`
	Model       json.RawMessage `json:"model"`
}

// Store persists one artifact per strategy and station under dir/<strategy>/<station>.json.
type Store struct {
	dir     string
	nowFunc func() time.Time
}

// NewStore creates the root directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create model directory %s, %w", dir, err)
	}
	return &Store{dir: dir, nowFunc: time.Now}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the artifact location of a station model. Station names are path escaped so any
// code maps to a single file.
func (s *Store) Path(strategy, station string) string {
	return filepath.Join(s.dir, strategy, url.PathEscape(station)+".json")
}

// Save atomically writes the station model along with the fingerprint of its training data.
func (s *Store) Save(strategy, station, fingerprint string, model any) error {
	raw, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("unable to encode %s model for station %s, %w", strategy, station, err)
	}
	env := Envelope{
		Version:     ArtifactVersion,
		Strategy:    strategy,
		Station:     station,
		Fingerprint: fingerprint,
		TrainedAt:   s.nowFunc().UTC(),
		Model:       raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("unable to encode %s envelope for station %s, %w", strategy, station, err)
	}
	return fsutil.WriteFileAtomic(s.Path(strategy, station), data, 0o644)
}

// Load decodes the station model into dst. It returns ErrArtifactNotFound when nothing was
// persisted, ErrCorruptArtifact when the file cannot be decoded or belongs to another
// strategy or station, and ErrStaleArtifact when it was trained on data with a different
// fingerprint.
func (s *Store) Load(strategy, station, fingerprint string, dst any) (*Envelope, error) {
	path := s.Path(strategy, station)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s, %w", path, ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("unable to read %s, %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrCorruptArtifact, err)
	}
	switch {
	case env.Version != ArtifactVersion:
		return nil, fmt.Errorf("%s has version %d, %w", path, env.Version, ErrCorruptArtifact)
	case env.Strategy != strategy || env.Station != station:
		return nil, fmt.Errorf(
			"%s holds %s model for station %s, %w",
			path, env.Strategy, env.Station, ErrCorruptArtifact,
		)
	case len(env.Model) == 0:
		return nil, fmt.Errorf("%s has no model, %w", path, ErrCorruptArtifact)
	}
	if env.Fingerprint != fingerprint {
		return &env, fmt.Errorf(
			"%s fingerprint %s does not match %s, %w",
			path, env.Fingerprint, fingerprint, ErrStaleArtifact,
		)
	}
	if err := json.Unmarshal(env.Model, dst); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrCorruptArtifact, err)
	}
	return &env, nil
}

// Clear removes every persisted artifact of a strategy.
func (s *Store) Clear(strategy string) error {
	if err := os.RemoveAll(filepath.Join(s.dir, strategy)); err != nil {
		return fmt.Errorf("unable to clear %s artifacts, %w", strategy, err)
	}
	return nil
}
