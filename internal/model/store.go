package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/tender-matcher/internal/features"
)

const (
	ManifestFile       = "manifest.yaml"
	ClassifierFile     = "classifier.gob"
	DescriptionFile    = "description_vectorizer.gob"
	CategoryFile       = "category_vectorizer.gob"
	manifestVersion    = 1
	stagingDirPattern  = ".staging-*"
	defaultPermissions = 0o644
)

// manifest is written last and binds the three blobs of one training run.
// Blobs without a matching manifest entry are treated as a partial save.
type manifest struct {
	Version    int               `yaml:"version"`
	TrainingID string            `yaml:"training_id"`
	TrainedAt  time.Time         `yaml:"trained_at"`
	Width      int               `yaml:"width"`
	Keywords   string            `yaml:"keywords"`
	Checksums  map[string]string `yaml:"checksums"`
}

// Store persists artifacts in a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, logger: logger}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the triple. The previous manifest is removed before any blob
// is replaced, so an interrupted save leaves the store unloadable instead of
// mixing blobs from two runs.
func (s *Store) Save(a *Artifacts) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	staging, err := os.MkdirTemp(s.dir, stagingDirPattern)
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	blobs := map[string]any{
		ClassifierFile:  a.Classifier,
		DescriptionFile: a.Description,
		CategoryFile:    a.Category,
	}

	m := manifest{
		Version:    manifestVersion,
		TrainingID: a.TrainingID,
		TrainedAt:  time.Now().UTC(),
		Width:      a.Width(),
		Keywords:   a.Keywords,
		Checksums:  make(map[string]string, len(blobs)),
	}

	for name, v := range blobs {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(staging, name), buf.Bytes(), defaultPermissions); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		m.Checksums[name] = checksum(buf.Bytes())
	}

	manifestData, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, ManifestFile), manifestData, defaultPermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := os.Remove(filepath.Join(s.dir, ManifestFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove previous manifest: %w", err)
	}

	for _, name := range []string{ClassifierFile, DescriptionFile, CategoryFile, ManifestFile} {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
	}

	s.logger.Info("model artifacts saved",
		zap.String("dir", s.dir),
		zap.String("training_id", a.TrainingID),
		zap.Int("width", m.Width),
	)

	return nil
}

// Load reads and verifies the triple. Every failure wraps ErrUnavailable.
func (s *Store) Load() (*Artifacts, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", ErrUnavailable, err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %w", ErrUnavailable, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrUnavailable, m.Version)
	}

	a := &Artifacts{
		TrainingID:  m.TrainingID,
		Keywords:    m.Keywords,
		Classifier:  &Classifier{},
		Description: &features.Vocabulary{},
		Category:    &features.Vocabulary{},
	}

	targets := []struct {
		name string
		into any
	}{
		{ClassifierFile, a.Classifier},
		{DescriptionFile, a.Description},
		{CategoryFile, a.Category},
	}

	for _, target := range targets {
		if err := s.readBlob(target.name, m.Checksums[target.name], target.into); err != nil {
			return nil, err
		}
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Width() != m.Width {
		return nil, fmt.Errorf("%w: manifest width %d, artifacts %d", ErrUnavailable, m.Width, a.Width())
	}

	s.logger.Debug("model artifacts loaded",
		zap.String("dir", s.dir),
		zap.String("training_id", m.TrainingID),
		zap.Time("trained_at", m.TrainedAt),
	)

	return a, nil
}

func (s *Store) readBlob(name, want string, into any) error {
	if want == "" {
		return fmt.Errorf("%w: manifest has no checksum for %s", ErrUnavailable, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrUnavailable, name, err)
	}
	if got := checksum(data); got != want {
		return fmt.Errorf("%w: %s checksum mismatch", ErrUnavailable, name)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(into); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUnavailable, name, err)
	}

	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
