// Package artifact persists versioned model bundles and tracks the current one.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yourusername/matchcast/internal/ml"
	"github.com/yourusername/matchcast/internal/models"
)

// Bundle file names inside a version directory.
const (
	ModelFile    = "model.json"
	ScalerFile   = "scaler.json"
	MetadataFile = "metadata.json"
	CurrentFile  = "CURRENT"
	versionsDir  = "versions"
)

// ErrVersionExists is returned when saving over an existing version.
var ErrVersionExists = errors.New("artifact version already exists")

// Bundle is a trained model with its scaler and metadata.
type Bundle struct {
	Metadata models.ArtifactMetadata
	Model    ml.Classifier
	Scaler   *ml.StandardScaler
}

// Validate checks the bundle is internally consistent.
func (b *Bundle) Validate() error {
	if b.Metadata.Version == "" {
		return fmt.Errorf("artifact has no version")
	}
	if b.Model == nil || b.Scaler == nil {
		return fmt.Errorf("artifact %s is missing its model or scaler", b.Metadata.Version)
	}
	if b.Scaler.Dim() != len(b.Metadata.FeatureSchema) {
		return fmt.Errorf("%w: artifact %s scaler has %d columns for %d features",
			models.ErrSchemaMismatch, b.Metadata.Version, b.Scaler.Dim(), len(b.Metadata.FeatureSchema))
	}
	return nil
}

// Store keeps bundles under root/versions/<version> and the current
// version id in root/CURRENT. A single writer is assumed.
type Store struct {
	root string
}

// NewStore creates the store directory layout if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, versionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) versionPath(version string) string {
	return filepath.Join(s.root, versionsDir, version)
}

// Save writes the bundle into a staging directory and renames it into place.
// A failure leaves no partial version behind.
func (s *Store) Save(b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	version := b.Metadata.Version
	if strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") {
		return fmt.Errorf("invalid artifact version %q", version)
	}

	final := s.versionPath(version)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrVersionExists, version)
	}

	modelData, err := ml.MarshalClassifier(b.Model)
	if err != nil {
		return err
	}
	scalerData, err := ml.MarshalScaler(b.Scaler)
	if err != nil {
		return err
	}
	metaData, err := json.MarshalIndent(b.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	staging, err := os.MkdirTemp(filepath.Join(s.root, versionsDir), ".staging-"+version+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	for name, data := range map[string][]byte{
		ModelFile:    modelData,
		ScalerFile:   scalerData,
		MetadataFile: metaData,
	} {
		if err := writeFileSync(filepath.Join(staging, name), data); err != nil {
			return err
		}
	}
	if err := syncDir(staging); err != nil {
		return err
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("failed to commit artifact %s: %w", version, err)
	}
	committed = true
	return syncDir(filepath.Join(s.root, versionsDir))
}

// Promote atomically points CURRENT at an already saved version.
func (s *Store) Promote(version string) error {
	if _, err := os.Stat(filepath.Join(s.versionPath(version), MetadataFile)); err != nil {
		return fmt.Errorf("cannot promote %s: %w", version, models.ErrArtifactMissing)
	}

	tmp, err := os.CreateTemp(s.root, ".current-")
	if err != nil {
		return fmt.Errorf("failed to create pointer file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(version + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write pointer file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync pointer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close pointer file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, CurrentFile)); err != nil {
		return fmt.Errorf("failed to swap current pointer: %w", err)
	}
	return syncDir(s.root)
}

// SaveAndPromote saves the bundle and then makes it current.
func (s *Store) SaveAndPromote(b *Bundle) error {
	if err := s.Save(b); err != nil {
		return err
	}
	return s.Promote(b.Metadata.Version)
}

// Current returns the current version id.
func (s *Store) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, CurrentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", models.ErrArtifactMissing
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current pointer: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", models.ErrArtifactMissing
	}
	return version, nil
}

// Load reads a saved bundle.
func (s *Store) Load(version string) (*Bundle, error) {
	dir := s.versionPath(version)
	meta, err := s.readMetadata(dir)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read model for %s: %w", version, err)
	}
	model, err := ml.UnmarshalClassifier(modelData)
	if err != nil {
		return nil, err
	}

	scalerData, err := os.ReadFile(filepath.Join(dir, ScalerFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler for %s: %w", version, err)
	}
	scaler, err := ml.UnmarshalScaler(scalerData)
	if err != nil {
		return nil, err
	}

	b := &Bundle{Metadata: *meta, Model: model, Scaler: scaler}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadCurrent reads the bundle CURRENT points at.
func (s *Store) LoadCurrent() (*Bundle, error) {
	version, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.Load(version)
}

// Metadata reads only the metadata of a version.
func (s *Store) Metadata(version string) (*models.ArtifactMetadata, error) {
	return s.readMetadata(s.versionPath(version))
}

func (s *Store) readMetadata(dir string) (*models.ArtifactMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(dir), models.ErrArtifactMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta models.ArtifactMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}

// List returns metadata of all saved versions, newest first.
func (s *Store) List() ([]*models.ArtifactMetadata, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, versionsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	var out []*models.ArtifactMetadata
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		meta, err := s.Metadata(e.Name())
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrainedAt.After(out[j].TrainedAt) })
	return out, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", path, err)
	}
	defer d.Close()
	// Directory fsync is unsupported on some filesystems; the rename already happened.
	_ = d.Sync()
	return nil
}
