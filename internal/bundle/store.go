package bundle

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/fairloan-cli/internal/utils"
)

// File names inside a bundle directory.
const (
	BundleFile   = "bundle.gob"
	MetadataFile = "metadata.json"
)

// NotFoundError reports a missing or unreadable bundle.
type NotFoundError struct {
	Variant   Variant
	ModelType string
	Path      string
	Err       error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no usable %s/%s bundle at %s: %v", e.Variant, e.ModelType, e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Store persists bundles under <Root>/<variant>/<model_type>/.
type Store struct {
	Root string
	log  *slog.Logger
}

// NewStore returns a store rooted at root. A nil logger uses slog.Default().
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Root: root, log: logger.With("component", "bundle")}
}

// Dir is the directory holding one bundle.
func (s *Store) Dir(v Variant, modelType string) string {
	return filepath.Join(s.Root, string(v), modelType)
}

// Save publishes b for (v, b.Model.Kind), replacing any previous bundle. The
// bundle file is written atomically; metadata.json follows it.
func (s *Store) Save(b *Bundle, v Variant) (string, error) {
	if err := b.validate(); err != nil {
		return "", err
	}
	dir := s.Dir(v, b.Model.Kind)
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}
	b.Metrics.Variant = v
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}
	path := filepath.Join(dir, BundleFile)
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	meta, err := utils.PrettyJSON(b.Metrics)
	if err != nil {
		return "", err
	}
	if err := utils.SafeWriteFile(filepath.Join(dir, MetadataFile), meta); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	s.log.Info("bundle saved", "variant", v, "model_type", b.Model.Kind, "run_id", b.Metrics.RunID, "bytes", buf.Len())
	return path, nil
}

// Load reads the bundle for (v, modelType).
func (s *Store) Load(v Variant, modelType string) (*Bundle, error) {
	path := filepath.Join(s.Dir(v, modelType), BundleFile)
	notFound := func(err error) error {
		return &NotFoundError{Variant: v, ModelType: modelType, Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(err)
	}
	var b Bundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, notFound(fmt.Errorf("decode: %w", err))
	}
	if b.Model.Kind != modelType {
		return nil, notFound(fmt.Errorf("%w: stored kind %q", errInvalid, b.Model.Kind))
	}
	if err := b.validate(); err != nil {
		return nil, notFound(err)
	}
	s.log.Debug("bundle loaded", "variant", v, "model_type", modelType, "run_id", b.Metrics.RunID)
	return &b, nil
}

// Metadata reads the metadata document of a stored bundle.
func (s *Store) Metadata(v Variant, modelType string) (*TrainingMetrics, error) {
	path := filepath.Join(s.Dir(v, modelType), MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Variant: v, ModelType: modelType, Path: path, Err: err}
	}
	var m TrainingMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &NotFoundError{Variant: v, ModelType: modelType, Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return &m, nil
}

// Entry describes one stored bundle.
type Entry struct {
	Variant   Variant   `json:"variant" yaml:"variant"`
	ModelType string    `json:"model_type" yaml:"model_type"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
	Modified  time.Time `json:"modified" yaml:"modified"`
}

// List returns stored bundles ordered by variant then model type. A missing
// root is an empty store.
func (s *Store) List() ([]Entry, error) {
	var out []Entry
	for _, v := range Variants {
		dirs, err := os.ReadDir(filepath.Join(s.Root, string(v)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", v, err)
		}
		for _, d := range dirs {
			if !d.IsDir() {
				continue
			}
			p := filepath.Join(s.Root, string(v), d.Name(), BundleFile)
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			out = append(out, Entry{Variant: v, ModelType: d.Name(), Path: p, Size: info.Size(), Modified: info.ModTime()})
		}
	}
	return out, nil
}
