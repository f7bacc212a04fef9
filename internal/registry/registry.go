// Package registry resolves trained model artifacts for inference. A source
// maps an abstract "give me the current model" request onto storage: a single
// pinned file, or a versioned directory where the newest artifact wins.
// Sources are config-selected, never probed in fallback order.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/meridian-labs/demandcast/internal/model"
)

// ErrNoModel means no trained artifact exists where the source looks. The
// message names the fix because this is the first error every fresh
// deployment hits.
var ErrNoModel = errors.New("registry: no trained model artifact found; run the train stage first")

// Source resolves the current model artifact path.
type Source interface {
	// Resolve returns the path of the artifact to load. Returns ErrNoModel
	// (possibly wrapped) when nothing is available.
	Resolve() (string, error)
}

// FileSource pins a single artifact file.
type FileSource struct {
	Path string
}

func (s FileSource) Resolve() (string, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w (looked for %s)", ErrNoModel, s.Path)
		}
		return "", fmt.Errorf("registry: stat %s: %w", s.Path, err)
	}
	return s.Path, nil
}

// DirSource treats a directory of immutable artifacts as a registry. Files
// are named by the writer so lexicographic order is creation order
// (timestamped names); Resolve picks the newest. Artifacts are never
// rewritten in place, so a resolved path stays valid for the process
// lifetime.
type DirSource struct {
	Dir string
}

func (s DirSource) Resolve() (string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w (looked in %s)", ErrNoModel, s.Dir)
		}
		return "", fmt.Errorf("registry: read %s: %w", s.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w (looked in %s)", ErrNoModel, s.Dir)
	}
	sort.Strings(names)
	return filepath.Join(s.Dir, names[len(names)-1]), nil
}

// Registry loads artifacts through a source, caching loaded models by path.
// Artifacts are immutable, so the cache never needs invalidation; a new
// training run produces a new path.
type Registry struct {
	source Source
	log    *zap.SugaredLogger

	mu    sync.Mutex
	cache *lru.Cache[string, *model.Forecaster]
}

// New creates a registry over the given source.
func New(source Source, log *zap.SugaredLogger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cache, err := lru.New[string, *model.Forecaster](4)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return &Registry{source: source, log: log, cache: cache}, nil
}

// Current resolves and loads the current model, reusing a cached load when
// the source still points at the same artifact.
func (r *Registry) Current() (*model.Forecaster, error) {
	path, err := r.source.Resolve()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.cache.Get(path); ok {
		return f, nil
	}

	f := model.NewForecaster(model.DefaultParams(), r.log)
	if err := f.Load(path); err != nil {
		return nil, fmt.Errorf("registry: load %s: %w", path, err)
	}
	r.cache.Add(path, f)
	r.log.Infow("model artifact loaded",
		"path", path, "model", f.Name(), "version", f.Version())
	return f, nil
}
