package quality

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/logger"
	"github.com/newthinker/reversion/internal/storage/archive"
)

const (
	versionLayout = "20060102T150405Z"
	latestFile    = "latest.json"
)

// Repository loads and saves trained models
type Repository interface {
	Load(ctx context.Context) (*Model, error)
	Save(ctx context.Context, m *Model) error
}

// ArchiveRepository stores models as JSON under models/<name>/ in an
// archive backend: latest.json plus one file per version.
type ArchiveRepository struct {
	store  archive.Storage
	name   string
	keep   int
	logger *zap.Logger
}

// NewArchiveRepository creates a repository keeping at most keep versions
// besides latest.json. keep <= 0 keeps every version.
func NewArchiveRepository(store archive.Storage, name string, keep int, log *zap.Logger) *ArchiveRepository {
	if name == "" {
		name = "quality"
	}
	return &ArchiveRepository{
		store:  store,
		name:   name,
		keep:   keep,
		logger: logger.Component(log, "model_repository", zap.String("model", name)),
	}
}

func (r *ArchiveRepository) dir() string {
	return path.Join("models", r.name)
}

// LatestPath returns the path of the current model
func (r *ArchiveRepository) LatestPath() string {
	return path.Join(r.dir(), latestFile)
}

// Load returns the latest model, or ErrModelUnavailable when none is stored.
func (r *ArchiveRepository) Load(ctx context.Context) (*Model, error) {
	var m Model
	if err := archive.ReadJSON(ctx, r.store, r.LatestPath(), &m); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return nil, core.WrapError(core.ErrModelUnavailable, err)
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if m.Kind != ModelKind || m.Bayes == nil {
		return nil, core.Errorf(core.ErrModelUnavailable, "unsupported model kind %q", m.Kind)
	}
	return &m, nil
}

// Save writes m as a new version and as latest, then prunes old versions.
func (r *ArchiveRepository) Save(ctx context.Context, m *Model) error {
	if m == nil || m.Bayes == nil {
		return core.Errorf(core.ErrInvalidArgument, "empty model")
	}
	if m.Version == "" {
		m.Version = m.TrainedAt.UTC().Format(versionLayout)
	}

	versionPath := path.Join(r.dir(), m.Version+".json")
	if err := archive.WriteJSON(ctx, r.store, versionPath, m); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := archive.WriteJSON(ctx, r.store, r.LatestPath(), m); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	r.logger.Info("model saved", zap.String("version", m.Version), zap.String("path", versionPath))

	return r.prune(ctx)
}

// Versions lists stored version paths, oldest first
func (r *ArchiveRepository) Versions(ctx context.Context) ([]string, error) {
	paths, err := r.store.List(ctx, r.dir())
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	versions := make([]string, 0, len(paths))
	for _, p := range paths {
		if path.Base(p) == latestFile || !strings.HasSuffix(p, ".json") {
			continue
		}
		versions = append(versions, p)
	}
	return versions, nil
}

func (r *ArchiveRepository) prune(ctx context.Context) error {
	if r.keep <= 0 {
		return nil
	}
	versions, err := r.Versions(ctx)
	if err != nil {
		return err
	}
	for len(versions) > r.keep {
		if err := r.store.Delete(ctx, versions[0]); err != nil && !errors.Is(err, archive.ErrNotFound) {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("pruning %s: %w", versions[0], err))
		}
		r.logger.Debug("model version pruned", zap.String("path", versions[0]))
		versions = versions[1:]
	}
	return nil
}
