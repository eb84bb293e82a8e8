package artifact

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchcast/internal/logger"
	"github.com/yourusername/matchcast/internal/metrics"
	"github.com/yourusername/matchcast/internal/models"
)

// Loader reads the bundle that is currently promoted.
type Loader interface {
	LoadCurrent() (*Bundle, error)
}

// Registry holds the bundle served to predictions. Readers never block;
// a reload swaps the whole bundle so no request sees a mix of two versions.
type Registry struct {
	loader  Loader
	current atomic.Pointer[Bundle]
	reload  sync.Mutex
	audit   *logger.AuditLogger
	log     *logrus.Logger
}

// NewRegistry creates an empty registry. Call Load before serving.
func NewRegistry(loader Loader, log *logrus.Logger) *Registry {
	return &Registry{
		loader: loader,
		audit:  logger.NewAuditLogger(log),
		log:    log,
	}
}

// Load reads the current artifact. A missing artifact leaves the registry
// not ready and is reported as models.ErrArtifactMissing.
func (r *Registry) Load() error {
	_, err := r.Reload()
	return err
}

// Reload re-reads CURRENT and swaps the bundle when the version changed.
// It reports whether a swap happened. On failure the previous bundle stays.
func (r *Registry) Reload() (bool, error) {
	r.reload.Lock()
	defer r.reload.Unlock()

	b, err := r.loader.LoadCurrent()
	if err != nil {
		if errors.Is(err, models.ErrArtifactMissing) {
			r.log.Warn("No current model artifact available")
		}
		return false, fmt.Errorf("failed to load current artifact: %w", err)
	}

	prev := r.current.Load()
	if prev != nil && prev.Metadata.Version == b.Metadata.Version {
		return false, nil
	}
	r.current.Store(b)

	oldVersion := ""
	if prev != nil {
		oldVersion = prev.Metadata.Version
	}
	r.audit.LogRegistryReload(oldVersion, b.Metadata.Version)
	metrics.SetModelLoaded(b.Metadata.Version, b.Metadata.Algorithm)
	return true, nil
}

// Set installs a bundle directly, used after an in-process promotion. It
// waits for any in-flight Reload so an older read cannot land afterwards.
func (r *Registry) Set(b *Bundle) {
	r.reload.Lock()
	defer r.reload.Unlock()

	prev := r.current.Swap(b)
	oldVersion := ""
	if prev != nil {
		oldVersion = prev.Metadata.Version
	}
	r.audit.LogRegistryReload(oldVersion, b.Metadata.Version)
	metrics.SetModelLoaded(b.Metadata.Version, b.Metadata.Algorithm)
}

// Current returns the active bundle, or nil when nothing is loaded.
func (r *Registry) Current() *Bundle {
	return r.current.Load()
}

// Ready reports whether a bundle is loaded.
func (r *Registry) Ready() bool {
	return r.current.Load() != nil
}

// Version returns the active version or "".
func (r *Registry) Version() string {
	if b := r.current.Load(); b != nil {
		return b.Metadata.Version
	}
	return ""
}
