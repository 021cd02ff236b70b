package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/atriumhq/atrium/pkg/observability"
)

// ErrTemplateNotFound indicates no blueprint with the requested slug exists.
var ErrTemplateNotFound = errors.New("template not found")

// Summary is the catalog view of a blueprint.
type Summary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Modules     int    `json:"modules"`
	Workflows   int    `json:"workflows"`
	Dashboards  int    `json:"dashboards"`
}

// Registry loads template blueprints from a directory of YAML files and
// serves them from an LRU cache. Watch keeps the catalog fresh when
// files change on disk.
type Registry struct {
	dir     string
	log     *observability.Logger
	metrics *observability.Metrics
	cache   *lru.Cache[string, *Blueprint]

	mu    sync.RWMutex
	files map[string]string // slug -> path
}

// NewRegistry scans dir and builds the catalog. metrics may be nil.
func NewRegistry(dir string, cacheSize int, log *observability.Logger, metrics *observability.Metrics) (*Registry, error) {
	cache, err := lru.New[string, *Blueprint](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}

	r := &Registry{
		dir:     dir,
		log:     log,
		metrics: metrics,
		cache:   cache,
		files:   make(map[string]string),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func isBlueprintFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// Reload rescans the directory and drops cached blueprints.
func (r *Registry) Reload() error {
	dirents, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read templates dir %s: %w", r.dir, err)
	}

	files := make(map[string]string)
	for _, ent := range dirents {
		if ent.IsDir() || !isBlueprintFile(ent.Name()) {
			continue
		}

		path := filepath.Join(r.dir, ent.Name())
		bp, err := loadBlueprint(path)
		if err != nil {
			r.log.WithError(err).WithField("path", path).Warn("skipping invalid template blueprint")
			continue
		}
		if other, dup := files[bp.Slug]; dup {
			r.log.WithFields(map[string]any{
				"slug":  bp.Slug,
				"path":  path,
				"other": other,
			}).Warn("duplicate template slug, keeping first")
			continue
		}
		files[bp.Slug] = path
	}

	r.mu.Lock()
	r.files = files
	r.mu.Unlock()
	r.cache.Purge()

	r.log.WithField("templates", len(files)).Info("template registry loaded")
	return nil
}

func loadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}

	bp := &Blueprint{}
	if err := yaml.Unmarshal(data, bp); err != nil {
		return nil, fmt.Errorf("failed to parse blueprint: %w", err)
	}
	if bp.Slug == "" {
		base := filepath.Base(path)
		bp.Slug = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return bp, nil
}

// Get returns the blueprint with the given slug.
func (r *Registry) Get(slug string) (*Blueprint, error) {
	if bp, ok := r.cache.Get(slug); ok {
		r.observeCache("hit")
		return bp, nil
	}
	r.observeCache("miss")

	r.mu.RLock()
	path, ok := r.files[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTemplateNotFound
	}

	bp, err := loadBlueprint(path)
	if err != nil {
		return nil, err
	}
	r.cache.Add(slug, bp)
	return bp, nil
}

func (r *Registry) observeCache(result string) {
	if r.metrics != nil {
		r.metrics.TemplateCacheHitsTotal.WithLabelValues(result).Inc()
	}
}

// List returns catalog summaries sorted by slug.
func (r *Registry) List() ([]*Summary, error) {
	r.mu.RLock()
	slugs := make([]string, 0, len(r.files))
	for slug := range r.files {
		slugs = append(slugs, slug)
	}
	r.mu.RUnlock()
	sort.Strings(slugs)

	result := make([]*Summary, 0, len(slugs))
	for _, slug := range slugs {
		bp, err := r.Get(slug)
		if err != nil {
			return nil, err
		}
		result = append(result, &Summary{
			Slug:        bp.Slug,
			Name:        bp.Name,
			Description: bp.Description,
			Industry:    bp.Industry,
			Modules:     len(bp.Modules),
			Workflows:   len(bp.Workflows),
			Dashboards:  len(bp.Dashboards),
		})
	}
	return result, nil
}

// Watch reloads the catalog when blueprint files change. It blocks until
// ctx is cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("failed to watch templates dir %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isBlueprintFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.log.WithFields(map[string]any{
				"path": event.Name,
				"op":   event.Op.String(),
			}).Info("template blueprint changed, reloading")
			if err := r.Reload(); err != nil {
				r.log.WithError(err).Error("template registry reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Error("template watcher error")
		}
	}
}
