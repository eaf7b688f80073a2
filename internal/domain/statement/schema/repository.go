// Package schema validates extraction summaries against per-type schema documents.
// Schemas are OpenAPI 3 schema objects written as JSON or YAML; the defaults are
// embedded and a directory may override them.
package schema

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

//go:embed schemas/*.json
var embedded embed.FS

// ErrSchemaNotFound is returned when no schema exists for a document type.
var ErrSchemaNotFound = errors.New("schema not found")

// extensions are tried in order for every lookup.
var extensions = []string{".json", ".yaml", ".yml"}

// Repository resolves and caches schemas by document type. Files in dir take
// precedence over the embedded defaults.
type Repository struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[statement.DocumentType]*openapi3.Schema
}

// NewRepository returns a repository. An empty dir serves only embedded schemas.
func NewRepository(dir string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		dir:    dir,
		logger: logger,
		cache:  make(map[statement.DocumentType]*openapi3.Schema),
	}
}

// Get returns the compiled schema for t.
func (r *Repository) Get(t statement.DocumentType) (*openapi3.Schema, error) {
	r.mu.RLock()
	s, ok := r.cache[t]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	data, name, err := r.read(t)
	if err != nil {
		return nil, err
	}
	s, err = Parse(data, name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[t] = s
	r.mu.Unlock()

	r.logger.Debug("schema loaded", slog.String("document_type", string(t)), slog.String("source", name))
	return s, nil
}

// Available lists the document types that have a schema.
func (r *Repository) Available() []statement.DocumentType {
	var out []statement.DocumentType
	for _, t := range statement.KnownTypes {
		if _, _, err := r.read(t); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Invalidate drops every cached schema.
func (r *Repository) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[statement.DocumentType]*openapi3.Schema)
	r.mu.Unlock()
}

// Watch invalidates the cache whenever a file in the schema directory changes. It
// blocks until ctx is done. Without a directory it returns immediately.
func (r *Repository) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.Invalidate()
			r.logger.Info("schema directory changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("schema watcher error", slog.Any("error", err))
		}
	}
}

func (r *Repository) read(t statement.DocumentType) ([]byte, string, error) {
	if !t.Valid() || t == statement.Unknown {
		return nil, "", fmt.Errorf("%w: %s", ErrSchemaNotFound, t)
	}
	if r.dir != "" {
		for _, ext := range extensions {
			path := filepath.Join(r.dir, string(t)+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return data, path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("read schema %s: %w", path, err)
			}
		}
	}
	name := "schemas/" + string(t) + ".json"
	data, err := embedded.ReadFile(name)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrSchemaNotFound, t)
	}
	return data, name, nil
}

// Parse decodes and checks a schema document. YAML is recognised by the file
// extension of name.
func Parse(data []byte, name string) (*openapi3.Schema, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	}

	var s openapi3.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &s, nil
}
