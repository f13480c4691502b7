// Package templates holds the board templates new boards are created from.
// Built-in templates are embedded in the binary; an optional directory of
// YAML files adds to (or overrides) them and is hot-reloaded by Watch.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Registry is a concurrency-safe set of templates keyed by id.
type Registry struct {
	mu      sync.RWMutex
	builtin map[string]models.Template
	saved   map[string]models.Template // registered at runtime from boards
	custom  map[string]models.Template // loaded from the template directory
	files   map[string]string          // file path -> template id
}

// New returns a registry seeded with the embedded built-in templates.
func New() (*Registry, error) {
	r := &Registry{
		builtin: make(map[string]models.Template),
		saved:   make(map[string]models.Template),
		custom:  make(map[string]models.Template),
		files:   make(map[string]string),
	}
	err := fs.WalkDir(builtinFS, "builtin", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return err
		}
		t, err := Parse(data)
		if err != nil {
			return fmt.Errorf("templates: %s: %w", path, err)
		}
		t.Builtin = true
		r.builtin[t.ID] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Parse decodes and validates one YAML template.
func Parse(data []byte) (models.Template, error) {
	var t models.Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if err := validate(t); err != nil {
		return t, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return t, nil
}

func validate(t models.Template) error {
	if err := validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Name, validation.Required),
		validation.Field(&t.Columns, validation.Required),
	); err != nil {
		return err
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.ID == "" {
			return fmt.Errorf("column %q: missing id", c.Title)
		}
		if seen[c.ID] {
			return fmt.Errorf("column %q: duplicate id", c.ID)
		}
		seen[c.ID] = true
		if !slices.Contains(models.ColumnTypes, c.Type) {
			return fmt.Errorf("column %q: unknown type %q", c.ID, c.Type)
		}
	}
	for _, v := range t.Views {
		if v.GroupBy != "" && !seen[v.GroupBy] {
			return fmt.Errorf("view %q: group_by references unknown column %q", v.ID, v.GroupBy)
		}
	}
	return nil
}

// List returns every template sorted by category then name. Directory
// templates shadow saved ones, which shadow built-ins with the same id.
func (r *Registry) List() []models.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Template, 0, len(r.builtin)+len(r.saved)+len(r.custom))
	for id, t := range r.builtin {
		if !shadowed(id, r.saved, r.custom) {
			out = append(out, t)
		}
	}
	for id, t := range r.saved {
		if !shadowed(id, r.custom) {
			out = append(out, t)
		}
	}
	for _, t := range r.custom {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.custom[id]; ok {
		return t, nil
	}
	if t, ok := r.saved[id]; ok {
		return t, nil
	}
	if t, ok := r.builtin[id]; ok {
		return t, nil
	}
	return models.Template{}, fmt.Errorf("template %q: %w", id, apperr.ErrNotFound)
}

func shadowed(id string, layers ...map[string]models.Template) bool {
	for _, l := range layers {
		if _, ok := l[id]; ok {
			return true
		}
	}
	return false
}

// Register validates and adds a template built at runtime, such as a board
// saved as a template.
func (r *Registry) Register(t models.Template) error {
	if err := validate(t); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	t.Builtin = false
	r.mu.Lock()
	r.saved[t.ID] = t
	r.mu.Unlock()
	return nil
}

// Len returns the number of distinct template ids.
func (r *Registry) Len() int {
	return len(r.List())
}

// ByBusinessApp returns the first template registered for a business app.
func (r *Registry) ByBusinessApp(app string) (models.Template, error) {
	for _, t := range r.List() {
		if t.BusinessApp == app {
			return t, nil
		}
	}
	return models.Template{}, fmt.Errorf("business app %q: %w", app, apperr.ErrNotFound)
}

// LoadDir replaces the directory templates with the YAML files under dir.
// Invalid files are logged and skipped. It returns the number loaded.
func (r *Registry) LoadDir(dir string, logger *slog.Logger) (int, error) {
	custom := make(map[string]models.Template)
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTemplateFile(path) {
			return nil
		}
		t, err := readTemplate(path)
		if err != nil {
			logger.Warn("templates: skip invalid file", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		custom[t.ID] = t
		files[path] = t.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("templates: load %s: %w", dir, err)
	}
	r.mu.Lock()
	r.custom = custom
	r.files = files
	r.mu.Unlock()
	return len(custom), nil
}

// Put loads or reloads one template file.
func (r *Registry) Put(path string) (models.Template, error) {
	t, err := readTemplate(path)
	if err != nil {
		return t, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.files[path]; ok && old != t.ID {
		delete(r.custom, old)
	}
	r.custom[t.ID] = t
	r.files[path] = t.ID
	return t, nil
}

// Remove forgets the template loaded from path. It returns the removed id.
func (r *Registry) Remove(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.files[path]
	if !ok {
		return "", false
	}
	delete(r.files, path)
	delete(r.custom, id)
	return id, true
}

func readTemplate(path string) (models.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Template{}, err
	}
	return Parse(data)
}

func isTemplateFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
