package exercise

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned by Get for ids that are not registered
	ErrNotFound = errors.New("exercise not found")
	// ErrDefaultMissing means the registry cannot serve the default exercise.
	// This is a fatal configuration error.
	ErrDefaultMissing = errors.New("default exercise '" + DefaultID + "' is not registered")
)

// Registry holds all available exercise definitions
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	aliases     map[string]string
}

// NewRegistry creates an empty exercise registry
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
		aliases:     make(map[string]string),
	}
}

// Register adds a definition. Definitions failing validation are still
// stored so that lookups can report and fall back; a warning is logged.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}

	logger := log.WithField("exercise", def.ID)
	if err := def.Validate(); err != nil {
		logger.Warnf("exercise definition is invalid: %s", err)
	} else if sum, mismatch := def.CycleMismatch(); mismatch {
		logger.Warnf("cycle duration %.2fs does not match phase sum %.2fs, using declared cycle", def.CycleDurationSeconds, sum)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.ID] = def
	for _, alias := range def.Aliases {
		r.aliases[alias] = def.ID
	}
	return nil
}

// LoadFromFile loads an exercise from a YAML file
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read exercise file: %w", err)
	}
	return r.load(data, path)
}

// LoadFromDir loads all exercises from a directory
func (r *Registry) LoadFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read exercises directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if err := r.LoadFromFile(p); err != nil {
			return fmt.Errorf("failed to load exercise from %s: %w", p, err)
		}
	}

	return nil
}

// LoadFromFS loads exercises from a directory of an fs.FS (an embed.FS for the
// built-ins)
func (r *Registry) LoadFromFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read embedded exercises: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		p := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", p, err)
		}
		if err := r.load(data, p); err != nil {
			return err
		}
	}

	return nil
}

func (r *Registry) load(data []byte, source string) error {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse exercise YAML from %s: %w", source, err)
	}
	return r.Register(&def)
}

// Get retrieves an exercise by id or alias without any fallback
func (r *Registry) Get(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

func (r *Registry) lookup(id string) (*Definition, error) {
	if def, ok := r.definitions[id]; ok {
		return def, nil
	}
	if target, ok := r.aliases[id]; ok {
		if def, ok := r.definitions[target]; ok {
			return def, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", ErrNotFound, id)
}

// GetExercise returns the definition for id. Unknown ids and definitions that
// fail validation fall back to the default exercise with a warning. The only
// error is ErrDefaultMissing.
func (r *Registry) GetExercise(id string) (*Definition, error) {
	def, _, err := r.Resolve(id)
	return def, err
}

// Resolve is GetExercise that also reports whether the default was
// substituted for the requested id.
func (r *Registry) Resolve(id string) (*Definition, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	logger := log.WithField("exercise", id)
	def, err := r.lookup(id)
	if err == nil {
		verr := def.Validate()
		if verr == nil {
			return def, false, nil
		}
		logger.Warnf("exercise failed validation, falling back to %s: %s", DefaultID, verr)
	} else {
		logger.Warnf("unknown exercise, falling back to %s", DefaultID)
	}

	fallback, ok := r.definitions[DefaultID]
	if !ok || fallback.Validate() != nil {
		return nil, false, ErrDefaultMissing
	}
	return fallback, true, nil
}

// List returns all exercise ids, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListWithDescriptions returns all exercises with their descriptions
func (r *Registry) ListWithDescriptions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]string, len(r.definitions))
	for id, def := range r.definitions {
		result[id] = def.Description
	}
	return result
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
