package exercise

import (
	"embed"
	"fmt"
)

//go:embed exercises/*.yaml
var builtinFS embed.FS

// LoadBuiltin loads the exercises embedded in the binary
func (r *Registry) LoadBuiltin() error {
	return r.LoadFromFS(builtinFS, "exercises")
}

// NewBuiltinRegistry returns a registry holding the built-in exercises. It
// fails with ErrDefaultMissing if the default exercise is not among them.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadBuiltin(); err != nil {
		return nil, err
	}
	if _, err := r.Get(DefaultID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDefaultMissing, err)
	}
	return r, nil
}
