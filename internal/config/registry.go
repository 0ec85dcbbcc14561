package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/podium/pkg/landmark"
	"github.com/MrWong99/podium/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// DetectorSpec is the resolved input to a detector factory.
type DetectorSpec struct {
	Modality landmark.Modality

	// ModelPath is the resolved model file, or "" when none was found.
	ModelPath string

	// RuntimeLibrary is the inference runtime shared library, if any.
	RuntimeLibrary string

	// Options are the entry's backend-specific values.
	Options map[string]any
}

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu          sync.RWMutex
	detector    map[string]func(DetectorSpec) (landmark.Detector, error)
	transcriber map[string]func(ProviderEntry) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		detector:    make(map[string]func(DetectorSpec) (landmark.Detector, error)),
		transcriber: make(map[string]func(ProviderEntry) (stt.Provider, error)),
	}
}

// RegisterDetector registers a landmark detector factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterDetector(name string, factory func(DetectorSpec) (landmark.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector[name] = factory
}

// RegisterTranscriber registers a transcriber factory under name.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// CreateDetector instantiates a detector using the factory registered under
// name. Returns [ErrProviderNotRegistered] if no factory has been registered
// for that name.
func (r *Registry) CreateDetector(name string, spec DetectorSpec) (landmark.Detector, error) {
	r.mu.RLock()
	factory, ok := r.detector[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: detector/%q", ErrProviderNotRegistered, name)
	}
	return factory(spec)
}

// CreateTranscriber instantiates a transcriber using the factory registered
// under entry.Name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcriber/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
