package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	transcriber map[string]func(ProviderEntry) (stt.Transcriber, error)
	device      map[string]func(CaptureConfig) (audio.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcriber: make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		device:      make(map[string]func(CaptureConfig) (audio.Device, error)),
	}
}

// RegisterTranscriber registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// RegisterDevice registers a capture device factory under name.
func (r *Registry) RegisterDevice(name string, factory func(CaptureConfig) (audio.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.device[name] = factory
}

// CreateTranscriber instantiates a transcriber using the factory registered
// under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDevice instantiates a capture device using the factory registered
// under c.Device.
func (r *Registry) CreateDevice(c CaptureConfig) (audio.Device, error) {
	r.mu.RLock()
	factory, ok := r.device[c.Device]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrProviderNotRegistered, c.Device)
	}
	return factory(c)
}

// TranscriberNames returns the registered transcriber names, sorted.
func (r *Registry) TranscriberNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transcriber))
	for n := range r.transcriber {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
