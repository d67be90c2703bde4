package pipeline

import (
	"sync"

	"github.com/agritrace/collection-model/internal/models"
)

// Built-in processor type keys, referenced by source configs.
const (
	ProcessorJSONExtraction = "json_extraction"
	ProcessorZipExtraction  = "zip_extraction"
)

// Factory constructs a processor from its dependencies.
type Factory func(deps Dependencies) ContentProcessor

// Registry maps processor_type strings to processor factories. Registration
// happens once at startup; Resolve is a pure lookup. Construct registries
// explicitly so tests can build isolated ones.
type Registry struct {
	mu        sync.RWMutex
	deps      Dependencies
	factories map[string]Factory
}

// NewRegistry creates an empty registry whose processors share deps.
func NewRegistry(deps Dependencies) *Registry {
	return &Registry{deps: deps, factories: make(map[string]Factory)}
}

// Register binds a processor type to its factory.
func (r *Registry) Register(processorType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[processorType] = factory
}

// Resolve returns the processor for processorType. An unknown key is a
// permanent configuration error, never retried.
func (r *Registry) Resolve(processorType string) (ContentProcessor, error) {
	r.mu.RLock()
	factory, ok := r.factories[processorType]
	r.mu.RUnlock()
	if !ok {
		return nil, Errorf(models.ErrorTypeConfig, "%w: %q", ErrProcessorNotFound, processorType)
	}
	return factory(r.deps), nil
}

// RegisterBuiltins registers the two shipped processors.
func RegisterBuiltins(r *Registry) {
	r.Register(ProcessorJSONExtraction, func(deps Dependencies) ContentProcessor {
		return NewJSONProcessor(deps)
	})
	r.Register(ProcessorZipExtraction, func(deps Dependencies) ContentProcessor {
		return NewZipProcessor(deps)
	})
}
