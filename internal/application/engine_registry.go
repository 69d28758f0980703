package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/credcheck/infrastructure/ocr"
	"github.com/ahrav/credcheck/internal/ports"
)

// Built-in recognition engine names.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

// EngineFactory creates a recognition engine from the OCR configuration.
type EngineFactory func(ctx context.Context, cfg OCRConfig) (ports.Recognizer, error)

// EngineRegistry maps engine names to factories. It comes with the
// tesseract and vision engines registered and supports adding more at
// runtime, for example a fake engine in tests.
type EngineRegistry struct {
	// factories maps engine names to their factory functions.
	factories map[string]EngineFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewEngineRegistry creates a registry with the built-in engines.
func NewEngineRegistry() *EngineRegistry {
	r := &EngineRegistry{factories: make(map[string]EngineFactory)}
	r.factories[EngineTesseract] = func(_ context.Context, cfg OCRConfig) (ports.Recognizer, error) {
		return ocr.NewTesseract(cfg.Tesseract)
	}
	r.factories[EngineVision] = func(ctx context.Context, cfg OCRConfig) (ports.Recognizer, error) {
		return ocr.NewVision(ctx, cfg.Vision)
	}
	return r
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *EngineRegistry
)

// DefaultEngineRegistry returns the process-wide registry consulted by
// ValidateConfig and Build.
func DefaultEngineRegistry() *EngineRegistry {
	defaultRegistryOnce.Do(func() { defaultRegistry = NewEngineRegistry() })
	return defaultRegistry
}

// Create builds the engine named by cfg.Engine.
func (r *EngineRegistry) Create(ctx context.Context, cfg OCRConfig) (ports.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Engine]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported ocr engine: %s", cfg.Engine)
	}

	engine, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr engine %s: %w", cfg.Engine, err)
	}
	return engine, nil
}

// Register adds or replaces the factory for name.
func (r *EngineRegistry) Register(name string, factory EngineFactory) error {
	if name == "" {
		return fmt.Errorf("engine name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for engine %s cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Has reports whether name is registered.
func (r *EngineRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Engines returns the registered names in sorted order.
func (r *EngineRegistry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
