package transforms

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// Factory builds one transform kind. Build reads its parameters from the
// entry and records the result on the build context.
type Factory interface {
	Kind() string
	Build(bc *BuildContext, e *Entry) error
}

// FactoryFunc adapts a function to a Factory for kind.
type FactoryFunc func(bc *BuildContext, e *Entry) error

type funcFactory struct {
	kind string
	fn   FactoryFunc
}

func (f funcFactory) Kind() string {
	return f.kind
}

func (f funcFactory) Build(bc *BuildContext, e *Entry) error {
	return f.fn(bc, e)
}

// NewFactory returns a Factory for kind backed by fn.
func NewFactory(kind string, fn FactoryFunc) Factory {
	return funcFactory{kind: kind, fn: fn}
}

// Registry maps kind keys to factories. Lookups are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a new registry holding every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range builtinFactories() {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds f. Registering a kind twice is an error.
func (r *Registry) Register(f Factory) error {
	kind := strings.TrimSpace(f.Kind())
	if kind == "" {
		return fmt.Errorf("factory kind must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(kind)
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("transform kind %s already registered", kind)
	}
	r.factories[key] = f
	return nil
}

// Lookup returns the factory for kind.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[strings.ToLower(kind)]
	return f, ok
}

// Kinds returns the registered kind keys, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for _, f := range r.factories {
		kinds = append(kinds, f.Kind())
	}
	sort.Strings(kinds)
	return kinds
}

// resolve finds the single kind key carried by e.
func (r *Registry) resolve(e *Entry) (Factory, error) {
	if len(e.names) == 0 {
		return nil, fmt.Errorf("%w: empty entry", ErrUnknownTransformKind)
	}

	var (
		found    Factory
		foundKey string
		kinds    []string
	)
	for key, name := range e.names {
		if f, ok := r.Lookup(key); ok {
			found, foundKey = f, key
			kinds = append(kinds, name)
		}
	}

	switch len(kinds) {
	case 0:
		keys := make([]string, 0, len(e.names))
		for _, name := range e.names {
			keys = append(keys, name)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: no kind among keys %s", ErrUnknownTransformKind, strings.Join(keys, ", "))
	case 1:
		e.kind = found.Kind()
		e.consumed[foundKey] = true
		return found, nil
	default:
		sort.Strings(kinds)
		return nil, invalidParam("entry names more than one kind: %s", strings.Join(kinds, ", "))
	}
}

func builtinFactories() []Factory {
	return []Factory{
		NewFactory(config.TransformPathSet, buildPathString(PathModeSet)),
		NewFactory(config.TransformPathPrefix, buildPathString(PathModePrefix)),
		NewFactory(config.TransformPathRemovePrefix, buildPathString(PathModeRemovePrefix)),
		NewFactory(config.TransformPathRouteValues, buildPathRouteValues),
		NewFactory(config.TransformRequestHeadersCopy, buildRequestHeadersCopy),
		NewFactory(config.TransformRequestHeaderOriginalHost, buildRequestHeaderOriginalHost),
		NewFactory(config.TransformRequestHeader, buildRequestHeader),
		NewFactory(config.TransformResponseHeader, buildResponseHeader(false)),
		NewFactory(config.TransformResponseTrailer, buildResponseHeader(true)),
		NewFactory(config.TransformClientCert, buildClientCert),
		NewFactory(config.TransformXForwarded, buildXForwarded),
		NewFactory(config.TransformForwarded, buildForwarded),
		NewFactory(config.TransformHTTPMethodChange, buildHTTPMethodChange),
		NewFactory(config.TransformQueryValueParameter, buildQueryValueParameter),
		NewFactory(config.TransformQueryRouteParameter, buildQueryRouteParameter),
		NewFactory(config.TransformQueryRemoveParameter, buildQueryRemoveParameter),
	}
}
