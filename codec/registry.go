package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-gateway/core"
)

var ErrNoConverter = errors.New("codec: no suitable converter")

// Registry holds converters in registration order. Negotiation walks the
// converters in that order and, for each, the acceptable media types in the
// order the client listed them.
type Registry struct {
	mu         sync.RWMutex
	converters []Converter
	names      map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewBytesConverter())
	_ = registry.Register(NewTextConverter())
	_ = registry.Register(NewJSONConverter())
	return registry
}

func (r *Registry) Register(converter Converter) error {
	if r == nil {
		return fmt.Errorf("codec: registry is nil")
	}
	if converter == nil {
		return fmt.Errorf("codec: converter is nil")
	}
	name := normalizeName(converter.Name())
	if name == "" {
		return fmt.Errorf("codec: converter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[name]; exists {
		return fmt.Errorf("codec: converter %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.converters = append(r.converters, converter)
	return nil
}

func (r *Registry) List() []Converter {
	if r == nil {
		return []Converter{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Converter(nil), r.converters...)
}

// Encode picks the first converter able to write payload under an acceptable
// media type. A concrete contentType compatible with accept is tried first.
func (r *Registry) Encode(payload any, contentType string, accept []string) ([]byte, string, error) {
	acceptTypes := ParseMediaTypes(accept)
	converters := r.List()

	if strings.TrimSpace(contentType) != "" {
		if preferred, err := ParseMediaType(contentType); err == nil && preferred.IsConcrete() && anyCompatible(acceptTypes, preferred) {
			body, mediaType, ok, err := write(converters, payload, []MediaType{preferred})
			if err != nil {
				return nil, "", conversionFailure(err, payload, accept)
			}
			if ok {
				return body, mediaType, nil
			}
		}
	}

	body, mediaType, ok, err := write(converters, payload, acceptTypes)
	if err != nil {
		return nil, "", conversionFailure(err, payload, accept)
	}
	if !ok {
		return nil, "", conversionFailure(
			fmt.Errorf("%w for type [%T] and accept types %v", ErrNoConverter, payload, acceptTypes),
			payload,
			accept,
		)
	}
	return body, mediaType, nil
}

func write(converters []Converter, payload any, candidates []MediaType) ([]byte, string, bool, error) {
	for _, converter := range converters {
		for _, candidate := range candidates {
			if !converter.CanWrite(payload, candidate) {
				continue
			}
			var buf bytes.Buffer
			written, err := converter.Write(&buf, payload, candidate)
			if err != nil {
				return nil, "", false, err
			}
			return buf.Bytes(), written.String(), true, nil
		}
	}
	return nil, "", false, nil
}

func anyCompatible(acceptTypes []MediaType, mediaType MediaType) bool {
	for _, accepted := range acceptTypes {
		if accepted.IsCompatibleWith(mediaType) {
			return true
		}
	}
	return false
}

func conversionFailure(err error, payload any, accept []string) error {
	return core.ConversionError(err, "codec: could not convert reply", map[string]any{
		"payload_type": fmt.Sprintf("%T", payload),
		"accept":       append([]string(nil), accept...),
	})
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

var _ core.ConverterResolver = (*Registry)(nil)
