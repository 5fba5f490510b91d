package attachment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/config"
)

type Registry struct {
	factories map[string]domain.Factory
}

func NewRegistry(factories ...domain.Factory) *Registry {
	registry := &Registry{factories: map[string]domain.Factory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		name := normalize(factory.Provider())
		if name == "" {
			continue
		}
		registry.factories[name] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(name)]
	return ok
}

// Build instantiates the named providers in order. Disabled providers are skipped.
func (r *Registry) Build(names []string, cfg config.AttachmentConfig) ([]domain.Provider, []string, error) {
	providers := make([]domain.Provider, 0, len(names))
	var skipped []string
	for _, name := range names {
		factory, ok := r.factories[normalize(name)]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
		}
		provider, err := factory.New(cfg)
		if err != nil {
			if errors.Is(err, domain.ErrProviderDisabled) {
				skipped = append(skipped, name)
				continue
			}
			return nil, nil, fmt.Errorf("init attachment provider %s: %w", name, err)
		}
		providers = append(providers, provider)
	}
	if len(providers) == 0 {
		return nil, skipped, domain.ErrNoProviders
	}
	return providers, skipped, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
