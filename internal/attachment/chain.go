package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/encore/internal/attachment/domain"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	"go.uber.org/zap"
)

// Chain tries its providers in order and returns the first successful upload.
type Chain struct {
	providers []domain.Provider
	byName    map[string]domain.Provider
	log       *zap.Logger
	metrics   *obsmetrics.Metrics
}

func NewChain(log *zap.Logger, metrics *obsmetrics.Metrics, providers ...domain.Provider) *Chain {
	byName := make(map[string]domain.Provider, len(providers))
	for _, p := range providers {
		byName[normalize(p.Name())] = p
	}
	return &Chain{
		providers: providers,
		byName:    byName,
		log:       log.Named("attachment.chain"),
		metrics:   metrics,
	}
}

func (c *Chain) Store(ctx context.Context, file domain.File, folder string) (domain.Stored, error) {
	if len(file.Data) == 0 {
		return domain.Stored{}, domain.ErrEmptyFile
	}
	if len(c.providers) == 0 {
		return domain.Stored{}, domain.ErrNoProviders
	}

	var errs []error
	for i, provider := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		stored, err := provider.Store(ctx, file, folder)
		if err == nil {
			if i > 0 {
				c.metrics.RecordAttachmentFallback(ctx, provider.Name())
				c.log.Info("attachment stored by fallback provider",
					zap.String("provider", provider.Name()),
					zap.Int("attempt", i+1),
				)
			}
			return stored, nil
		}
		c.log.Warn("attachment provider failed",
			zap.String("provider", provider.Name()),
			zap.String("folder", folder),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
	}
	return domain.Stored{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, errors.Join(errs...))
}

// Delete removes the object from the backend recorded alongside its URL.
func (c *Chain) Delete(ctx context.Context, stored domain.Stored) error {
	provider, ok := c.byName[normalize(stored.Provider)]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, stored.Provider)
	}
	return provider.Delete(ctx, stored.URL)
}
