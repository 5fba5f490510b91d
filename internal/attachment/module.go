package attachment

import (
	"github.com/smallbiznis/encore/internal/attachment/cdn"
	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/attachment/local"
	"github.com/smallbiznis/encore/internal/config"
	obsmetrics "github.com/smallbiznis/encore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("attachment",
	fx.Provide(NewDefaultRegistry),
	fx.Provide(NewStore),
)

func NewDefaultRegistry() *Registry {
	return NewRegistry(local.Factory{}, cdn.Factory{})
}

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Registry *Registry
}

func NewStore(p Params) (domain.Store, error) {
	providers, skipped, err := p.Registry.Build(p.Cfg.Attachment.Providers, p.Cfg.Attachment)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(providers))
	for _, provider := range providers {
		names = append(names, provider.Name())
	}
	p.Log.Info("attachment providers configured",
		zap.Strings("providers", names),
		zap.Strings("skipped", skipped),
	)
	return NewChain(p.Log, p.Metrics, providers...), nil
}
