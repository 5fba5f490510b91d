package finance

import (
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/finance/repository"
	"github.com/smallbiznis/encore/internal/finance/service"
	"github.com/smallbiznis/encore/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("finance.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(l *ratelimit.Locker) financedomain.Locker { return l }),
	fx.Provide(service.NewService),
)
