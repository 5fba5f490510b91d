package ledger

import (
	"github.com/smallbiznis/encore/internal/ledger/repository"
	"github.com/smallbiznis/encore/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
