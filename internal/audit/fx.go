package audit

import (
	"github.com/smallbiznis/encore/internal/audit/repository"
	"github.com/smallbiznis/encore/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the audit trail written by finance record mutations.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
