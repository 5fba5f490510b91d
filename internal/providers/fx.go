package providers

import (
	"github.com/smallbiznis/encore/internal/providers/email"
	"github.com/smallbiznis/encore/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
