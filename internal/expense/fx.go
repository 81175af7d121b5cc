package expense

import (
	"github.com/smallbiznis/invoicely/internal/expense/service"
	"go.uber.org/fx"
)

var Module = fx.Module("expense.service",
	fx.Provide(service.NewService),
)
