package billing

import (
	"github.com/smallbiznis/invoicely/internal/billing/checkout"
	"github.com/smallbiznis/invoicely/internal/billing/repository"
	"github.com/smallbiznis/invoicely/internal/billing/verification"
	"github.com/smallbiznis/invoicely/internal/billing/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(repository.Provide),
	fx.Provide(webhook.NewService),
	fx.Provide(verification.NewService),
	fx.Provide(checkout.NewService),
)
