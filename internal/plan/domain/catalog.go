package domain

import (
	"strings"

	"github.com/smallbiznis/invoicely/internal/config"
)

// FromDefinition maps a catalog entry onto a Plan without an ID.
func FromDefinition(def config.PlanDefinition) Plan {
	interval, err := ParseInterval(def.Interval)
	if err != nil {
		interval = IntervalMonthly
	}
	return Plan{
		Name:       strings.TrimSpace(def.Name),
		PriceMinor: def.PriceMinor,
		Currency:   strings.ToUpper(strings.TrimSpace(def.Currency)),
		Interval:   interval,
		Limits: Limits{
			Businesses: Limit(def.Limits.Businesses),
			Clients:    Limit(def.Limits.Clients),
			Invoices:   Limit(def.Limits.Invoices),
			Receipts:   Limit(def.Limits.Receipts),
			Expenses:   Limit(def.Limits.Expenses),
		},
	}
}

// BuiltinFree is used whenever the Free row cannot be read, so limit checks
// still fail closed.
func BuiltinFree() Plan {
	for _, def := range config.DefaultPlanCatalog().Plans {
		if strings.EqualFold(def.Name, config.FreePlanName) {
			return FromDefinition(def)
		}
	}
	return Plan{Name: config.FreePlanName, Interval: IntervalMonthly}
}
