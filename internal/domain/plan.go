package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	ID           int
	Name         string
	DurationDays int
	Price        decimal.Decimal
}

func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// Catalog is the fixed list of plans offered by the bot.
var Catalog = []Plan{
	{ID: 1, Name: "Movies Only (1 Month)", DurationDays: 30, Price: decimal.RequireFromString("99.00")},
	{ID: 2, Name: "Adult Only (1 Month)", DurationDays: 30, Price: decimal.RequireFromString("149.00")},
	{ID: 3, Name: "Movies+Adult (1 Month)", DurationDays: 30, Price: decimal.RequireFromString("199.00")},
}

func FindPlan(id int) (Plan, error) {
	for _, p := range Catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}
