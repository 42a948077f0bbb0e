package domain

import (
	"github.com/shopspring/decimal"

	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
)

// UnknownProject names a line item whose project no longer resolves.
const UnknownProject = "Unknown Project"

type group struct {
	projectID string
	hours     decimal.Decimal
	amount    decimal.Decimal
	rates     map[string]decimal.Decimal
}

// Aggregate turns the billable entries of timesheets into one line item per
// project, in first-seen order. Each timesheet is priced at its owner's rate
// from rates (missing owners bill at zero), with each entry rounded to cents
// the same way the budget ledger debits it. names maps project ids to names.
//
// A group whose contributors share one rate shows that rate; a mixed group
// shows the blended amount/hours.
func Aggregate(timesheets []*tsdomain.Timesheet, rates map[string]decimal.Decimal, names map[string]string) []Item {
	var order []string
	groups := make(map[string]*group)

	for _, t := range timesheets {
		rate := rates[t.UserID]
		for _, c := range t.BillableCosts(rate) {
			g, ok := groups[c.ProjectID]
			if !ok {
				g = &group{projectID: c.ProjectID, rates: make(map[string]decimal.Decimal)}
				groups[c.ProjectID] = g
				order = append(order, c.ProjectID)
			}
			g.hours = g.hours.Add(c.Hours)
			g.amount = g.amount.Add(c.Amount)
			g.rates[rate.String()] = rate
		}
	}

	items := make([]Item, 0, len(order))
	for _, id := range order {
		g := groups[id]
		name, ok := names[id]
		if !ok || name == "" {
			name = UnknownProject
		}
		items = append(items, Item{
			ProjectID:   id,
			Description: "Professional services - " + name,
			Quantity:    g.hours,
			Rate:        g.rate(),
			Amount:      g.amount,
		})
	}
	return items
}

func (g *group) rate() decimal.Decimal {
	if len(g.rates) == 1 {
		for _, r := range g.rates {
			return r
		}
	}
	if g.hours.IsZero() {
		return decimal.Zero
	}
	return g.amount.Div(g.hours).Round(2)
}
