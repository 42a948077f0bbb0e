package service

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/logging"
	projectdomain "github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/reports/domain"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
)

const unknownClient = "Unknown Client"

var hundred = decimal.NewFromInt(100)

type Projects interface {
	List(ctx context.Context) ([]*projectdomain.Project, error)
}

type Clients interface {
	Lookup(ctx context.Context, id string) (*clientdomain.Client, error)
}

type Timesheets interface {
	Query(ctx context.Context, filter tsdomain.ListFilter) ([]*tsdomain.Timesheet, error)
}

type RateLookup interface {
	Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type ReportService struct {
	projects   Projects
	clients    Clients
	timesheets Timesheets
	rates      RateLookup
}

func NewReportService(projects Projects, clients Clients, timesheets Timesheets, rates RateLookup) *ReportService {
	return &ReportService{projects: projects, clients: clients, timesheets: timesheets, rates: rates}
}

// Budget reports every non-template project's ledger, by project name.
func (s *ReportService) Budget(ctx context.Context, actor auth.Principal, f domain.Filter) (*domain.BudgetReport, error) {
	if err := auth.Authorize(actor, auth.OpReportRead, ""); err != nil {
		return nil, err
	}
	all, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}

	names := s.clientNames(ctx)
	report := &domain.BudgetReport{Projects: []domain.BudgetLine{}}
	for _, p := range all {
		if p.IsTemplate || (f.ClientID != "" && p.ClientID != f.ClientID) {
			continue
		}
		line := domain.BudgetLine{
			ProjectID:       p.ID,
			ProjectName:     p.Name,
			ClientID:        p.ClientID,
			ClientName:      names(p.ClientID),
			Status:          string(p.Status),
			Budget:          p.Budget,
			BudgetRemaining: p.BudgetRemaining,
			Consumed:        p.Consumed(),
			PercentUsed:     decimal.Zero,
			Overrun:         p.BudgetRemaining.IsNegative(),
		}
		if p.Budget.IsPositive() {
			line.PercentUsed = line.Consumed.Mul(hundred).Div(p.Budget).Round(2)
		}
		report.Projects = append(report.Projects, line)
		report.TotalBudget = report.TotalBudget.Add(line.Budget)
		report.TotalConsumed = report.TotalConsumed.Add(line.Consumed)
		report.TotalRemaining = report.TotalRemaining.Add(line.BudgetRemaining)
		if line.Overrun {
			report.OverrunCount++
		}
	}
	sort.Slice(report.Projects, func(i, j int) bool { return report.Projects[i].ProjectName < report.Projects[j].ProjectName })
	return report, nil
}

// Unbilled groups the billable hours of Approved, uninvoiced timesheets by
// the client of each entry's project. A timesheet spanning two clients is
// listed under both.
func (s *ReportService) Unbilled(ctx context.Context, actor auth.Principal, f domain.Filter) (*domain.UnbilledReport, error) {
	if err := auth.Authorize(actor, auth.OpReportRead, ""); err != nil {
		return nil, err
	}
	sheets, err := s.timesheets.Query(ctx, tsdomain.ListFilter{
		Statuses:   []tsdomain.Status{tsdomain.StatusApproved},
		Uninvoiced: true,
	})
	if err != nil {
		return nil, err
	}
	all, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	clientOf := make(map[string]string, len(all))
	for _, p := range all {
		clientOf[p.ID] = p.ClientID
	}

	var owners []string
	seen := map[string]bool{}
	for _, t := range sheets {
		if !seen[t.UserID] {
			seen[t.UserID] = true
			owners = append(owners, t.UserID)
		}
	}
	rates, err := s.rates.Rates(ctx, owners)
	if err != nil {
		return nil, err
	}

	lines := map[string]*domain.UnbilledLine{}
	for _, t := range sheets {
		rate := rates[t.UserID]
		for _, cost := range t.BillableCosts(rate) {
			clientID := clientOf[cost.ProjectID]
			if f.ClientID != "" && clientID != f.ClientID {
				continue
			}
			line, ok := lines[clientID]
			if !ok {
				line = &domain.UnbilledLine{ClientID: clientID, Timesheets: []string{}}
				lines[clientID] = line
			}
			if n := len(line.Timesheets); n == 0 || line.Timesheets[n-1] != t.ID {
				line.Timesheets = append(line.Timesheets, t.ID)
			}
			line.BillableHours = line.BillableHours.Add(cost.Hours)
			line.EstimatedAmount = line.EstimatedAmount.Add(cost.Amount)
		}
	}

	names := s.clientNames(ctx)
	report := &domain.UnbilledReport{Clients: make([]domain.UnbilledLine, 0, len(lines))}
	for id, line := range lines {
		line.ClientName = names(id)
		report.Clients = append(report.Clients, *line)
		report.BillableHours = report.BillableHours.Add(line.BillableHours)
		report.EstimatedAmount = report.EstimatedAmount.Add(line.EstimatedAmount)
	}
	sort.Slice(report.Clients, func(i, j int) bool { return report.Clients[i].ClientName < report.Clients[j].ClientName })
	return report, nil
}

// clientNames memoizes client lookups for one report.
func (s *ReportService) clientNames(ctx context.Context) func(id string) string {
	cache := map[string]string{}
	return func(id string) string {
		if name, ok := cache[id]; ok {
			return name
		}
		name := unknownClient
		if id != "" {
			c, err := s.clients.Lookup(ctx, id)
			switch {
			case err == nil:
				name = c.Name
			case !apperr.Is(err, apperr.KindNotFound):
				logging.FromContext(ctx).Warnf("reports.client", "lookup %s: %v", id, err)
			}
		}
		cache[id] = name
		return name
	}
}
