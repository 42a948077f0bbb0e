package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	projectdomain "github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/reports/domain"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
)

type projectList []*projectdomain.Project

func (p projectList) List(context.Context) ([]*projectdomain.Project, error) { return p, nil }

type clientMap map[string]string

func (c clientMap) Lookup(_ context.Context, id string) (*clientdomain.Client, error) {
	name, ok := c[id]
	if !ok {
		return nil, apperr.NotFound("Client not found")
	}
	return &clientdomain.Client{ID: id, Name: name}, nil
}

// sheetList applies the status and invoice filters the service relies on.
type sheetList []*tsdomain.Timesheet

func (s sheetList) Query(_ context.Context, f tsdomain.ListFilter) ([]*tsdomain.Timesheet, error) {
	var out []*tsdomain.Timesheet
	for _, t := range s {
		if len(f.Statuses) > 0 && t.Status != f.Statuses[0] {
			continue
		}
		if f.Uninvoiced && t.Invoiced() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type rateMap map[string]decimal.Decimal

func (r rateMap) Rates(context.Context, []string) (map[string]decimal.Decimal, error) { return r, nil }

var manager = auth.Principal{ID: "mgr-1", Role: auth.RoleManager}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func project(id, name, client, budget, remaining string) *projectdomain.Project {
	return &projectdomain.Project{
		ID: id, Name: name, ClientID: client, Status: projectdomain.StatusActive,
		Budget: dec(budget), BudgetRemaining: dec(remaining),
	}
}

func entry(project, hours string, billable bool) tsdomain.Entry {
	return tsdomain.Entry{ProjectID: project, Hours: dec(hours), Billable: billable}
}

func fixture() *ReportService {
	projects := projectList{
		project("p-web", "Website", "c-acme", "10000", "7000"),
		project("p-app", "App", "c-acme", "5000", "-250"),
		project("p-ops", "Ops", "c-globex", "0", "0"),
		{ID: "p-tpl", Name: "Template", IsTemplate: true},
	}
	sheets := sheetList{
		{ID: "ts-1", UserID: "emp-1", Status: tsdomain.StatusApproved, Entries: []tsdomain.Entry{
			entry("p-web", "5", true), entry("p-app", "2", true), entry("p-web", "1", false),
		}},
		{ID: "ts-2", UserID: "emp-2", Status: tsdomain.StatusApproved, Entries: []tsdomain.Entry{
			entry("p-ops", "3", true), entry("p-gone", "1", true),
		}},
		{ID: "ts-3", UserID: "emp-1", Status: tsdomain.StatusApproved, InvoiceID: "inv-1", Entries: []tsdomain.Entry{
			entry("p-web", "8", true),
		}},
		{ID: "ts-4", UserID: "emp-1", Status: tsdomain.StatusSubmitted, Entries: []tsdomain.Entry{
			entry("p-web", "8", true),
		}},
	}
	return NewReportService(projects, clientMap{"c-acme": "Acme", "c-globex": "Globex"}, sheets,
		rateMap{"emp-1": dec("100"), "emp-2": dec("50")})
}

func TestReportService_Budget(t *testing.T) {
	ctx := context.Background()

	t.Run("reports each project's ledger", func(t *testing.T) {
		r, err := fixture().Budget(ctx, manager, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, r.Projects, 3)

		app := r.Projects[0]
		assert.Equal(t, "App", app.ProjectName)
		assert.Equal(t, "Acme", app.ClientName)
		assert.Equal(t, "5250", app.Consumed.String())
		assert.Equal(t, "105", app.PercentUsed.String())
		assert.True(t, app.Overrun)

		ops := r.Projects[1]
		assert.True(t, ops.PercentUsed.IsZero())
		assert.False(t, ops.Overrun)

		web := r.Projects[2]
		assert.Equal(t, "3000", web.Consumed.String())
		assert.Equal(t, "30", web.PercentUsed.String())

		assert.Equal(t, "15000", r.TotalBudget.String())
		assert.Equal(t, "8250", r.TotalConsumed.String())
		assert.Equal(t, "6750", r.TotalRemaining.String())
		assert.Equal(t, 1, r.OverrunCount)
	})

	t.Run("filters by client", func(t *testing.T) {
		r, err := fixture().Budget(ctx, manager, domain.Filter{ClientID: "c-globex"})
		require.NoError(t, err)
		require.Len(t, r.Projects, 1)
		assert.Equal(t, "Ops", r.Projects[0].ProjectName)
	})

	t.Run("supervisors cannot read reports", func(t *testing.T) {
		_, err := fixture().Budget(ctx, auth.Principal{ID: "sup", Role: auth.RoleSupervisor}, domain.Filter{})
		require.True(t, apperr.Is(err, apperr.KindForbidden))
		assert.Equal(t, "Not authorized to view reports", apperr.Message(err))
	})
}

func TestReportService_Unbilled(t *testing.T) {
	ctx := context.Background()

	t.Run("groups approved uninvoiced billable work by client", func(t *testing.T) {
		r, err := fixture().Unbilled(ctx, manager, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, r.Clients, 3)

		acme := r.Clients[0]
		assert.Equal(t, "Acme", acme.ClientName)
		assert.Equal(t, []string{"ts-1"}, acme.Timesheets)
		assert.Equal(t, "7", acme.BillableHours.String())
		assert.Equal(t, "700", acme.EstimatedAmount.String())

		globex := r.Clients[1]
		assert.Equal(t, []string{"ts-2"}, globex.Timesheets)
		assert.Equal(t, "150", globex.EstimatedAmount.String())

		orphan := r.Clients[2]
		assert.Equal(t, "Unknown Client", orphan.ClientName)
		assert.Equal(t, "1", orphan.BillableHours.String())

		assert.Equal(t, "11", r.BillableHours.String())
		assert.Equal(t, "900", r.EstimatedAmount.String())
	})

	t.Run("filters by client", func(t *testing.T) {
		r, err := fixture().Unbilled(ctx, manager, domain.Filter{ClientID: "c-globex"})
		require.NoError(t, err)
		require.Len(t, r.Clients, 1)
		assert.Equal(t, "3", r.Clients[0].BillableHours.String())
	})
}
