package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	clientrepo "github.com/irma-project/irma-backend/internal/clients/repository"
	clientservice "github.com/irma-project/irma-backend/internal/clients/service"
	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/events/eventstest"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/invoices/repository"
	projectdomain "github.com/irma-project/irma-backend/internal/projects/domain"
	projectrepo "github.com/irma-project/irma-backend/internal/projects/repository"
	projectservice "github.com/irma-project/irma-backend/internal/projects/service"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
	tsrepo "github.com/irma-project/irma-backend/internal/timesheets/repository"
)

var (
	manager  = auth.Principal{ID: "mgr-1", Role: auth.RoleManager}
	employee = auth.Principal{ID: "emp-1", Role: auth.RoleEmployee}
	now      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type staticRates map[string]decimal.Decimal

func (r staticRates) Rates(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, id := range ids {
		if rate, ok := r[id]; ok {
			out[id] = rate
		}
	}
	return out, nil
}

type fixture struct {
	svc        *InvoiceService
	invoices   *repository.InvoiceRepository
	seq        *repository.Sequence
	timesheets *tsrepo.TimesheetRepository
	recorder   *eventstest.Recorder
	clientID   string
	projectID  string
	next       int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 16})
	t.Cleanup(func() { _ = client.Close() })
	store := redisdoc.New(client, redisdoc.WithMaxRetries(50))

	clients := clientservice.NewClientService(clientrepo.NewClientRepository(store))
	name := "Acme"
	c, err := clients.Create(ctx, manager, clientdomain.ClientInput{Name: &name})
	require.NoError(t, err)

	rec := &eventstest.Recorder{}
	projects := projectservice.NewProjectService(projectrepo.NewProjectRepository(store), clients, rec)
	pname := "Website"
	budget := decimal.NewFromInt(50000)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := projects.Create(ctx, manager, projectdomain.ProjectInput{Name: &pname, ClientID: &c.ID, StartDate: &start, Budget: &budget})
	require.NoError(t, err)

	invoices := repository.NewInvoiceRepository(store)
	timesheets := tsrepo.NewTimesheetRepository(store)
	seq := repository.NewSequence(store, invoices)
	linker := repository.NewLinker(store, invoices, timesheets)
	rates := staticRates{"emp-1": decimal.NewFromInt(100), "emp-2": decimal.NewFromInt(100), "emp-3": decimal.NewFromInt(60)}

	svc := NewInvoiceService(invoices, seq, linker, timesheets, clients, projects, rates, rec,
		WithDueDays(30), WithClock(func() time.Time { return now }))
	return &fixture{
		svc: svc, invoices: invoices, seq: seq, timesheets: timesheets, recorder: rec,
		clientID: c.ID, projectID: p.ID,
	}
}

// sheet seeds a timesheet for owner with one entry of the given hours on the fixture project.
func (f *fixture) sheet(t *testing.T, owner string, status tsdomain.Status, hours string) *tsdomain.Timesheet {
	t.Helper()
	f.next++
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*f.next)
	ts := &tsdomain.Timesheet{
		ID:        fmt.Sprintf("ts-%d", f.next),
		UserID:    owner,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
		Entries: []tsdomain.Entry{
			{ID: "e1", ProjectID: f.projectID, Date: start, Hours: decimal.RequireFromString(hours), Billable: true},
			{ID: "e2", ProjectID: f.projectID, Date: start, Hours: decimal.NewFromInt(2), Billable: false},
		},
		Status: status,
	}
	ts.RecalculateTotals()
	require.NoError(t, f.timesheets.Save(context.Background(), ts))
	return ts
}

func (f *fixture) invoiceIDOf(t *testing.T, id string) string {
	t.Helper()
	ts, err := f.timesheets.Get(context.Background(), id)
	require.NoError(t, err)
	return ts.InvoiceID
}

func (f *fixture) generate(t *testing.T, ids ...string) *domain.Invoice {
	t.Helper()
	inv, err := f.svc.Generate(context.Background(), manager, domain.GenerateInput{ClientID: f.clientID, TimesheetIDs: ids})
	require.NoError(t, err)
	return inv
}

func (f *fixture) manual(number string, amount string) domain.InvoiceInput {
	issue := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	due := issue.AddDate(0, 0, 14)
	a := decimal.RequireFromString(amount)
	return domain.InvoiceInput{
		ClientID:      f.clientID,
		InvoiceNumber: number,
		IssueDate:     &issue,
		DueDate:       &due,
		Items:         []domain.ItemInput{{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: a}},
	}
}

func TestInvoiceService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("sums timesheets on the same project into one line", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "5")
		b := f.sheet(t, "emp-2", tsdomain.StatusApproved, "3.5")

		inv := f.generate(t, a.ID, b.ID)
		assert.Equal(t, "INV-1001", inv.InvoiceNumber)
		assert.Equal(t, domain.StatusDraft, inv.Status)
		require.Len(t, inv.Items, 1)
		assert.Equal(t, "Professional services - Website", inv.Items[0].Description)
		assert.Equal(t, "8.5", inv.Items[0].Quantity.String())
		assert.Equal(t, "100", inv.Items[0].Rate.String())
		assert.Equal(t, "850.00", inv.Items[0].Amount.StringFixed(2))
		assert.Equal(t, "850.00", inv.Total.StringFixed(2))
		assert.Equal(t, []string{a.ID, b.ID}, inv.Timesheets)

		assert.Equal(t, inv.ID, f.invoiceIDOf(t, a.ID))
		assert.Equal(t, inv.ID, f.invoiceIDOf(t, b.ID))
		assert.Contains(t, f.recorder.Types(), events.InvoiceGenerated)
	})

	t.Run("defaults the dates from the issue day", func(t *testing.T) {
		f := setup(t)
		inv := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), inv.IssueDate)
		assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), inv.DueDate)
	})

	t.Run("applies tax and discount", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusApproved, "10")
		inv, err := f.svc.Generate(ctx, manager, domain.GenerateInput{
			ClientID: f.clientID, TimesheetIDs: []string{ts.ID},
			TaxRate: decimal.NewFromInt(15), Discount: decimal.NewFromInt(50),
		})
		require.NoError(t, err)
		assert.Equal(t, "1000.00", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "150.00", inv.TaxAmount.StringFixed(2))
		assert.Equal(t, "1100.00", inv.Total.StringFixed(2))
	})

	t.Run("generating twice fails and creates nothing", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "5")
		b := f.sheet(t, "emp-1", tsdomain.StatusApproved, "5")
		first := f.generate(t, a.ID)

		_, err := f.svc.Generate(ctx, manager, domain.GenerateInput{ClientID: f.clientID, TimesheetIDs: []string{a.ID, b.ID}})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "1 timesheet(s) have already been invoiced", apperr.Message(err))

		all, err := f.invoices.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Empty(t, f.invoiceIDOf(t, b.ID))
		assert.Equal(t, first.ID, f.invoiceIDOf(t, a.ID))

		// The refused attempt does not burn a number.
		next := f.generate(t, b.ID)
		assert.Equal(t, "INV-1002", next.InvoiceNumber)
	})

	t.Run("ignores timesheets that are not approved", func(t *testing.T) {
		f := setup(t)
		approved := f.sheet(t, "emp-1", tsdomain.StatusApproved, "4")
		submitted := f.sheet(t, "emp-1", tsdomain.StatusSubmitted, "4")

		inv := f.generate(t, approved.ID, submitted.ID, "missing")
		assert.Equal(t, []string{approved.ID}, inv.Timesheets)
		assert.Empty(t, f.invoiceIDOf(t, submitted.ID))
	})

	t.Run("bills a repeated timesheet id once", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "5")

		inv := f.generate(t, a.ID, a.ID)
		require.Len(t, inv.Items, 1)
		assert.Equal(t, "5", inv.Items[0].Quantity.String())
		assert.Equal(t, "500.00", inv.Total.StringFixed(2))
		assert.Equal(t, []string{a.ID}, inv.Timesheets)
	})

	t.Run("concurrent generations link a timesheet to one invoice", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "5")

		const workers = 8
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			winner string
			wins   int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				inv, err := f.svc.Generate(ctx, manager, domain.GenerateInput{ClientID: f.clientID, TimesheetIDs: []string{a.ID}})
				if err != nil {
					return
				}
				mu.Lock()
				wins++
				winner = inv.ID
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Equal(t, 1, wins)
		all, err := f.invoices.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, winner, f.invoiceIDOf(t, a.ID))
	})

	t.Run("needs at least one approved timesheet", func(t *testing.T) {
		f := setup(t)
		submitted := f.sheet(t, "emp-1", tsdomain.StatusSubmitted, "4")
		_, err := f.svc.Generate(ctx, manager, domain.GenerateInput{ClientID: f.clientID, TimesheetIDs: []string{submitted.ID}})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "No approved timesheets found", apperr.Message(err))
	})

	t.Run("needs an existing client", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusApproved, "4")
		_, err := f.svc.Generate(ctx, manager, domain.GenerateInput{ClientID: "nope", TimesheetIDs: []string{ts.ID}})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Client not found", apperr.Message(err))
	})

	t.Run("refuses a negative total", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		_, err := f.svc.Generate(ctx, manager, domain.GenerateInput{
			ClientID: f.clientID, TimesheetIDs: []string{ts.ID}, Discount: decimal.NewFromInt(500),
		})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Empty(t, f.invoiceIDOf(t, ts.ID))
	})

	t.Run("employees cannot invoice", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Generate(ctx, employee, domain.GenerateInput{ClientID: f.clientID, TimesheetIDs: []string{"x"}})
		require.True(t, apperr.Is(err, apperr.KindForbidden))
		assert.Equal(t, "Not authorized to manage invoices", apperr.Message(err))
	})
}

func TestSequence(t *testing.T) {
	ctx := context.Background()

	t.Run("continues after the latest invoice", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.invoices.Save(ctx, &domain.Invoice{ID: "old-1", InvoiceNumber: "INV-1049", CreatedAt: now.Add(-2 * time.Hour)}))
		require.NoError(t, f.invoices.Save(ctx, &domain.Invoice{ID: "old-2", InvoiceNumber: "INV-1050", CreatedAt: now.Add(-time.Hour)}))

		inv := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		assert.Equal(t, "INV-1051", inv.InvoiceNumber)
	})

	t.Run("starts at INV-1001", func(t *testing.T) {
		f := setup(t)
		latest, err := f.seq.LatestNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.FirstSequence, latest)

		number, err := f.seq.Next(ctx, "inv-a")
		require.NoError(t, err)
		assert.Equal(t, "INV-1001", number)
	})

	t.Run("deriving the next number from existing data races", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.invoices.Save(ctx, &domain.Invoice{ID: "old", InvoiceNumber: "INV-1050", CreatedAt: now}))

		// Two requests read the latest number before either writes.
		a, err := f.seq.LatestNumber(ctx)
		require.NoError(t, err)
		b, err := f.seq.LatestNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.FormatNumber(a+1), domain.FormatNumber(b+1), "both would issue the same number")
	})

	t.Run("the counter hands out distinct numbers under concurrency", func(t *testing.T) {
		f := setup(t)
		const workers = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			numbers = make(map[string]bool)
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				n, err := f.seq.Next(ctx, fmt.Sprintf("inv-%d", i))
				assert.NoError(t, err)
				mu.Lock()
				numbers[n] = true
				mu.Unlock()
			}(i)
		}
		wg.Wait()
		assert.Len(t, numbers, workers)
	})

	t.Run("skips numbers taken by manual invoices", func(t *testing.T) {
		f := setup(t)
		first := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		require.Equal(t, "INV-1001", first.InvoiceNumber)

		_, err := f.svc.Create(ctx, manager, f.manual("INV-1002", "100"))
		require.NoError(t, err)

		next := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		assert.Equal(t, "INV-1003", next.InvoiceNumber)
	})
}

func TestInvoiceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("computes amounts and totals from the items", func(t *testing.T) {
		f := setup(t)
		in := f.manual("", "0")
		in.Items = []domain.ItemInput{
			{Description: "Design", Quantity: decimal.RequireFromString("2.5"), Rate: decimal.NewFromInt(120)},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(40), Amount: ptr(decimal.NewFromInt(35))},
		}
		in.TaxRate = decimal.NewFromInt(20)
		in.Discount = decimal.NewFromInt(10)

		inv, err := f.svc.Create(ctx, manager, in)
		require.NoError(t, err)
		assert.Equal(t, "INV-1001", inv.InvoiceNumber)
		assert.Equal(t, "300.00", inv.Items[0].Amount.StringFixed(2))
		assert.Equal(t, "335.00", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "67.00", inv.TaxAmount.StringFixed(2))
		assert.Equal(t, "392.00", inv.Total.StringFixed(2))

		sum := decimal.Zero
		for _, it := range inv.Items {
			sum = sum.Add(it.Amount)
		}
		assert.True(t, sum.Equal(inv.Subtotal))
	})

	t.Run("rejects a duplicate number", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, manager, f.manual("CUSTOM-7", "10"))
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, manager, f.manual("CUSTOM-7", "10"))
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Invoice number already exists", apperr.Message(err))
	})

	t.Run("requires dates and items", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Create(ctx, manager, domain.InvoiceInput{ClientID: f.clientID})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		var e *apperr.Error
		require.ErrorAs(t, err, &e)
		assert.Len(t, e.Fields, 3)
	})

	t.Run("links the listed timesheets", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		in := f.manual("", "10")
		in.Timesheets = []string{ts.ID}
		inv, err := f.svc.Create(ctx, manager, in)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, f.invoiceIDOf(t, ts.ID))
	})

	t.Run("refuses to link unapproved timesheets and frees the number", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusDraft, "1")
		in := f.manual("INV-5000", "10")
		in.Timesheets = []string{ts.ID}
		_, err := f.svc.Create(ctx, manager, in)
		require.True(t, apperr.Is(err, apperr.KindValidation))

		in.Timesheets = nil
		inv, err := f.svc.Create(ctx, manager, in)
		require.NoError(t, err)
		assert.Equal(t, "INV-5000", inv.InvoiceNumber)
	})
}

func TestInvoiceService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("moves links and recomputes totals", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		b := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		inv := f.generate(t, a.ID)

		in := f.manual("", "250")
		in.Timesheets = []string{b.ID}
		updated, err := f.svc.Update(ctx, manager, inv.ID, in)
		require.NoError(t, err)
		assert.Equal(t, inv.InvoiceNumber, updated.InvoiceNumber)
		assert.Equal(t, "250.00", updated.Total.StringFixed(2))
		assert.Equal(t, []string{b.ID}, updated.Timesheets)

		assert.Empty(t, f.invoiceIDOf(t, a.ID))
		assert.Equal(t, inv.ID, f.invoiceIDOf(t, b.ID))
	})

	t.Run("refuses timesheets invoiced elsewhere", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		b := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		first := f.generate(t, a.ID)
		second := f.generate(t, b.ID)

		in := f.manual("", "10")
		in.Timesheets = []string{a.ID, b.ID}
		_, err := f.svc.Update(ctx, manager, second.ID, in)
		require.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "1 timesheet(s) have already been invoiced", apperr.Message(err))
		assert.Equal(t, first.ID, f.invoiceIDOf(t, a.ID))
	})

	t.Run("renumbers and frees the old number", func(t *testing.T) {
		f := setup(t)
		inv, err := f.svc.Create(ctx, manager, f.manual("", "10"))
		require.NoError(t, err)

		updated, err := f.svc.Update(ctx, manager, inv.ID, f.manual("CUSTOM-1", "10"))
		require.NoError(t, err)
		assert.Equal(t, "CUSTOM-1", updated.InvoiceNumber)

		ok, err := f.seq.Reserve(ctx, inv.InvoiceNumber, "someone-else")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("only drafts can be edited", func(t *testing.T) {
		f := setup(t)
		inv := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		_, err := f.svc.Send(ctx, manager, inv.ID)
		require.NoError(t, err)

		_, err = f.svc.Update(ctx, manager, inv.ID, f.manual("", "10"))
		require.True(t, apperr.Is(err, apperr.KindConflict))
		assert.Equal(t, "Cannot update a sent invoice", apperr.Message(err))
	})

	t.Run("unknown invoices are not found", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.Update(ctx, manager, "missing", f.manual("", "10"))
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestInvoiceService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("cancelling a sent invoice releases its timesheets", func(t *testing.T) {
		f := setup(t)
		a := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		b := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		inv := f.generate(t, a.ID, b.ID)

		sent, err := f.svc.Send(ctx, manager, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSent, sent.Status)
		require.NotNil(t, sent.SentAt)

		cancelled, err := f.svc.Cancel(ctx, manager, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, []string{a.ID, b.ID}, cancelled.Timesheets)
		assert.Empty(t, f.invoiceIDOf(t, a.ID))
		assert.Empty(t, f.invoiceIDOf(t, b.ID))

		// Released timesheets can be billed again.
		again := f.generate(t, a.ID, b.ID)
		assert.Equal(t, again.ID, f.invoiceIDOf(t, a.ID))
	})

	t.Run("cancelling a paid invoice is rejected", func(t *testing.T) {
		f := setup(t)
		ts := f.sheet(t, "emp-1", tsdomain.StatusApproved, "1")
		inv := f.generate(t, ts.ID)
		paidOn := now
		_, err := f.svc.Pay(ctx, manager, inv.ID, domain.PayInput{PaymentDate: &paidOn, PaymentMethod: "Bank transfer"})
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, manager, inv.ID)
		require.True(t, apperr.Is(err, apperr.KindConflict))
		assert.Equal(t, "Cannot cancel a paid invoice", apperr.Message(err))
		assert.Equal(t, inv.ID, f.invoiceIDOf(t, ts.ID))
	})

	t.Run("payment needs a date and a method", func(t *testing.T) {
		f := setup(t)
		inv := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)

		_, err := f.svc.Pay(ctx, manager, inv.ID, domain.PayInput{})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		var e *apperr.Error
		require.ErrorAs(t, err, &e)
		assert.Len(t, e.Fields, 2)

		got, err := f.svc.Get(ctx, manager, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, got.Status)
	})

	t.Run("paid is terminal", func(t *testing.T) {
		f := setup(t)
		inv := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
		paidOn := now
		_, err := f.svc.Pay(ctx, manager, inv.ID, domain.PayInput{PaymentDate: &paidOn, PaymentMethod: "Card"})
		require.NoError(t, err)

		_, err = f.svc.Send(ctx, manager, inv.ID)
		assert.Equal(t, "Invoice is already paid", apperr.Message(err))
		_, err = f.svc.Pay(ctx, manager, inv.ID, domain.PayInput{PaymentDate: &paidOn, PaymentMethod: "Card"})
		assert.Equal(t, "Invoice is already paid", apperr.Message(err))
	})
}

func TestInvoiceService_Overdue(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	issue := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	late, err := f.svc.Generate(ctx, manager, domain.GenerateInput{
		ClientID: f.clientID, TimesheetIDs: []string{f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID}, IssueDate: &issue,
	})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, manager, late.ID)
	require.NoError(t, err)

	current := f.generate(t, f.sheet(t, "emp-1", tsdomain.StatusApproved, "1").ID)
	_, err = f.svc.Send(ctx, manager, current.ID)
	require.NoError(t, err)

	t.Run("overdue is derived on read and never stored", func(t *testing.T) {
		got, err := f.svc.Get(ctx, manager, late.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSent, got.Status)
		assert.Equal(t, domain.StatusOverdue, got.DisplayStatus)

		stored, err := f.invoices.Get(ctx, late.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.DisplayStatus)
	})

	t.Run("the list filter matches the derived state", func(t *testing.T) {
		items, err := f.svc.List(ctx, manager, domain.ListFilter{Status: domain.StatusOverdue})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, late.ID, items[0].ID)

		sent, err := f.svc.List(ctx, manager, domain.ListFilter{Status: domain.StatusSent})
		require.NoError(t, err)
		assert.Len(t, sent, 2)
	})

	t.Run("the sweep query returns only overdue invoices", func(t *testing.T) {
		items, err := f.svc.ListOverdue(ctx, now)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, late.InvoiceNumber, items[0].InvoiceNumber)
	})
}

func ptr[T any](v T) *T { return &v }
