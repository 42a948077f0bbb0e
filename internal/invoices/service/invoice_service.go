package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/invoices/domain"
	"github.com/irma-project/irma-backend/internal/invoices/repository"
	"github.com/irma-project/irma-backend/internal/logging"
	"github.com/irma-project/irma-backend/internal/metrics"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
)

type ClientLookup interface {
	Lookup(ctx context.Context, id string) (*clientdomain.Client, error)
}

type ProjectNames interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

type RateLookup interface {
	Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type TimesheetSource interface {
	GetMany(ctx context.Context, ids []string) ([]*tsdomain.Timesheet, error)
}

type InvoiceService struct {
	repo       *repository.InvoiceRepository
	seq        *repository.Sequence
	linker     *repository.Linker
	timesheets TimesheetSource
	clients    ClientLookup
	projects   ProjectNames
	rates      RateLookup
	events     events.Publisher
	dueDays    int
	now        func() time.Time
}

type Option func(*InvoiceService)

// WithDueDays sets how long after issue an invoice falls due by default.
func WithDueDays(days int) Option {
	return func(s *InvoiceService) { s.dueDays = days }
}

func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

func NewInvoiceService(
	repo *repository.InvoiceRepository,
	seq *repository.Sequence,
	linker *repository.Linker,
	timesheets TimesheetSource,
	clients ClientLookup,
	projects ProjectNames,
	rates RateLookup,
	publisher events.Publisher,
	opts ...Option,
) *InvoiceService {
	s := &InvoiceService{
		repo:       repo,
		seq:        seq,
		linker:     linker,
		timesheets: timesheets,
		clients:    clients,
		projects:   projects,
		rates:      rates,
		events:     publisher,
		dueDays:    30,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate bills the Approved timesheets among in.TimesheetIDs as a new Draft
// invoice, one line item per project. It refuses the whole batch if any of
// them is already invoiced.
func (s *InvoiceService) Generate(ctx context.Context, actor auth.Principal, in domain.GenerateInput) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceWrite, ""); err != nil {
		return nil, err
	}

	var fields []apperr.FieldError
	if strings.TrimSpace(in.ClientID) == "" {
		fields = append(fields, apperr.FieldError{Field: "clientId", Msg: "Client is required"})
	}
	if len(in.TimesheetIDs) == 0 {
		fields = append(fields, apperr.FieldError{Field: "timesheetIds", Msg: "Timesheet IDs are required"})
	}
	fields = append(fields, validateCharges(in.TaxRate, in.Discount)...)
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}
	if err := s.checkClient(ctx, in.ClientID); err != nil {
		return nil, err
	}

	in.TimesheetIDs = dedupe(in.TimesheetIDs)
	sheets, err := s.timesheets.GetMany(ctx, in.TimesheetIDs)
	if err != nil {
		return nil, err
	}
	approved := make([]*tsdomain.Timesheet, 0, len(sheets))
	invoiced := 0
	for _, t := range sheets {
		if t.Status != tsdomain.StatusApproved {
			continue
		}
		approved = append(approved, t)
		if t.Invoiced() {
			invoiced++
		}
	}
	if len(approved) == 0 {
		return nil, apperr.Validation("No approved timesheets found")
	}
	if invoiced > 0 {
		return nil, apperr.Validation((&domain.InvoicedError{Count: invoiced}).Error())
	}

	items, err := s.price(ctx, approved)
	if err != nil {
		return nil, err
	}

	inv := s.draft(actor, in.ClientID)
	inv.Items = items
	inv.TaxRate, inv.Discount = in.TaxRate, in.Discount
	inv.Notes, inv.Terms = in.Notes, in.Terms
	for _, t := range approved {
		inv.Timesheets = append(inv.Timesheets, t.ID)
	}
	if err := s.setDates(inv, in.IssueDate, in.DueDate); err != nil {
		return nil, err
	}
	if err := inv.Recalculate(); err != nil {
		return nil, translate(err)
	}

	if err := s.create(ctx, "invoices.generate", inv); err != nil {
		return nil, err
	}

	metrics.InvoiceGenerated()
	events.Emit(ctx, s.events, events.New(events.InvoiceGenerated, inv.ID, actor.ID, map[string]any{
		"invoiceNumber": inv.InvoiceNumber,
		"clientId":      inv.ClientID,
		"total":         inv.Total.StringFixed(2),
		"timesheets":    inv.Timesheets,
	}))
	return s.present(inv), nil
}

// price resolves each owner's rate once and each project's name, then aggregates.
func (s *InvoiceService) price(ctx context.Context, sheets []*tsdomain.Timesheet) ([]domain.Item, error) {
	var owners, projectIDs []string
	seenOwner, seenProject := map[string]bool{}, map[string]bool{}
	for _, t := range sheets {
		if !seenOwner[t.UserID] {
			seenOwner[t.UserID] = true
			owners = append(owners, t.UserID)
		}
		for _, e := range t.Entries {
			if e.Billable && !seenProject[e.ProjectID] {
				seenProject[e.ProjectID] = true
				projectIDs = append(projectIDs, e.ProjectID)
			}
		}
	}

	rates, err := s.rates.Rates(ctx, owners)
	if err != nil {
		return nil, err
	}
	names, err := s.projects.Names(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	return domain.Aggregate(sheets, rates, names), nil
}

// Create stores a manually composed invoice. A supplied number must be unused;
// otherwise the next number in the sequence is taken.
func (s *InvoiceService) Create(ctx context.Context, actor auth.Principal, in domain.InvoiceInput) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceWrite, ""); err != nil {
		return nil, err
	}
	items, err := s.validateInput(ctx, in)
	if err != nil {
		return nil, err
	}

	inv := s.draft(actor, in.ClientID)
	applyInput(inv, in, items)
	if err := inv.Recalculate(); err != nil {
		return nil, translate(err)
	}

	if number := strings.TrimSpace(in.InvoiceNumber); number != "" {
		ok, err := s.seq.Reserve(ctx, number, inv.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Invalid(apperr.FieldError{Field: "invoiceNumber", Msg: "Invoice number already exists"})
		}
		inv.InvoiceNumber = number
	}

	if err := s.create(ctx, "invoices.create", inv); err != nil {
		return nil, err
	}
	return s.present(inv), nil
}

// create numbers inv if needed and writes it with its links. The number is
// released again when the write fails.
func (s *InvoiceService) create(ctx context.Context, op string, inv *domain.Invoice) error {
	if inv.InvoiceNumber == "" {
		number, err := s.seq.Next(ctx, inv.ID)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
	}

	err := s.linker.Create(ctx, inv, requireApproved)
	if err == nil {
		return nil
	}
	if rerr := s.seq.Release(ctx, inv.InvoiceNumber, inv.ID); rerr != nil {
		logging.FromContext(ctx).Errorf(op, "release %s: %v", inv.InvoiceNumber, rerr)
	}
	if terr := translate(err); apperr.KindOf(terr) != apperr.KindUnexpected {
		return terr
	}
	logging.FromContext(ctx).Errorf(op, "invoice %s not stored: %v", inv.InvoiceNumber, err)
	return apperr.Unexpected("Server error", err)
}

// Update replaces the contents of a Draft invoice and moves its timesheet links.
func (s *InvoiceService) Update(ctx context.Context, actor auth.Principal, id string, in domain.InvoiceInput) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceWrite, ""); err != nil {
		return nil, err
	}
	items, err := s.validateInput(ctx, in)
	if err != nil {
		return nil, err
	}

	number := strings.TrimSpace(in.InvoiceNumber)
	var previous, reserved string
	inv, err := s.linker.Update(ctx, id, requireApproved, func(inv *domain.Invoice) error {
		if _, err := domain.Transition(domain.ActionEdit, inv.Status); err != nil {
			return err
		}
		if number != "" && number != inv.InvoiceNumber {
			ok, err := s.seq.Reserve(ctx, number, inv.ID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNumberTaken
			}
			previous, reserved = inv.InvoiceNumber, number
			inv.InvoiceNumber = number
		}
		applyInput(inv, in, items)
		inv.UpdatedAt = s.now()
		return inv.Recalculate()
	})
	if err != nil {
		if reserved != "" {
			_ = s.seq.Release(ctx, reserved, id)
		}
		return nil, translate(err)
	}
	if previous != "" {
		if err := s.seq.Release(ctx, previous, id); err != nil {
			logging.FromContext(ctx).Errorf("invoices.update", "release %s: %v", previous, err)
		}
	}
	return s.present(inv), nil
}

func (s *InvoiceService) Send(ctx context.Context, actor auth.Principal, id string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, actor, id, domain.ActionSend, func(inv *domain.Invoice, now time.Time) {
		inv.SentAt = &now
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.New(events.InvoiceSent, inv.ID, actor.ID, map[string]any{
		"invoiceNumber": inv.InvoiceNumber,
		"dueDate":       inv.DueDate.Format("2006-01-02"),
	}))
	return inv, nil
}

// Pay settles a Draft or Sent invoice. Paid is terminal.
func (s *InvoiceService) Pay(ctx context.Context, actor auth.Principal, id string, in domain.PayInput) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceWrite, ""); err != nil {
		return nil, err
	}
	var fields []apperr.FieldError
	if in.PaymentDate == nil || in.PaymentDate.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "paymentDate", Msg: "Payment date is required"})
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		fields = append(fields, apperr.FieldError{Field: "paymentMethod", Msg: "Payment method is required"})
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}

	inv, err := s.transition(ctx, actor, id, domain.ActionPay, func(inv *domain.Invoice, _ time.Time) {
		paid := in.PaymentDate.UTC()
		inv.PaymentDate = &paid
		inv.PaymentMethod = method
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.New(events.InvoicePaid, inv.ID, actor.ID, map[string]any{
		"invoiceNumber": inv.InvoiceNumber,
		"total":         inv.Total.StringFixed(2),
		"paymentMethod": inv.PaymentMethod,
	}))
	return inv, nil
}

// Cancel voids a Draft or Sent invoice and releases its timesheets for billing.
func (s *InvoiceService) Cancel(ctx context.Context, actor auth.Principal, id string) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, actor, id, domain.ActionCancel, func(inv *domain.Invoice, now time.Time) {
		inv.CancelledAt = &now
	})
	if err != nil {
		return nil, err
	}
	metrics.InvoiceCancelled()
	events.Emit(ctx, s.events, events.New(events.InvoiceCancelled, inv.ID, actor.ID, map[string]any{
		"invoiceNumber": inv.InvoiceNumber,
		"released":      inv.Timesheets,
	}))
	return inv, nil
}

func (s *InvoiceService) transition(ctx context.Context, actor auth.Principal, id string, action domain.Action, apply func(inv *domain.Invoice, now time.Time)) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceWrite, ""); err != nil {
		return nil, err
	}
	inv, err := s.linker.Update(ctx, id, nil, func(inv *domain.Invoice) error {
		next, err := domain.Transition(action, inv.Status)
		if err != nil {
			return err
		}
		now := s.now()
		inv.Status = next
		inv.UpdatedAt = now
		apply(inv, now)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return s.present(inv), nil
}

func (s *InvoiceService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceRead, ""); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return s.present(inv), nil
}

// List filters invoices, newest issue date first. Status Overdue matches
// Sent invoices past their due date.
func (s *InvoiceService) List(ctx context.Context, actor auth.Principal, f domain.ListFilter) ([]*domain.Invoice, error) {
	if err := auth.Authorize(actor, auth.OpInvoiceRead, ""); err != nil {
		return nil, err
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*domain.Invoice, 0, len(all))
	for _, inv := range all {
		if f.ClientID != "" && inv.ClientID != f.ClientID {
			continue
		}
		if f.Status != "" && inv.DisplayStatusAt(now) != f.Status && inv.Status != f.Status {
			continue
		}
		if f.From != nil && inv.IssueDate.Before(*f.From) {
			continue
		}
		if f.To != nil && inv.IssueDate.After(*f.To) {
			continue
		}
		out = append(out, s.present(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.After(out[j].IssueDate) })
	return out, nil
}

// ListOverdue returns Sent invoices due before now. It is unscoped and used
// by the overdue sweep.
func (s *InvoiceService) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Invoice, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Invoice
	for _, inv := range all {
		if inv.IsOverdue(now) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// Document returns an invoice with its client for rendering.
func (s *InvoiceService) Document(ctx context.Context, actor auth.Principal, id string) (*domain.Invoice, *clientdomain.Client, error) {
	inv, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.clients.Lookup(ctx, inv.ClientID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, nil, err
	}
	if client == nil {
		client = &clientdomain.Client{ID: inv.ClientID, Name: "Unknown Client"}
	}
	return inv, client, nil
}

func (s *InvoiceService) draft(actor auth.Principal, clientID string) *domain.Invoice {
	now := s.now()
	return &domain.Invoice{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		Status:     domain.StatusDraft,
		Timesheets: []string{},
		CreatedBy:  actor.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// setDates fills in the defaults: today for the issue date and dueDays later
// for the due date.
func (s *InvoiceService) setDates(inv *domain.Invoice, issue, due *time.Time) error {
	if issue != nil {
		inv.IssueDate = issue.UTC()
	} else {
		now := s.now()
		inv.IssueDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if due != nil {
		inv.DueDate = due.UTC()
	} else {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, s.dueDays)
	}
	if inv.DueDate.Before(inv.IssueDate) {
		return apperr.Invalid(apperr.FieldError{Field: "dueDate", Msg: "Due date must be on or after the issue date"})
	}
	return nil
}

func (s *InvoiceService) present(inv *domain.Invoice) *domain.Invoice {
	inv.DisplayStatus = inv.DisplayStatusAt(s.now())
	return inv
}

func (s *InvoiceService) checkClient(ctx context.Context, id string) error {
	_, err := s.clients.Lookup(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Invalid(apperr.FieldError{Field: "clientId", Msg: "Client not found"})
	}
	return err
}

func (s *InvoiceService) validateInput(ctx context.Context, in domain.InvoiceInput) ([]domain.Item, error) {
	var fields []apperr.FieldError
	if strings.TrimSpace(in.ClientID) == "" {
		fields = append(fields, apperr.FieldError{Field: "clientId", Msg: "Client is required"})
	}
	if in.IssueDate == nil {
		fields = append(fields, apperr.FieldError{Field: "issueDate", Msg: "Issue date is required"})
	}
	if in.DueDate == nil {
		fields = append(fields, apperr.FieldError{Field: "dueDate", Msg: "Due date is required"})
	}
	if in.IssueDate != nil && in.DueDate != nil && in.DueDate.Before(*in.IssueDate) {
		fields = append(fields, apperr.FieldError{Field: "dueDate", Msg: "Due date must be on or after the issue date"})
	}
	if len(in.Items) == 0 {
		fields = append(fields, apperr.FieldError{Field: "items", Msg: "At least one item is required"})
	}
	fields = append(fields, validateCharges(in.TaxRate, in.Discount)...)

	items := make([]domain.Item, 0, len(in.Items))
	for _, it := range in.Items {
		item, errs := buildItem(it)
		fields = append(fields, errs...)
		items = append(items, item)
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}

	if err := s.checkClient(ctx, in.ClientID); err != nil {
		return nil, err
	}
	return items, nil
}

func buildItem(in domain.ItemInput) (domain.Item, []apperr.FieldError) {
	var fields []apperr.FieldError
	if strings.TrimSpace(in.Description) == "" {
		fields = append(fields, apperr.FieldError{Field: "items.description", Msg: "Item description is required"})
	}
	if in.Quantity.IsNegative() || in.Rate.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "items", Msg: "Item quantity and rate cannot be negative"})
	}

	amount := in.Quantity.Mul(in.Rate).Round(2)
	if in.Amount != nil {
		amount = in.Amount.Round(2)
	}
	if amount.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "items.amount", Msg: "Item amount cannot be negative"})
	}
	return domain.Item{
		ProjectID:   in.ProjectID,
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		Rate:        in.Rate,
		Amount:      amount,
	}, fields
}

func validateCharges(taxRate, discount decimal.Decimal) []apperr.FieldError {
	var fields []apperr.FieldError
	if taxRate.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "taxRate", Msg: "Tax rate cannot be negative"})
	}
	if discount.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "discount", Msg: "Discount cannot be negative"})
	}
	return fields
}

func applyInput(inv *domain.Invoice, in domain.InvoiceInput, items []domain.Item) {
	inv.ClientID = in.ClientID
	inv.IssueDate = in.IssueDate.UTC()
	inv.DueDate = in.DueDate.UTC()
	inv.Items = items
	inv.TaxRate, inv.Discount = in.TaxRate, in.Discount
	inv.Notes, inv.Terms = in.Notes, in.Terms
	if in.Timesheets != nil {
		inv.Timesheets = dedupe(in.Timesheets)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func requireApproved(t *tsdomain.Timesheet, _ string) error {
	if t.Status != tsdomain.StatusApproved {
		return &domain.LinkError{TimesheetID: t.ID, Reason: "is not approved"}
	}
	return nil
}

func translate(err error) error {
	var (
		te *domain.TransitionError
		ie *domain.InvoicedError
		le *domain.LinkError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &te):
		return apperr.Conflict(te.Error())
	case errors.As(err, &ie):
		return apperr.Validation(ie.Error())
	case errors.As(err, &le):
		return apperr.Invalid(apperr.FieldError{Field: "timesheets", Msg: le.Error()})
	case errors.Is(err, domain.ErrInvoiceNotFound):
		return apperr.NotFound("Invoice not found")
	case errors.Is(err, domain.ErrNumberTaken):
		return apperr.Invalid(apperr.FieldError{Field: "invoiceNumber", Msg: "Invoice number already exists"})
	case errors.Is(err, domain.ErrNegativeTotal):
		return apperr.Invalid(apperr.FieldError{Field: "discount", Msg: "Invoice total cannot be negative"})
	case errors.Is(err, redisdoc.ErrConflict):
		return apperr.Conflict("Invoice was modified concurrently, please retry")
	}
	return err
}
