package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	clientrepo "github.com/irma-project/irma-backend/internal/clients/repository"
	clientservice "github.com/irma-project/irma-backend/internal/clients/service"
	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/invoices/repository"
	"github.com/irma-project/irma-backend/internal/invoices/service"
	projectdomain "github.com/irma-project/irma-backend/internal/projects/domain"
	projectrepo "github.com/irma-project/irma-backend/internal/projects/repository"
	projectservice "github.com/irma-project/irma-backend/internal/projects/service"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
	tsrepo "github.com/irma-project/irma-backend/internal/timesheets/repository"
)

var manager = auth.Principal{ID: "mgr-1", Role: auth.RoleManager}

type flatRate struct{}

func (flatRate) Rates(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		out[id] = decimal.NewFromInt(100)
	}
	return out, nil
}

type env struct {
	router   *gin.Engine
	clientID string
	sheets   []string
}

// newEnv mounts the handler behind a stub that trusts X-User and X-Role, with
// two Approved timesheets ready to bill.
func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisdoc.New(client)

	clients := clientservice.NewClientService(clientrepo.NewClientRepository(store))
	name := "Acme"
	c, err := clients.Create(ctx, manager, clientdomain.ClientInput{Name: &name})
	require.NoError(t, err)

	projects := projectservice.NewProjectService(projectrepo.NewProjectRepository(store), clients, events.Nop{})
	pname := "Website"
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := projects.Create(ctx, manager, projectdomain.ProjectInput{Name: &pname, ClientID: &c.ID, StartDate: &start})
	require.NoError(t, err)

	timesheets := tsrepo.NewTimesheetRepository(store)
	e := &env{clientID: c.ID}
	for i, id := range []string{"ts-1", "ts-2"} {
		week := start.AddDate(0, 0, 7*i)
		ts := &tsdomain.Timesheet{
			ID: id, UserID: "emp-1", StartDate: week, EndDate: week.AddDate(0, 0, 6), Status: tsdomain.StatusApproved,
			Entries: []tsdomain.Entry{{ID: "e1", ProjectID: p.ID, Date: week, Hours: decimal.NewFromInt(4), Billable: true}},
		}
		ts.RecalculateTotals()
		require.NoError(t, timesheets.Save(ctx, ts))
		e.sheets = append(e.sheets, id)
	}

	invoices := repository.NewInvoiceRepository(store)
	svc := service.NewInvoiceService(invoices,
		repository.NewSequence(store, invoices),
		repository.NewLinker(store, invoices, timesheets),
		timesheets, clients, projects, flatRate{}, events.Nop{},
		service.WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }),
	)

	e.router = gin.New()
	rg := e.router.Group("/invoices", func(c *gin.Context) {
		if id := c.GetHeader("X-User"); id != "" {
			auth.SetPrincipal(c, auth.Principal{ID: id, Role: auth.Role(c.GetHeader("X-Role"))})
		}
	})
	New(svc).Register(rg)
	return e
}

func (e *env) call(method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-User", "user-"+role)
		req.Header.Set("X-Role", role)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type invoiceBody struct {
	ID            string   `json:"id"`
	InvoiceNumber string   `json:"invoiceNumber"`
	Status        string   `json:"status"`
	DisplayStatus string   `json:"displayStatus"`
	Total         string   `json:"total"`
	Timesheets    []string `json:"timesheets"`
}

func (e *env) generate(t *testing.T, body string) invoiceBody {
	t.Helper()
	rr := e.call(http.MethodPost, "/invoices/generate", "manager", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var inv invoiceBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))
	return inv
}

func TestInvoiceHandlers(t *testing.T) {
	t.Run("requires a principal", func(t *testing.T) {
		e := newEnv(t)
		assert.Equal(t, http.StatusUnauthorized, e.call(http.MethodGet, "/invoices", "", "").Code)
	})

	t.Run("employees cannot read invoices", func(t *testing.T) {
		e := newEnv(t)
		rr := e.call(http.MethodGet, "/invoices", "employee", "")
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.JSONEq(t, `{"msg":"Not authorized to view invoices"}`, rr.Body.String())
	})

	t.Run("generate reports missing fields", func(t *testing.T) {
		e := newEnv(t)
		rr := e.call(http.MethodPost, "/invoices/generate", "manager", `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"field":"clientId"`)
	})

	t.Run("generate bills approved timesheets", func(t *testing.T) {
		e := newEnv(t)
		inv := e.generate(t, `{"clientId":"`+e.clientID+`","timesheetIds":["ts-1","ts-2"],"taxRate":10}`)
		assert.Equal(t, "INV-1001", inv.InvoiceNumber)
		assert.Equal(t, "Draft", inv.Status)
		assert.Equal(t, "880", inv.Total)
		assert.Equal(t, []string{"ts-1", "ts-2"}, inv.Timesheets)

		rr := e.call(http.MethodPost, "/invoices/generate", "manager", `{"clientId":"`+e.clientID+`","timesheetIds":["ts-1"]}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"errors":[{"msg":"1 timesheet(s) have already been invoiced"}]}`, rr.Body.String())
	})

	t.Run("unknown invoices are not found", func(t *testing.T) {
		e := newEnv(t)
		rr := e.call(http.MethodGet, "/invoices/missing", "manager", "")
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"msg":"Invoice not found"}`, rr.Body.String())
	})

	t.Run("lifecycle through the routes", func(t *testing.T) {
		e := newEnv(t)
		inv := e.generate(t, `{"clientId":"`+e.clientID+`","timesheetIds":["ts-1"],"issueDate":"2024-03-01"}`)

		rr := e.call(http.MethodPost, "/invoices/"+inv.ID+"/send", "manager", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var sent invoiceBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sent))
		assert.Equal(t, "Sent", sent.Status)
		assert.Equal(t, "Overdue", sent.DisplayStatus)

		rr = e.call(http.MethodGet, "/invoices?status=Overdue", "manager", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var listed []invoiceBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, inv.ID, listed[0].ID)

		rr = e.call(http.MethodPost, "/invoices/"+inv.ID+"/pay", "manager", `{}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"errors":[
			{"field":"paymentDate","msg":"Payment date is required"},
			{"field":"paymentMethod","msg":"Payment method is required"}]}`, rr.Body.String())

		rr = e.call(http.MethodPost, "/invoices/"+inv.ID+"/pay", "manager", `{"paymentDate":"2024-04-20","paymentMethod":"Bank transfer"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = e.call(http.MethodPost, "/invoices/"+inv.ID+"/cancel", "manager", "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"errors":[{"msg":"Cannot cancel a paid invoice"}]}`, rr.Body.String())
	})

	t.Run("editing a sent invoice is refused", func(t *testing.T) {
		e := newEnv(t)
		inv := e.generate(t, `{"clientId":"`+e.clientID+`","timesheetIds":["ts-1"]}`)
		require.Equal(t, http.StatusOK, e.call(http.MethodPost, "/invoices/"+inv.ID+"/send", "manager", "").Code)

		body := `{"clientId":"` + e.clientID + `","issueDate":"2024-05-01","dueDate":"2024-05-31","items":[{"description":"Fee","quantity":1,"rate":10}]}`
		rr := e.call(http.MethodPut, "/invoices/"+inv.ID, "manager", body)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"errors":[{"msg":"Cannot update a sent invoice"}]}`, rr.Body.String())
	})

	t.Run("serves the pdf", func(t *testing.T) {
		e := newEnv(t)
		inv := e.generate(t, `{"clientId":"`+e.clientID+`","timesheetIds":["ts-1"]}`)

		rr := e.call(http.MethodGet, "/invoices/"+inv.ID+"/pdf", "manager", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="invoice-INV-1001.pdf"`, rr.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF-"))
	})
}
