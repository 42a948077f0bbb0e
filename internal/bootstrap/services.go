package bootstrap

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/config"
	approvalservice "github.com/irma-project/irma-backend/internal/approvals/service"
	clientrepo "github.com/irma-project/irma-backend/internal/clients/repository"
	clientservice "github.com/irma-project/irma-backend/internal/clients/service"
	"github.com/irma-project/irma-backend/internal/events"
	invoicerepo "github.com/irma-project/irma-backend/internal/invoices/repository"
	invoiceservice "github.com/irma-project/irma-backend/internal/invoices/service"
	projectrepo "github.com/irma-project/irma-backend/internal/projects/repository"
	projectservice "github.com/irma-project/irma-backend/internal/projects/service"
	reportservice "github.com/irma-project/irma-backend/internal/reports/service"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	tsrepo "github.com/irma-project/irma-backend/internal/timesheets/repository"
	tsservice "github.com/irma-project/irma-backend/internal/timesheets/service"
	userrepo "github.com/irma-project/irma-backend/internal/users/repository"
	userservice "github.com/irma-project/irma-backend/internal/users/service"
)

// Services is the wired application layer shared by the API and the worker.
type Services struct {
	Users      *userservice.UserService
	Clients    *clientservice.ClientService
	Projects   *projectservice.ProjectService
	Timesheets *tsservice.TimesheetService
	Approvals  *approvalservice.ApprovalService
	Invoices   *invoiceservice.InvoiceService
	Reports    *reportservice.ReportService
}

func BuildServices(cfg *config.Config, db *sql.DB, rdb *redis.Client, publisher events.Publisher) *Services {
	store := redisdoc.New(rdb,
		redisdoc.WithPrefix(cfg.Redis.KeyPrefix),
		redisdoc.WithMaxRetries(cfg.Redis.MaxRetries),
	)

	users := userservice.NewUserService(userrepo.NewUserRepository(db))
	clients := clientservice.NewClientService(clientrepo.NewClientRepository(store))

	projectRepo := projectrepo.NewProjectRepository(store)
	projects := projectservice.NewProjectService(projectRepo, clients, publisher)

	timesheetRepo := tsrepo.NewTimesheetRepository(store)
	timesheets := tsservice.NewTimesheetService(timesheetRepo, projectrepo.NewLedger(store, projectRepo), projects, users, publisher)

	invoiceRepo := invoicerepo.NewInvoiceRepository(store)
	invoices := invoiceservice.NewInvoiceService(
		invoiceRepo,
		invoicerepo.NewSequence(store, invoiceRepo),
		invoicerepo.NewLinker(store, invoiceRepo, timesheetRepo),
		timesheetRepo,
		clients,
		projects,
		users,
		publisher,
		invoiceservice.WithDueDays(cfg.Billing.InvoiceDueDays),
	)

	return &Services{
		Users:      users,
		Clients:    clients,
		Projects:   projects,
		Timesheets: timesheets,
		Approvals:  approvalservice.NewApprovalService(timesheets),
		Invoices:   invoices,
		Reports:    reportservice.NewReportService(projectRepo, clients, timesheets, users),
	}
}

// Publisher fans events out to Redis pub/sub and, when enabled, RabbitMQ.
// The returned close func releases the broker connection.
func Publisher(cfg *config.Config, rdb *redis.Client) (events.Publisher, func(), error) {
	redisPub := events.NewRedisPublisher(rdb, cfg.Redis.KeyPrefix)
	if !cfg.Broker.Enabled {
		return redisPub, func() {}, nil
	}
	rabbit, err := events.DialRabbit(cfg.Broker.URL, cfg.Broker.Exchange)
	if err != nil {
		return nil, nil, err
	}
	return events.Multi{redisPub, rabbit}, func() { _ = rabbit.Close() }, nil
}
