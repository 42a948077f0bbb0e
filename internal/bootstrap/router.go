package bootstrap

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/irma-project/irma-backend/config"
	httpapi "github.com/irma-project/irma-backend/internal/api/http"
	"github.com/irma-project/irma-backend/internal/api/http/middleware"
	approvalhttp "github.com/irma-project/irma-backend/internal/approvals/http"
	"github.com/irma-project/irma-backend/internal/auth"
	authhttp "github.com/irma-project/irma-backend/internal/auth/http"
	authmw "github.com/irma-project/irma-backend/internal/auth/middleware"
	clienthttp "github.com/irma-project/irma-backend/internal/clients/http"
	invoicehttp "github.com/irma-project/irma-backend/internal/invoices/http"
	"github.com/irma-project/irma-backend/internal/metrics"
	projecthttp "github.com/irma-project/irma-backend/internal/projects/http"
	reporthttp "github.com/irma-project/irma-backend/internal/reports/http"
	timesheethttp "github.com/irma-project/irma-backend/internal/timesheets/http"
	userhttp "github.com/irma-project/irma-backend/internal/users/http"
)

type RouterDeps struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Services *Services
	Auth     gin.HandlerFunc
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     dep.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestIDMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.Config.App.ServiceName, dep.Config.App.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", metrics.Handler)

	limiter := middleware.NewRateLimiter(dep.Config.Server.RateLimitRPS, dep.Config.Server.RateLimitBurst)
	api := r.Group("/api/v1")
	api.Use(dep.Auth, limiter.Middleware())

	svc := dep.Services
	authhttp.New(svc.Users).Register(api.Group("/auth"))
	userhttp.New(svc.Users).Register(api.Group("/users"))
	clienthttp.New(svc.Clients).Register(api.Group("/clients"))
	projecthttp.New(svc.Projects).Register(api.Group("/projects"))
	timesheethttp.New(svc.Timesheets).Register(api.Group("/timesheets"))
	approvalhttp.New(svc.Approvals).Register(api.Group("/approvals", authmw.RequireOp(auth.OpApprovalQueue)))
	invoicehttp.New(svc.Invoices).Register(api.Group("/invoices", authmw.RequireOp(auth.OpInvoiceRead)))
	reporthttp.New(svc.Reports).Register(api.Group("/reports", authmw.RequireOp(auth.OpReportRead)))

	return r
}
