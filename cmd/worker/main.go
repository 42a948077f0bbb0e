package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/irma-project/irma-backend/config"
	"github.com/irma-project/irma-backend/internal/bootstrap"
	"github.com/irma-project/irma-backend/internal/scheduler"
)

// The worker runs the billing jobs. "worker sweep" runs the overdue sweep
// once and exits; with no argument it stays up on the configured schedule.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenSQL(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	publisher, closePublisher, err := bootstrap.Publisher(cfg, rdb)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	defer closePublisher()

	services := bootstrap.BuildServices(cfg, db, rdb, publisher)
	s := scheduler.New(services.Invoices, publisher)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "sweep":
			n, err := s.SweepOverdue(ctx)
			if err != nil {
				log.Fatalf("sweep: %v", err)
			}
			log.Printf("overdue invoices: %d", n)
			return
		default:
			log.Fatalf("unknown command: %s", os.Args[1])
		}
	}

	if err := s.Start(cfg.Scheduler.OverdueSweepSpec); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	<-ctx.Done()
	log.Println("stopping scheduler")
	<-s.Stop().Done()
}
