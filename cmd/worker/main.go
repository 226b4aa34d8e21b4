// The worker binary runs only the background engines: the drip sequence
// runner, the A/B test evaluator, and the RSS poller. Run it separately
// from the API server when send volume justifies its own process.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/inkwell-hq/inkwell/internal/campaign"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/sequence"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		ses, err := mailer.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.SES.FromEmail, cfg.SES.FromName)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		sender = ses
	} else {
		log.Println("SES not configured — emails will be logged, not sent")
	}
	templates := mailer.NewTemplates(cfg.Server.BaseURL)

	runner := sequence.NewRunner(db, sender, templates,
		time.Duration(cfg.Sequences.TickIntervalSeconds)*time.Second)
	runner.Start()
	log.Printf("Sequence runner started (every %ds)", cfg.Sequences.TickIntervalSeconds)

	evaluator := campaign.NewEvaluator(db, time.Minute, 4*time.Hour)
	evaluator.Start()
	log.Println("A/B test evaluator started")

	poller := campaign.NewRSSPoller(db, time.Duration(cfg.RSS.PollIntervalMinutes)*time.Minute)
	poller.Start()
	log.Printf("RSS poller started (every %dm)", cfg.RSS.PollIntervalMinutes)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Shutting down...")
	runner.Stop()
	evaluator.Stop()
	poller.Stop()
	db.Close()
	log.Println("Worker stopped")
}
