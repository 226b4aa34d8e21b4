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
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-hq/inkwell/internal/api"
	"github.com/inkwell-hq/inkwell/internal/assets"
	"github.com/inkwell-hq/inkwell/internal/assist"
	"github.com/inkwell-hq/inkwell/internal/auth"
	"github.com/inkwell-hq/inkwell/internal/campaign"
	"github.com/inkwell-hq/inkwell/internal/captcha"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/contactsync"
	"github.com/inkwell-hq/inkwell/internal/mailer"
	"github.com/inkwell-hq/inkwell/internal/ratelimit"
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
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	pingCancel()
	log.Println("Database connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := api.Deps{}

	// Transactional email: SES when credentials are configured, log-only
	// otherwise so local development works without AWS.
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		sender, err := mailer.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.SES.FromEmail, cfg.SES.FromName)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		deps.Sender = sender
		log.Printf("SES sender initialized (region: %s, from: %s)", cfg.SES.Region, cfg.SES.FromEmail)
	} else {
		// The sequence runner captures the sender before api.NewServer
		// applies its own default, so the fallback has to happen here.
		deps.Sender = mailer.LogSender{}
		log.Println("SES not configured — emails will be logged, not sent")
	}
	deps.Templates = mailer.NewTemplates(cfg.Server.BaseURL)

	if cfg.Captcha.Enabled {
		deps.Captcha = captcha.New(cfg.Captcha.Secret, cfg.Captcha.VerifyURL)
		log.Println("Captcha verification enabled")
	}

	if cfg.ContactSync.Enabled {
		deps.Sync = contactsync.New(cfg.ContactSync.BaseURL, cfg.ContactSync.APIKey)
		if deps.Sync != nil {
			log.Printf("Contact sync enabled (%s)", cfg.ContactSync.BaseURL)
		}
	}

	// Redis backs signup rate limiting and the dashboard cache; both fail
	// open, so a Redis outage degrades rather than breaks signups.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unreachable (%s): %v — rate limiting and caching disabled", cfg.Redis.Addr, err)
		redisClient.Close()
		redisClient = nil
	} else {
		deps.Limiter = ratelimit.New(redisClient, 10, time.Minute)
		deps.Cache = ratelimit.NewCache(redisClient, time.Duration(cfg.Referral.DashboardTTL)*time.Second)
		log.Printf("Redis connected: %s", cfg.Redis.Addr)
	}

	if cfg.Assist.Enabled {
		svc, err := assist.New(cfg.Assist.Region, cfg.Assist.ModelID)
		if err != nil {
			log.Printf("Warning: assist init failed: %v", err)
		} else {
			deps.Assist = svc
			log.Printf("Content assist enabled (model: %s)", cfg.Assist.ModelID)
		}
	}

	if cfg.Assets.Enabled {
		svc, err := assets.New(ctx, cfg.Assets.Bucket, cfg.Assets.Region, cfg.Assets.CDNDomain)
		if err != nil {
			log.Printf("Warning: asset storage init failed: %v", err)
		} else {
			deps.Assets = svc
			log.Printf("Asset storage enabled (bucket: %s)", cfg.Assets.Bucket)
		}
	}

	if cfg.Auth.Enabled && cfg.Auth.GoogleClientID != "" {
		manager := auth.NewManager(&cfg.Auth, cfg.Server.BaseURL)
		manager.StartSessionCleanup(ctx)
		deps.Auth = manager
		log.Printf("Google OAuth enabled (domain: %s)", cfg.Auth.AllowedDomain)
	} else {
		log.Println("Admin authentication disabled")
	}

	// Drip sequence runner. It also handles enroll-on-confirmation, so it
	// exists even when background ticking is disabled.
	runner := sequence.NewRunner(db, deps.Sender, deps.Templates,
		time.Duration(cfg.Sequences.TickIntervalSeconds)*time.Second)
	if redisClient != nil {
		runner.SetRedisClient(redisClient)
	}
	deps.Runner = runner
	if cfg.Sequences.Enabled {
		runner.Start()
		log.Printf("Sequence runner started (every %ds)", cfg.Sequences.TickIntervalSeconds)
	}

	evaluator := campaign.NewEvaluator(db, time.Minute, 4*time.Hour)
	evaluator.Start()
	deps.Evaluator = evaluator
	log.Println("A/B test evaluator started")

	var poller *campaign.RSSPoller
	if cfg.RSS.Enabled {
		poller = campaign.NewRSSPoller(db, time.Duration(cfg.RSS.PollIntervalMinutes)*time.Minute)
		poller.Start()
		deps.Poller = poller
		log.Printf("RSS poller started (every %dm)", cfg.RSS.PollIntervalMinutes)
	}

	server := api.NewServer(cfg, db, deps)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	if cfg.Sequences.Enabled {
		runner.Stop()
	}
	evaluator.Stop()
	if poller != nil {
		poller.Stop()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	db.Close()
	log.Println("Server stopped")
}
