// Command tasks runs the periodic maintenance jobs: quote expiry, follow-up
// reminders, stale approval auto-grants and security event cleanup. Each job is
// idempotent and safe to rerun, so the binary is suitable for cron.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"backend/internal/cache"
	"backend/internal/database"
	"backend/internal/logger"
	"backend/internal/mail"
	"backend/internal/permission"
	"backend/internal/quote"
	"backend/internal/repository"
	"backend/internal/service"
	ws "backend/internal/websocket"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	var (
		expireQuotes   = flag.Bool("expire-quotes", false, "mark open quotes past their validity date as expired")
		followups      = flag.Bool("followup-reminders", false, "notify assignees of quotes with a due follow-up")
		autoApprove    = flag.Bool("auto-approve", false, "auto-approve stale employee access requests")
		approveHours   = flag.Int("hours", 72, "age in hours before an access request auto-approves")
		cleanupEvents  = flag.Bool("cleanup-security-events", false, "delete old security events")
		retentionDays  = flag.Int("days", 90, "security event retention in days")
		dryRun         = flag.Bool("dry-run", false, "report what would change without writing")
		timeoutSeconds = flag.Int("timeout", 300, "job timeout in seconds")
	)
	flag.Parse()

	if !*expireQuotes && !*followups && !*autoApprove && !*cleanupEvents {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	zlog := logger.New()
	defer zlog.Sync()

	db, err := database.NewConnection(database.DSNFromEnv(os.Getenv))
	if err != nil {
		zlog.Fatalw("database connection failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSeconds)*time.Second)
	defer cancel()

	// Jobs publish to a hub nobody subscribes to; notifications still persist.
	hub := ws.NewHub(zlog)
	go hub.Run()

	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	clientRepo := repository.NewClientRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewSecurityEventRepository(db)

	resolver := permission.NewResolver(cache.NewMemoryStore(), permissionRepo, zlog)
	notificationService := service.NewNotificationService(notificationRepo, eventRepo, hub, zlog)

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	quoteService := service.NewQuoteService(quoteRepo, clientRepo, userRepo, txManager,
		notificationService, mail.NoopMailer{}, quote.DefaultApprovalPolicy(), baseURL, zlog)
	approvalService := service.NewApprovalService(approvalRepo, permissionRepo, userRepo,
		txManager, resolver, notificationService, mail.NoopMailer{}, zlog)

	exitCode := 0

	if *expireQuotes {
		count, err := quoteService.ExpireOpenQuotes(ctx)
		if err != nil {
			zlog.Errorw("expire-quotes failed", "error", err)
			exitCode = 1
		} else {
			fmt.Printf("expire-quotes: %d quote(s) expired\n", count)
		}
	}

	if *followups {
		count, err := quoteService.SendFollowupReminders(ctx)
		if err != nil {
			zlog.Errorw("followup-reminders failed", "error", err)
			exitCode = 1
		} else {
			fmt.Printf("followup-reminders: %d reminder(s) sent\n", count)
		}
	}

	if *autoApprove {
		count, err := approvalService.AutoApproveOld(ctx, time.Duration(*approveHours)*time.Hour, *dryRun)
		if err != nil {
			zlog.Errorw("auto-approve failed", "error", err)
			exitCode = 1
		} else if *dryRun {
			fmt.Printf("auto-approve (dry run): %d request(s) would be approved\n", count)
		} else {
			fmt.Printf("auto-approve: %d request(s) approved\n", count)
		}
	}

	if *cleanupEvents {
		count, err := notificationService.CleanupSecurityEvents(ctx, *retentionDays, *dryRun)
		if err != nil {
			zlog.Errorw("cleanup-security-events failed", "error", err)
			exitCode = 1
		} else if *dryRun {
			fmt.Printf("cleanup-security-events (dry run): %d event(s) would be deleted\n", count)
		} else {
			fmt.Printf("cleanup-security-events: %d event(s) deleted\n", count)
		}
	}

	os.Exit(exitCode)
}
