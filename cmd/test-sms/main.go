package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/railmind/train-alert-bot/internal/notifications"
)

func main() {
	send := flag.Bool("send", false, "actually send the SMS (uses gateway quota)")
	phone := flag.String("phone", "", "override the alert phone number")
	flag.Parse()

	fmt.Println("📱 Train Complaint Alert Bot - SMS Gateway Test")
	fmt.Println("===============================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *phone != "" {
		cfg.NotifyPhoneNumber = *phone
	}

	message := alerting.BuildMessage(alerting.MessageInput{
		TrainNumber:      "107",
		UniqueUsersCount: cfg.AlertThreshold + 1,
		WindowMinutes:    cfg.WindowMinutes,
		NextStations: []models.NextStationRef{
			{StationCode: "THVM", StationName: "THIVIM", SequenceNumber: 1},
			{StationCode: "KRMI", StationName: "KARMALI", SequenceNumber: 2},
		},
		ComplaintSummaries: []models.ComplaintSummary{
			{Description: "Gateway connectivity test, please ignore."},
		},
	})

	fmt.Printf("\n🔸 Gateway:  %s\n", cfg.SMSGatewayURL)
	fmt.Printf("🔸 Phone:    %s\n", cfg.NotifyPhoneNumber)
	fmt.Printf("🔸 Enabled:  %t\n", cfg.NotificationsEnabled)
	fmt.Printf("🔸 Message:  %s\n", message)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SMSTimeout+5*time.Second)
	defer cancel()

	service := notifications.NewService(cfg)
	outcome := service.Notify(ctx, cfg.NotifyPhoneNumber, message, *send, !*send)

	switch outcome.Status {
	case models.NotificationSent:
		fmt.Printf("\n✅ SENT (%s)\n", outcome.RawResponse)
	case models.NotificationSkipped:
		fmt.Printf("\n⚠️  SKIPPED (%s)\n", outcome.RawResponse)
	default:
		fmt.Printf("\n❌ FAILED: %s\n", outcome.Error)
		if len(outcome.RawResponse) > 0 {
			fmt.Printf("   Gateway reply: %s\n", outcome.RawResponse)
		}
	}

	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Re-run with -send to deliver a real SMS")
	fmt.Println("   • Run cmd/seed-alert to exercise the full alert pipeline")
}
