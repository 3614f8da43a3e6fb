package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/audit"
	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/railmind/train-alert-bot/internal/notifications"
)

const outputDir = "test_output"

// FileStorage keeps archives in the local output directory
type FileStorage struct{}

func (f *FileStorage) Store(ctx context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, filename), data, 0644)
}

func (f *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, prefix+"*"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names, nil
}

func (f *FileStorage) Delete(ctx context.Context, filename string) error {
	return os.Remove(filepath.Join(outputDir, filename))
}

// TerminalDigest prints the digest instead of emailing it
type TerminalDigest struct{}

func (t *TerminalDigest) SendDigest(digest *models.AlertDigest) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Print(notifications.BuildDigestText(digest))
	fmt.Println(strings.Repeat("=", 70))
	return nil
}

func main() {
	train := flag.String("train", "", "train number to seed (default 107)")
	count := flag.Int("count", 0, fmt.Sprintf("number of mock complaints (at least threshold+2, at most %d)", alerting.MaxSeedComplaints))
	send := flag.Bool("send", false, "send the alert SMS through the gateway")
	force := flag.Bool("force", false, "bypass threshold and cooldown")
	flag.Parse()

	fmt.Println("🚆 Train Complaint Alert Bot - Mock Spike Seeder")
	fmt.Println("================================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := database.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var lookup itinerary.Lookup = itinerary.StaticLookup{}
	if csv, err := itinerary.NewCSVLookup(cfg.ItineraryCSVPath); err != nil {
		fmt.Printf("⚠️  Itinerary unavailable (%v), next stations will be empty\n", err)
	} else {
		lookup = csv
	}

	service := alerting.NewService(cfg, store, store, lookup, notifications.NewService(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("\n🧪 Seeding mock complaints (threshold %d, window %dm, cooldown %dm)...\n",
		cfg.AlertThreshold, cfg.WindowMinutes, cfg.CooldownMinutes)

	result, err := service.SeedAndEvaluate(ctx, alerting.SeedRequest{
		TrainNumber:    *train,
		ComplaintCount: *count,
		SendSMS:        *send,
		ForceAlert:     *force,
	})
	if err != nil {
		fmt.Printf("❌ Seeding failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("📥 Inserted %d complaints for train %s\n", result.InsertedComplaints, result.TrainNumber)
	if result.AlertResult.Triggered {
		fmt.Printf("🚨 Alert %s raised (%d users, SMS %s)\n",
			result.AlertResult.AlertID, result.AlertResult.UniqueUsersCount, result.AlertResult.NotificationStatus)
	} else {
		fmt.Printf("ℹ️  No alert: %s\n", result.AlertResult.Reason)
		if result.AlertResult.Error != "" {
			fmt.Printf("   ❌ %s\n", result.AlertResult.Error)
		}
	}

	if result.AlertResult.AlertID != "" {
		if alert, err := store.GetAlert(ctx, result.AlertResult.AlertID); err == nil {
			data, _ := json.MarshalIndent(alert, "", "  ")
			fmt.Printf("\n📝 Alert record:\n%s\n", data)
		}
	}

	auditService := audit.NewService(cfg, store, &FileStorage{}, &TerminalDigest{})
	if err := auditService.RunArchive(ctx); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not archive alerts: %v\n", err)
	} else {
		fmt.Printf("\n💾 Alert archive saved to %s/\n", outputDir)
	}
	if err := auditService.RunDigest(ctx); err != nil {
		fmt.Printf("⚠️  Warning: Could not build digest: %v\n", err)
	}

	fmt.Println("\n✅ Mock spike completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Run again within the cooldown to see cooldown_active")
	fmt.Println("   • Use -force to bypass threshold and cooldown")
	fmt.Println("   • Use -send to deliver the SMS through Textbelt")
}
