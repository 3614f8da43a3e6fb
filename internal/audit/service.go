package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/railmind/train-alert-bot/internal/notifications"
	"github.com/railmind/train-alert-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	archivePrefix     = "alerts-"
	archiveSuffix     = ".json"
	archiveTimeLayout = "2006-01-02-15-04-05"
	reportPeriod      = 24 * time.Hour
	recentAlertLimit  = 10
)

// Archive is the document uploaded for each archive run
type Archive struct {
	GeneratedAt time.Time      `json:"generated_at"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Alerts      []models.Alert `json:"alerts"`
}

// Service exports the alert trail to blob storage and mails the daily digest
type Service struct {
	config  *config.Config
	alerts  database.AlertStore
	archive storage.ArchiveStore
	digest  notifications.DigestSender
	now     func() time.Time
}

// NewService creates an audit service. archive and digest may be nil, in
// which case the matching job is skipped.
func NewService(cfg *config.Config, alerts database.AlertStore, archive storage.ArchiveStore, digest notifications.DigestSender) *Service {
	return &Service{
		config:  cfg,
		alerts:  alerts,
		archive: archive,
		digest:  digest,
		now:     time.Now,
	}
}

// ArchiveName returns the blob name for an archive generated at t
func ArchiveName(t time.Time) string {
	return archivePrefix + t.UTC().Format(archiveTimeLayout) + archiveSuffix
}

// parseArchiveName extracts the generation time from an archive blob name
func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	t, err := time.Parse(archiveTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RunArchive uploads the last day of alerts and prunes expired archives
func (s *Service) RunArchive(ctx context.Context) error {
	if s.archive == nil {
		logrus.Debug("No archive storage configured, skipping alert archive")
		return nil
	}

	end := s.now().UTC()
	start := end.Add(-reportPeriod)

	alerts, err := s.periodAlerts(ctx, start, end)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(Archive{
		GeneratedAt: end,
		PeriodStart: start,
		PeriodEnd:   end,
		Alerts:      alerts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert archive: %w", err)
	}

	name := ArchiveName(end)
	if err := s.archive.Store(ctx, name, data); err != nil {
		return fmt.Errorf("failed to store alert archive: %w", err)
	}
	logrus.Infof("Archived %d alerts to %s", len(alerts), name)

	if err := s.pruneArchives(ctx, end); err != nil {
		logrus.Warnf("Failed to prune old alert archives: %v", err)
	}
	return nil
}

func (s *Service) pruneArchives(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-time.Duration(s.config.ArchiveRetentionDays) * 24 * time.Hour)

	names, err := s.archive.List(ctx, archivePrefix)
	if err != nil {
		return err
	}

	for _, name := range names {
		generated, ok := parseArchiveName(name)
		if !ok || !generated.Before(cutoff) {
			continue
		}
		if err := s.archive.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// BuildDigest summarizes the alerts raised in the last day
func (s *Service) BuildDigest(ctx context.Context) (*models.AlertDigest, error) {
	end := s.now().UTC()
	start := end.Add(-reportPeriod)

	filter := periodFilter(start, end)

	counts, err := s.alerts.CountAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts for digest: %w", err)
	}

	filter.Limit = recentAlertLimit
	recent, err := s.alerts.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts for digest: %w", err)
	}

	return &models.AlertDigest{
		GeneratedAt:  end,
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalAlerts:  counts.Total,
		ByTrain:      counts.ByTrain,
		BySMSStatus:  counts.BySMSStatus,
		RecentAlerts: recent,
	}, nil
}

// RunDigest builds and sends the daily digest
func (s *Service) RunDigest(ctx context.Context) error {
	if s.digest == nil {
		logrus.Debug("No digest sender configured, skipping alert digest")
		return nil
	}

	digest, err := s.BuildDigest(ctx)
	if err != nil {
		return err
	}

	if err := s.digest.SendDigest(digest); err != nil {
		return fmt.Errorf("failed to send alert digest: %w", err)
	}
	logrus.Infof("Sent alert digest covering %d alerts", digest.TotalAlerts)
	return nil
}

// periodFilter matches alerts created in [start, end]
func periodFilter(start, end time.Time) database.AlertFilter {
	return database.AlertFilter{Since: start, Until: end.Add(time.Millisecond)}
}

// periodAlerts loads every alert of the period, newest first, one page at a time
func (s *Service) periodAlerts(ctx context.Context, start, end time.Time) ([]models.Alert, error) {
	filter := periodFilter(start, end)
	filter.Limit = database.MaxListLimit

	alerts := make([]models.Alert, 0)
	for {
		page, err := s.alerts.ListAlerts(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to load alerts for %s - %s: %w",
				start.Format(time.RFC3339), end.Format(time.RFC3339), err)
		}
		alerts = append(alerts, page...)
		if len(page) < filter.Limit {
			return alerts, nil
		}
		filter.Offset += len(page)
	}
}
