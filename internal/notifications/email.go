package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const digestAlertLimit = 10

// EmailService delivers the alert digest to the operations mailbox
type EmailService struct {
	config *config.Config
	dial   func(m *gomail.Message) error
}

// Ensure EmailService implements DigestSender
var _ DigestSender = (*EmailService)(nil)

// NewEmailService creates a digest mailer
func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		config: cfg,
		dial: func(m *gomail.Message) error {
			d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
			return d.DialAndSend(m)
		},
	}
}

// Enabled reports whether a digest recipient is configured
func (s *EmailService) Enabled() bool {
	return s.config.DigestEmail != ""
}

// SendDigest emails the digest to the configured recipient
func (s *EmailService) SendDigest(digest *models.AlertDigest) error {
	if !s.Enabled() {
		logrus.Debug("Digest email not configured, skipping")
		return nil
	}

	htmlBody, err := BuildDigestHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build digest HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.DigestEmail)
	m.SetHeader("Subject", fmt.Sprintf("Train Complaint Alerts - %s (%d alerts)",
		digest.PeriodEnd.Format("2006-01-02"), digest.TotalAlerts))
	m.SetBody("text/plain", BuildDigestText(digest))
	m.AddAlternative("text/html", htmlBody)

	if err := s.dial(m); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}

	logrus.Infof("Sent alert digest to %s", s.config.DigestEmail)
	return nil
}

const digestTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Train Complaint Alerts</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #b3261e; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .alert { border-left: 4px solid #b3261e; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .alert-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Train Complaint Alerts</h1>
        <p>{{.PeriodStart.Format "Jan 2, 2006 15:04"}} to {{.PeriodEnd.Format "Jan 2, 2006 15:04 MST"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total Alerts:</strong> {{.TotalAlerts}}</p>
        {{range $train, $count := .ByTrain}}
            <p><strong>Train {{$train}}:</strong> {{$count}}</p>
        {{end}}
        {{range $status, $count := .BySMSStatus}}
            <p><strong>SMS {{$status}}:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .RecentAlerts}}
    <h2>Recent Alerts</h2>
    {{range $index, $alert := .RecentAlerts}}
        {{if lt $index 10}}
        <div class="alert">
            <strong>Train {{$alert.TrainNumber}}</strong>: {{$alert.UniqueUsersCount}} users in {{$alert.WindowMinutes}}m
            <div class="alert-meta">
                {{$alert.CreatedAt.Format "Jan 2 15:04"}} | station {{$alert.StationCode}} | SMS {{$alert.Notification.Status}}
            </div>
            {{if $alert.Notification.Message}}<p>{{$alert.Notification.Message | truncate 200}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>Generated automatically by the RailMind train alert bot.</small></p>
</body>
</html>
`

// BuildDigestHTML renders the HTML body of the digest email
func BuildDigestHTML(digest *models.AlertDigest) (string, error) {
	t, err := template.New("digest").Funcs(template.FuncMap{
		"truncate": func(length int, s string) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
	}).Parse(digestTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildDigestText renders the plain-text body of the digest email
func BuildDigestText(digest *models.AlertDigest) string {
	var text strings.Builder

	text.WriteString("TRAIN COMPLAINT ALERTS\n")
	text.WriteString(fmt.Sprintf("Period: %s - %s\n\n",
		digest.PeriodStart.Format("2006-01-02 15:04"), digest.PeriodEnd.Format("2006-01-02 15:04 MST")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total Alerts: %d\n", digest.TotalAlerts))

	for _, train := range sortedKeys(digest.ByTrain) {
		text.WriteString(fmt.Sprintf("Train %s: %d\n", train, digest.ByTrain[train]))
	}
	for _, status := range sortedKeys(digest.BySMSStatus) {
		text.WriteString(fmt.Sprintf("SMS %s: %d\n", status, digest.BySMSStatus[status]))
	}

	if len(digest.RecentAlerts) > 0 {
		text.WriteString("\nRECENT ALERTS\n")
		text.WriteString("=============\n")

		limit := digestAlertLimit
		if len(digest.RecentAlerts) < limit {
			limit = len(digest.RecentAlerts)
		}

		for i := 0; i < limit; i++ {
			alert := digest.RecentAlerts[i]
			text.WriteString(fmt.Sprintf("\n%d. Train %s - %d users / %d complaints in %dm\n", i+1,
				alert.TrainNumber, alert.UniqueUsersCount, alert.TotalComplaintsCount, alert.WindowMinutes))
			text.WriteString(fmt.Sprintf("   At: %s | Station: %s | SMS: %s\n",
				alert.CreatedAt.Format("Jan 2 15:04"), alert.StationCode, alert.Notification.Status))
			if alert.Notification.Error != "" {
				text.WriteString(fmt.Sprintf("   SMS error: %s\n", alert.Notification.Error))
			}
		}
	}

	text.WriteString("\n---\nGenerated automatically by the RailMind train alert bot.\n")
	return text.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
