package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	dialer mailDialer
}

// mailDialer is satisfied by *gomail.Dialer
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// SendReport sends a moderation digest via configured notification channels
func (s *Service) SendReport(report *models.ModerationReport) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postToTeams(s.buildTeamsMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent moderation digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent moderation digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SendAlert posts an urgent alert to Teams. Alerts are not emailed.
func (s *Service) SendAlert(alert *models.Alert) error {
	logrus.WithFields(logrus.Fields{
		"type":       alert.Type,
		"content_id": alert.ContentID,
	}).Warn(alert.Title)

	if s.config.TeamsWebhookURL == "" {
		return nil
	}
	return s.postToTeams(s.buildAlertMessage(alert))
}

func (s *Service) postToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) buildTeamsMessage(report *models.ModerationReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("GreatTalk Moderation Digest - %s", periodTitle(report.Period)),
		Text:    fmt.Sprintf("Reviewed %d posts, rejected %d", report.Reviewed, len(report.Rejected)),
	}

	facts := []TeamsFact{
		{Name: "Reviewed", Value: fmt.Sprintf("%d", report.Reviewed)},
		{Name: "Rejected", Value: fmt.Sprintf("%d", len(report.Rejected))},
		{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
	for _, fc := range flagCounts(report) {
		facts = append(facts, TeamsFact{Name: fmt.Sprintf("Flag: %s", fc.flag), Value: fmt.Sprintf("%d", fc.count)})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Rejected) > 0 {
		limit := 5
		if len(report.Rejected) < limit {
			limit = len(report.Rejected)
		}

		var lines []string
		for _, d := range report.Rejected[:limit] {
			lines = append(lines, fmt.Sprintf("**%s** (%s) - confidence %.2f: %s",
				d.Item.Title, d.Item.ID, d.Confidence, strings.Join(d.Reasons, "; ")))
		}

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Rejected Posts",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) buildAlertMessage(alert *models.Alert) *TeamsMessage {
	color := "0078D4"
	switch alert.Type {
	case "critical":
		color = "D13438"
	case "urgent":
		color = "FF8C00"
	}

	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: color,
		Title:      alert.Title,
		Text:       alert.Message,
	}
	if alert.ContentID != "" {
		message.Sections = []TeamsSection{{
			Facts: []TeamsFact{
				{Name: "Post", Value: alert.ContentID},
				{Name: "Raised", Value: alert.CreatedAt.UTC().Format(time.RFC3339)},
			},
		}}
	}
	return message
}

func (s *Service) sendEmail(report *models.ModerationReport) error {
	subject := fmt.Sprintf("GreatTalk Moderation Digest - %s (%d rejected)",
		periodTitle(report.Period), len(report.Rejected))

	htmlBody, err := s.buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>GreatTalk Moderation Digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #5b2c83; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .post { border-left: 4px solid #d13438; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .post-title { font-weight: bold; margin-bottom: 5px; }
        .post-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Moderation Digest</h1>
        <p>{{.Report.Period | title}} sweep generated on {{.Report.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Posts reviewed:</strong> {{.Report.Reviewed}}</p>
        <p><strong>Posts rejected:</strong> {{len .Report.Rejected}}</p>
        {{range .Flags}}
            <p><strong>{{.Flag}}:</strong> {{.Count}}</p>
        {{end}}
    </div>

    {{if .Report.Rejected}}
    <h2>Rejected Posts</h2>
    {{range $index, $d := .Report.Rejected}}
        {{if lt $index 10}}
        <div class="post">
            <div class="post-title">{{$d.Item.Title}}</div>
            <div class="post-meta">
                {{$d.Item.ID}} by {{$d.Item.AuthorID}} | confidence {{printf "%.2f" $d.Confidence}} | {{$d.Item.ReportCount}} reports
            </div>
            {{range $d.Reasons}}<p>{{. | truncate 200}}</p>{{end}}
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by the GreatTalk recommender.</small></p>
</body>
</html>
`

type flagRow struct {
	Flag  string
	Count int
}

func (s *Service) buildEmailHTML(report *models.ModerationReport) (string, error) {
	t := template.New("email").Funcs(template.FuncMap{
		"title": periodTitle,
		"truncate": func(length int, s string) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},
	})

	t, err := t.Parse(emailTemplate)
	if err != nil {
		return "", err
	}

	var rows []flagRow
	for _, fc := range flagCounts(report) {
		rows = append(rows, flagRow{Flag: fc.flag, Count: fc.count})
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, struct {
		Report *models.ModerationReport
		Flags  []flagRow
	}{report, rows}); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *Service) buildEmailText(report *models.ModerationReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("GreatTalk Moderation Digest - %s\n", periodTitle(report.Period)))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Reviewed: %d\n", report.Reviewed))
	text.WriteString(fmt.Sprintf("Rejected: %d\n", len(report.Rejected)))
	for _, fc := range flagCounts(report) {
		text.WriteString(fmt.Sprintf("Flag %s: %d\n", fc.flag, fc.count))
	}

	if len(report.Rejected) > 0 {
		text.WriteString("\nREJECTED POSTS\n")
		text.WriteString("==============\n")

		limit := 10
		if len(report.Rejected) < limit {
			limit = len(report.Rejected)
		}

		for i, d := range report.Rejected[:limit] {
			text.WriteString(fmt.Sprintf("\n%d. %s (%s)\n", i+1, d.Item.Title, d.Item.ID))
			text.WriteString(fmt.Sprintf("   Author: %s | Confidence: %.2f | Reports: %d\n",
				d.Item.AuthorID, d.Confidence, d.Item.ReportCount))
			for _, r := range d.Reasons {
				text.WriteString(fmt.Sprintf("   - %s\n", r))
			}
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by the GreatTalk recommender.\n")

	return text.String()
}

type flagCount struct {
	flag  string
	count int
}

// flagCounts reads the "flags" summary entry in descending count order
func flagCounts(report *models.ModerationReport) []flagCount {
	counts, ok := report.Summary["flags"].(map[string]int)
	if !ok {
		return nil
	}

	out := make([]flagCount, 0, len(counts))
	for f, c := range counts {
		out = append(out, flagCount{flag: f, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].flag < out[j].flag
	})
	return out
}

func periodTitle(period string) string {
	if period == "" {
		return ""
	}
	return strings.ToUpper(period[:1]) + period[1:]
}
