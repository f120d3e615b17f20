package publish

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailChannel delivers intents over SMTP
type EmailChannel struct {
	from       string
	sender     mailSender
	recipients map[models.Environment]string
}

// Ensure EmailChannel implements Channel
var _ Channel = (*EmailChannel)(nil)

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; margin: 20px;">
    <h2>{{.Title}}</h2>
    <p>{{.Body}}</p>
    {{if .MediaRefs}}
    <ul>
    {{range .MediaRefs}}<li>{{.}}</li>{{end}}
    </ul>
    {{end}}
</body>
</html>
`))

// NewEmailChannel creates an SMTP channel from the configured dialer settings.
func NewEmailChannel(cfg *config.Config) *EmailChannel {
	return &EmailChannel{
		from:   cfg.SMTPUsername,
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		recipients: map[models.Environment]string{
			models.EnvironmentProduction: cfg.NotificationEmail,
			models.EnvironmentStaging:    cfg.StagingNotificationEmail,
		},
	}
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Supports(action string) bool {
	return supportsAction(action)
}

// Publish sends one message. An intent target overrides the configured
// production recipient only; staging always goes to the staging address.
func (c *EmailChannel) Publish(ctx context.Context, env models.Environment, intent models.ExecutionIntent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	to := c.recipients[env]
	if env == models.EnvironmentProduction && intent.Target != "" {
		to = intent.Target
	}
	if to == "" {
		return "", fmt.Errorf("no email recipient configured for %s", env)
	}

	content := intent.Content
	if content.Title == "" {
		content.Title = fmt.Sprintf("Intent %s", intent.IntentID)
	}
	subject := content.Title
	if intent.Action == models.ActionSendAlert {
		subject = "[ALERT] " + subject
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, content); err != nil {
		return "", fmt.Errorf("failed to build email HTML: %w", err)
	}

	id := uuid.NewString()

	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@trend-skills>", id))
	m.SetBody("text/plain", buildEmailText(content))
	m.AddAlternative("text/html", html.String())

	if err := c.sender.DialAndSend(m); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return "email:" + id, nil
}

func buildEmailText(content models.IntentContent) string {
	var text strings.Builder
	text.WriteString(content.Title + "\n\n")
	text.WriteString(content.Body + "\n")
	if len(content.MediaRefs) > 0 {
		text.WriteString("\nMedia:\n")
		for _, ref := range content.MediaRefs {
			text.WriteString("  " + ref + "\n")
		}
	}
	return text.String()
}
