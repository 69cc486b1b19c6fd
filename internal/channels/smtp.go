package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/structuredesk/riskwatch/internal/alert"
)

// SMTPSink delivers alerts by email.
type SMTPSink struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSink creates an SMTPSink.
func NewSMTPSink(host string, port int, user, password, from string, to []string) *SMTPSink {
	return &SMTPSink{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert by email.
func (s *SMTPSink) Send(ctx context.Context, channel string, a *alert.Alert) error {
	subject := fmt.Sprintf("[%s/%s] %s", a.Audience, a.Priority, a.Content.Summary)
	body := s.buildBody(channel, a)

	message := fmt.Sprintf("From: %s\r\n", s.from)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(s.to, ", "))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *SMTPSink) buildBody(channel string, a *alert.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RISKWATCH ALERT - %s / %s\n", a.Audience, a.Priority)
	fmt.Fprintf(&b, "=======================================\n\n")
	fmt.Fprintf(&b, "%s\n\n", a.Content.Summary)
	fmt.Fprintf(&b, "Alert ID:  %s\n", a.AlertID)
	fmt.Fprintf(&b, "Event ID:  %s\n", a.EventID)
	fmt.Fprintf(&b, "Trade ID:  %s\n", a.TradeID)
	fmt.Fprintf(&b, "Channel:   %s\n", channel)
	fmt.Fprintf(&b, "Created:   %s\n\n", a.CreatedAt.Format(time.RFC3339))
	if len(a.Content.Details) > 0 {
		fmt.Fprintf(&b, "DETAILS\n")
		fmt.Fprintf(&b, "---------------------------------------\n")
		for k, v := range a.Content.Details {
			fmt.Fprintf(&b, "%-14s %s\n", k+":", v)
		}
		fmt.Fprintf(&b, "\n")
	}
	if a.Content.HedgingSummary != "" {
		fmt.Fprintf(&b, "Hedging: %s\n\n", a.Content.HedgingSummary)
	}
	if !a.Content.Deadline.IsZero() {
		fmt.Fprintf(&b, "Deadline: %s\n\n", a.Content.Deadline.Format(time.RFC3339))
	}
	if len(a.Content.TalkingPoints) > 0 {
		fmt.Fprintf(&b, "TALKING POINTS\n")
		fmt.Fprintf(&b, "---------------------------------------\n")
		for _, p := range a.Content.TalkingPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		fmt.Fprintf(&b, "\n")
	}
	if len(a.Content.RequiredActions) > 0 {
		fmt.Fprintf(&b, "REQUIRED ACTIONS\n")
		fmt.Fprintf(&b, "---------------------------------------\n")
		for i, act := range a.Content.RequiredActions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, act)
		}
	}
	return b.String()
}
