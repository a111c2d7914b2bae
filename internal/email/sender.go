// Package email delivers outreach emails and watches the inbox for replies.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"presales_backend/platform/config"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// LeadUUIDHeader carries the lead ID on outreach emails so replies can be
// matched back without parsing the subject.
const LeadUUIDHeader = "X-Lead-UUID"

// Sender delivers engagement emails. Tests substitute fakes.
type Sender interface {
	SendOutreachEmail(ctx context.Context, toEmail, name string, leadID uuid.UUID) error
}

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSender creates an SMTPSender from configuration. Returns nil when
// email is disabled or unconfigured.
func NewSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.IsEmailEnabled() || cfg.GetSMTPHost() == "" {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

var _ Sender = (*SMTPSender)(nil)

// SendOutreachEmail sends the fallback outreach email for a lead that could
// not be reached by phone or chat. The subject tag and header both carry the
// lead ID for reply matching.
func (s *SMTPSender) SendOutreachEmail(ctx context.Context, toEmail, name string, leadID uuid.UUID) error {
	if s == nil {
		return nil
	}

	content, err := renderEmailTemplate("outreach.html", outreachEmailData{
		baseEmailData: baseEmailData{
			Title:   "We tried to reach you",
			Heading: "We tried to reach you",
		},
		Name: name,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s [Lead:%s]", subjectOutreach, leadID)
	return s.send(ctx, toEmail, subject, content, leadID)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, leadID uuid.UUID) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetGenHeader(gomail.Header(LeadUUIDHeader), leadID.String())
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
