package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp", addr)
		}),
	}
	if s.port == 465 {
		opts = append(opts, gomail.WithSSLPort(false))
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	return opts
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendNewLeadEmail(ctx context.Context, toEmail, leadTitle, city string) error {
	content, err := renderEmailTemplate("new_lead.html", newLeadEmailData{
		baseEmailData: baseEmailData{Title: subjectNewLead, Heading: subjectNewLead},
		LeadTitle:     leadTitle,
		City:          city,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectNewLead, content)
}

func (s *SMTPSender) SendLeadReservedEmail(ctx context.Context, toEmail, leadTitle string) error {
	content, err := renderEmailTemplate("lead_reserved.html", leadReservedEmailData{
		baseEmailData: baseEmailData{Title: subjectLeadReserved, Heading: subjectLeadReserved},
		LeadTitle:     leadTitle,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadReserved, content)
}

func (s *SMTPSender) SendLeadPurchasedEmail(ctx context.Context, toEmail, leadTitle string, amountCents int64) error {
	content, err := renderEmailTemplate("lead_purchased.html", leadPurchasedEmailData{
		baseEmailData:   baseEmailData{Title: subjectLeadPurchased, Heading: subjectLeadPurchased},
		LeadTitle:       leadTitle,
		AmountFormatted: formatCurrencyEUR(amountCents),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectLeadPurchased, content)
}
