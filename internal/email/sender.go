package email

import (
	"context"

	"leadmarket_backend/platform/config"
)

// Sender delivers the transactional emails of the lead marketplace.
type Sender interface {
	SendNewLeadEmail(ctx context.Context, toEmail, leadTitle, city string) error
	SendLeadReservedEmail(ctx context.Context, toEmail, leadTitle string) error
	SendLeadPurchasedEmail(ctx context.Context, toEmail, leadTitle string, amountCents int64) error
}

// NoopSender drops every email. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendNewLeadEmail(ctx context.Context, toEmail, leadTitle, city string) error {
	return nil
}

func (NoopSender) SendLeadReservedEmail(ctx context.Context, toEmail, leadTitle string) error {
	return nil
}

func (NoopSender) SendLeadPurchasedEmail(ctx context.Context, toEmail, leadTitle string, amountCents int64) error {
	return nil
}

// NewSender returns an SMTP sender, or a NoopSender when SMTP is disabled.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetSMTPFrom(), cfg.GetSMTPFromName())
}
