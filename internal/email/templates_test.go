package email

import (
	"strings"
	"testing"
)

func TestRenderPurchaseReceipt(t *testing.T) {
	html, err := renderEmailTemplate("lead_purchased.html", leadPurchasedEmailData{
		baseEmailData:   baseEmailData{Title: subjectLeadPurchased, Heading: subjectLeadPurchased},
		LeadTitle:       "Salle de bain <complète>",
		AmountFormatted: formatCurrencyEUR(4550),
	})
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	if !strings.Contains(html, "45,50 €") {
		t.Fatalf("expected formatted amount in %q", html)
	}
	if strings.Contains(html, "<complète>") {
		t.Fatal("expected lead title to be escaped")
	}
}

func TestRenderNewLeadOmitsEmptyCity(t *testing.T) {
	html, err := renderEmailTemplate("new_lead.html", newLeadEmailData{
		baseEmailData: baseEmailData{Title: subjectNewLead, Heading: subjectNewLead},
		LeadTitle:     "Toiture",
	})
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	if strings.Contains(html, "&middot;") {
		t.Fatal("expected no city separator without a city")
	}
}

func TestNewSenderWithoutSMTPIsNoop(t *testing.T) {
	if _, ok := NewSender(disabledSMTP{}).(NoopSender); !ok {
		t.Fatal("expected NoopSender when SMTP is disabled")
	}
}

type disabledSMTP struct{}

func (disabledSMTP) GetSMTPHost() string     { return "" }
func (disabledSMTP) GetSMTPPort() int        { return 587 }
func (disabledSMTP) GetSMTPUsername() string { return "" }
func (disabledSMTP) GetSMTPPassword() string { return "" }
func (disabledSMTP) GetSMTPFrom() string     { return "" }
func (disabledSMTP) GetSMTPFromName() string { return "" }
func (disabledSMTP) IsSMTPEnabled() bool     { return false }
