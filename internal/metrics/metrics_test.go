package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/tripledger/internal/billing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read metrics: %v", err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()
	m.Observe(billing.Event{Type: billing.EventInvoiceCommitted, AmountTHB: 2100})
	m.Observe(billing.Event{Type: billing.EventInvoiceCommitted, AmountTHB: 1250})
	m.Observe(billing.Event{Type: billing.EventReceiptVoided})
	m.ObserveRPC("/tripledger.v1.BillingService/CommitInvoice", "ok", 15*time.Millisecond)

	body := scrape(t, m)
	for _, want := range []string{
		`tripledger_billing_events_total{type="invoice.committed"} 2`,
		`tripledger_billing_amount_thb_total{type="invoice.committed"} 3350`,
		`tripledger_billing_events_total{type="receipt.voided"} 1`,
		`tripledger_rpc_requests_total{code="ok",procedure="/tripledger.v1.BillingService/CommitInvoice"} 1`,
		"tripledger_rpc_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if strings.Contains(body, `tripledger_billing_amount_thb_total{type="receipt.voided"}`) {
		t.Error("zero-amount events should not create an amount series")
	}
}
