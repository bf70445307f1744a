package render

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

func TestRender(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		kind billing.Kind
		data any
	}{
		{
			name: "invoice",
			kind: billing.KindInvoice,
			data: &billing.InvoiceData{
				TripName:        "Japan 2024",
				ParticipantName: "Alice",
				Version:         7,
				GeneratedAt:     at,
				Items: []billing.InvoiceItem{
					{Name: "Lift Pass", OriginalAmount: 35000, Currency: models.CurrencyJPY, BufferRate: 0.3, Share: "1/5", ShareTHB: 2100},
					{Name: "Café", OriginalAmount: 5000, Currency: models.CurrencyTHB, Share: "1/4", ShareTHB: 1250},
				},
				Total: 3350,
			},
		},
		{
			name: "receipt",
			kind: billing.KindReceipt,
			data: &billing.ReceiptData{
				TripName:        "Japan 2024",
				ParticipantName: "Bob",
				ReceiptNumber:   3,
				GeneratedAt:     at,
				PaymentMethod:   "cash",
				Items: []billing.ReceiptItem{
					{InvoiceVersion: 7, ExpenseName: "Hotel", OriginalAmount: 5000, Currency: models.CurrencyTHB, Share: "1/2", AmountPaid: 2500},
				},
				Total: 2500,
			},
		},
		{
			name: "refund",
			kind: billing.KindRefund,
			data: &billing.RefundData{
				TripName:        "Japan 2024",
				ParticipantName: "Carol",
				GeneratedAt:     at,
				Reconciliation: calculator.Reconciliation{
					CollectedItems: []calculator.CollectedItem{{ExpenseName: "Lift Pass", OriginalAmount: 35000, Currency: models.CurrencyJPY, BufferRate: 0.3, Share: "1/5", CollectedTHB: 2100}},
					ActualItems:    []calculator.ActualItem{{ExpenseName: "Lift Pass", PaidAmount: 35000, PaidCurrency: models.CurrencyJPY, ActualTHB: 8400, Share: "1/5", CostTHB: 1680}},
					TotalCollected: 2100,
					TotalActual:    1680,
					RefundAmount:   420,
				},
			},
		},
		{
			name: "empty refund",
			kind: billing.KindRefund,
			data: &billing.RefundData{ParticipantName: "Dave", GeneratedAt: at},
		},
	}

	r := NewPDF()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.kind, tt.data)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if !bytes.HasPrefix(out, []byte("%PDF-")) {
				t.Errorf("output does not look like a PDF: %q", out[:min(len(out), 16)])
			}
		})
	}
}

func TestRender_Mismatch(t *testing.T) {
	tests := []struct {
		name string
		kind billing.Kind
		data any
	}{
		{"receipt data as invoice", billing.KindInvoice, &billing.ReceiptData{}},
		{"nil data", billing.KindRefund, nil},
		{"typed nil", billing.KindReceipt, (*billing.ReceiptData)(nil)},
		{"unknown kind", billing.Kind("memo"), &billing.InvoiceData{}},
	}
	r := NewPDF()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.kind, tt.data)
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("expected ErrUnsupported, got %v", err)
			}
		})
	}
}
