package render

import (
	"fmt"

	"github.com/mmynk/tripledger/internal/billing"
)

func (d *document) invoice(data *billing.InvoiceData) {
	title := "Invoice"
	if data.Version > 0 {
		title = fmt.Sprintf("Invoice #%d", data.Version)
	}
	d.title(title, data.TripName)
	d.field("Billed to", data.ParticipantName)
	d.field("Date", stamp(data.GeneratedAt))

	rows := make([][]string, 0, len(data.Items))
	for _, item := range data.Items {
		rows = append(rows, []string{
			item.Name,
			amount(item.OriginalAmount, string(item.Currency)),
			rate(item.BufferRate),
			item.Share,
			thb(item.ShareTHB),
		})
	}
	d.table([]float64{70, 40, 20, 20, 40},
		[]string{"Expense", "Amount", "Rate", "Share", "Your share"}, rows)
	d.total("Total due", data.Total)
	d.note("JPY expenses are collected at the buffer rate shown. Any difference from the final cost is settled in the refund statement.")
}

func (d *document) receipt(data *billing.ReceiptData) {
	title := "Receipt"
	if data.ReceiptNumber > 0 {
		title = fmt.Sprintf("Receipt #%d", data.ReceiptNumber)
	}
	d.title(title, data.TripName)
	d.field("Received from", data.ParticipantName)
	d.field("Date", stamp(data.GeneratedAt))
	if data.PaymentMethod != "" {
		d.field("Payment method", data.PaymentMethod)
	}

	rows := make([][]string, 0, len(data.Items))
	for _, item := range data.Items {
		rows = append(rows, []string{
			fmt.Sprintf("#%d", item.InvoiceVersion),
			item.ExpenseName,
			amount(item.OriginalAmount, string(item.Currency)),
			item.Share,
			thb(item.AmountPaid),
		})
	}
	d.table([]float64{20, 70, 40, 20, 40},
		[]string{"Invoice", "Expense", "Amount", "Share", "Paid"}, rows)
	d.total("Total paid", data.Total)
}

func (d *document) refund(data *billing.RefundData) {
	d.title("Refund Statement", data.TripName)
	d.field("Participant", data.ParticipantName)
	d.field("Date", stamp(data.GeneratedAt))

	collected := make([][]string, 0, len(data.CollectedItems))
	for _, item := range data.CollectedItems {
		collected = append(collected, []string{
			item.ExpenseName,
			amount(item.OriginalAmount, string(item.Currency)),
			rate(item.BufferRate),
			item.Share,
			thb(item.CollectedTHB),
		})
	}
	d.table([]float64{70, 40, 20, 20, 40},
		[]string{"Collected", "Amount", "Rate", "Share", "Collected"}, collected)
	d.total("Total collected", data.TotalCollected)

	actual := make([][]string, 0, len(data.ActualItems))
	for _, item := range data.ActualItems {
		actual = append(actual, []string{
			item.ExpenseName,
			amount(item.PaidAmount, string(item.PaidCurrency)),
			thb(item.ActualTHB),
			item.Share,
			thb(item.CostTHB),
		})
	}
	d.table([]float64{60, 35, 35, 20, 40},
		[]string{"Actual cost", "Paid", "In THB", "Share", "Your cost"}, actual)
	d.total("Total actual", data.TotalActual)

	switch {
	case data.RefundAmount > 0:
		d.total("Refund to you", data.RefundAmount)
	case data.RefundAmount < 0:
		d.total("Amount you owe", -data.RefundAmount)
	default:
		d.total("Settled", 0)
	}
}
