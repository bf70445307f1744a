// Package render produces PDF documents for invoices, receipts and refund
// statements.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/mmynk/tripledger/internal/billing"
)

// ErrUnsupported is returned when kind and data do not match.
var ErrUnsupported = errors.New("unsupported document")

// Ensure PDF implements billing.Renderer
var _ billing.Renderer = (*PDF)(nil)

const (
	pageWidth  = 190.0 // A4 minus 10mm margins
	lineHeight = 7.0
)

// PDF renders documents with the core Helvetica fonts.
type PDF struct{}

// NewPDF creates a PDF renderer.
func NewPDF() *PDF {
	return &PDF{}
}

// Render implements billing.Renderer.
func (r *PDF) Render(kind billing.Kind, data any) ([]byte, error) {
	switch kind {
	case billing.KindInvoice:
		if d, ok := data.(*billing.InvoiceData); ok && d != nil {
			return r.output(d.GeneratedAt, func(doc *document) { doc.invoice(d) })
		}
	case billing.KindReceipt:
		if d, ok := data.(*billing.ReceiptData); ok && d != nil {
			return r.output(d.GeneratedAt, func(doc *document) { doc.receipt(d) })
		}
	case billing.KindRefund:
		if d, ok := data.(*billing.RefundData); ok && d != nil {
			return r.output(d.GeneratedAt, func(doc *document) { doc.refund(d) })
		}
	}
	return nil, fmt.Errorf("%w: %s with %T", ErrUnsupported, kind, data)
}

func (r *PDF) output(at time.Time, build func(*document)) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(at)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	doc := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	build(doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// document wraps fpdf with the layout helpers shared by all kinds.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *document) title(title, tripName string) {
	d.pdf.SetFont("Helvetica", "B", 18)
	d.pdf.CellFormat(pageWidth, 10, d.tr(title), "", 1, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 11)
	d.pdf.CellFormat(pageWidth, lineHeight, d.tr(tripName), "", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *document) field(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(40, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(pageWidth-40, 6, d.tr(value), "", 1, "L", false, 0, "")
}

// table draws a header row and body rows. The last column is right aligned.
func (d *document) table(widths []float64, header []string, rows [][]string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.SetFillColor(229, 231, 235)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], lineHeight, d.tr(h), "1", 0, align(i, len(header)), true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], lineHeight, d.tr(cell), "1", 0, align(i, len(row)), false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) total(label string, amount float64) {
	d.pdf.Ln(2)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.CellFormat(pageWidth-50, 8, d.tr(label), "", 0, "R", false, 0, "")
	d.pdf.CellFormat(50, 8, thb(amount), "", 1, "R", false, 0, "")
}

func (d *document) note(text string) {
	d.pdf.Ln(4)
	d.pdf.SetFont("Helvetica", "I", 9)
	d.pdf.MultiCell(pageWidth, 5, d.tr(text), "", "L", false)
}

func align(i, n int) string {
	if i == n-1 {
		return "R"
	}
	return "L"
}

func thb(v float64) string {
	return fmt.Sprintf("%.2f THB", v)
}

func amount(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

func rate(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%g", v)
}

func stamp(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
