package billing

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects the document layout.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindReceipt Kind = "receipt"
	KindRefund  Kind = "refund"
)

// ParseKind validates a document kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInvoice, KindReceipt, KindRefund:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, s)
}

// Renderer turns computed document data into a byte stream. data is
// *InvoiceData, *ReceiptData or *RefundData for the matching kind.
type Renderer interface {
	Render(kind Kind, data any) ([]byte, error)
}

// ErrNoRenderer is returned by RenderDocument when no renderer is configured.
var ErrNoRenderer = errors.New("document rendering is not configured")

// Document is a rendered file ready for download.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RenderDocument renders a committed invoice or receipt by id, or a live
// refund statement for a participant id.
func (e *Engine) RenderDocument(ctx context.Context, tripID string, kind Kind, id int64) (*Document, error) {
	if e.renderer == nil {
		return nil, ErrNoRenderer
	}

	var (
		data     any
		filename string
	)
	switch kind {
	case KindInvoice:
		inv, err := e.GetInvoiceDetail(ctx, tripID, id)
		if err != nil {
			return nil, err
		}
		data, filename = inv, fmt.Sprintf("invoice_%s_v%d.pdf", inv.ParticipantName, inv.Version)
	case KindReceipt:
		r, err := e.GetReceiptDetail(ctx, tripID, id)
		if err != nil {
			return nil, err
		}
		data, filename = r, fmt.Sprintf("receipt_%s_r%d.pdf", r.ParticipantName, r.ReceiptNumber)
	case KindRefund:
		refund, err := e.ComputeRefund(ctx, tripID, id)
		if err != nil {
			return nil, err
		}
		data, filename = refund, fmt.Sprintf("refund_%s.pdf", refund.ParticipantName)
	default:
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}

	body, err := e.renderer.Render(kind, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", kind, err)
	}
	return &Document{Filename: filename, ContentType: "application/pdf", Body: body}, nil
}
