package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/calculator"
)

// BillingService implements the Connect BillingService: invoices, receipts,
// refunds, reporting and documents.
type BillingService struct {
	engine     *billing.Engine
	classifier *calculator.Classifier
}

// NewBillingService creates a new BillingService backed by engine.
func NewBillingService(engine *billing.Engine) *BillingService {
	return &BillingService{engine: engine, classifier: calculator.DefaultClassifier}
}

// NewBillingServiceHandler builds an HTTP handler serving every
// BillingService procedure. It returns the path to mount it on.
func NewBillingServiceHandler(svc *BillingService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	handle(mux, BillingServicePreviewInvoiceProcedure, svc.PreviewInvoice, opts)
	handle(mux, BillingServiceCommitInvoiceProcedure, svc.CommitInvoice, opts)
	handle(mux, BillingServiceGetInvoiceProcedure, svc.GetInvoice, opts)
	handle(mux, BillingServiceDeleteInvoiceProcedure, svc.DeleteInvoice, opts)
	handle(mux, BillingServiceListInvoicesProcedure, svc.ListInvoices, opts)
	handle(mux, BillingServiceInvoiceHistoryProcedure, svc.InvoiceHistory, opts)
	handle(mux, BillingServicePreviewReceiptProcedure, svc.PreviewReceipt, opts)
	handle(mux, BillingServiceCommitReceiptProcedure, svc.CommitReceipt, opts)
	handle(mux, BillingServiceGetReceiptProcedure, svc.GetReceipt, opts)
	handle(mux, BillingServiceDeleteReceiptProcedure, svc.DeleteReceipt, opts)
	handle(mux, BillingServiceListReceiptsProcedure, svc.ListReceipts, opts)
	handle(mux, BillingServiceReceiptHistoryProcedure, svc.ReceiptHistory, opts)
	handle(mux, BillingServiceComputeRefundProcedure, svc.ComputeRefund, opts)
	handle(mux, BillingServiceListReconciliationProcedure, svc.ListReconciliation, opts)
	handle(mux, BillingServiceOverviewProcedure, svc.Overview, opts)
	handle(mux, BillingServiceDashboardProcedure, svc.Dashboard, opts)
	handle(mux, BillingServiceCashFlowProcedure, svc.CashFlow, opts)
	handle(mux, BillingServiceBreakdownProcedure, svc.Breakdown, opts)
	handle(mux, BillingServiceRenderDocumentProcedure, svc.RenderDocument, opts)
	return "/" + BillingServiceName + "/", mux
}

// PreviewInvoice shows what an invoice for the participant would contain
// now. It writes nothing.
func (s *BillingService) PreviewInvoice(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[billing.InvoiceData], error) {
	data, err := s.engine.PreviewInvoice(ctx, req.Msg.TripID, req.Msg.ParticipantID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(data), nil
}

// CommitInvoice bills the participant's unbilled expenses.
func (s *BillingService) CommitInvoice(ctx context.Context, req *connect.Request[CommitInvoiceRequest]) (*connect.Response[InvoiceResponse], error) {
	slog.Info("CommitInvoice request received",
		"trip_id", req.Msg.TripID,
		"participant_id", req.Msg.ParticipantID,
		"expense_count", len(req.Msg.ExpenseIDs),
	)

	inv, err := s.engine.CommitInvoice(ctx, req.Msg.TripID, req.Msg.ParticipantID, req.Msg.ExpenseIDs)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&InvoiceResponse{Invoice: inv}), nil
}

func (s *BillingService) GetInvoice(ctx context.Context, req *connect.Request[InvoiceRequest]) (*connect.Response[billing.InvoiceData], error) {
	data, err := s.engine.GetInvoiceDetail(ctx, req.Msg.TripID, req.Msg.InvoiceID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(data), nil
}

func (s *BillingService) DeleteInvoice(ctx context.Context, req *connect.Request[InvoiceRequest]) (*connect.Response[Empty], error) {
	if err := s.engine.DeleteInvoice(ctx, req.Msg.TripID, req.Msg.InvoiceID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *BillingService) ListInvoices(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ListInvoicesResponse], error) {
	invoices, err := s.engine.ListInvoices(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListInvoicesResponse{Invoices: invoices}), nil
}

func (s *BillingService) InvoiceHistory(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[ListInvoicesResponse], error) {
	invoices, err := s.engine.InvoiceHistory(ctx, req.Msg.TripID, req.Msg.ParticipantID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListInvoicesResponse{Invoices: invoices}), nil
}

func (s *BillingService) PreviewReceipt(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[billing.ReceiptData], error) {
	data, err := s.engine.PreviewReceipt(ctx, req.Msg.TripID, req.Msg.ParticipantID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(data), nil
}

// CommitReceipt marks the selected unpaid invoices as paid. With no
// selection every unpaid invoice is included.
func (s *BillingService) CommitReceipt(ctx context.Context, req *connect.Request[CommitReceiptRequest]) (*connect.Response[ReceiptResponse], error) {
	slog.Info("CommitReceipt request received",
		"trip_id", req.Msg.TripID,
		"participant_id", req.Msg.ParticipantID,
		"invoice_count", len(req.Msg.InvoiceIDs),
	)

	invoiceIDs := req.Msg.InvoiceIDs
	if len(invoiceIDs) == 0 {
		unpaid, err := s.engine.PreviewReceipt(ctx, req.Msg.TripID, req.Msg.ParticipantID)
		if err != nil {
			return nil, connectError(err)
		}
		for _, inv := range unpaid.Invoices {
			invoiceIDs = append(invoiceIDs, inv.ID)
		}
	}

	r, err := s.engine.CommitReceipt(ctx, req.Msg.TripID, req.Msg.ParticipantID, invoiceIDs, req.Msg.PaymentMethod)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ReceiptResponse{Receipt: r}), nil
}

func (s *BillingService) GetReceipt(ctx context.Context, req *connect.Request[ReceiptRequest]) (*connect.Response[billing.ReceiptData], error) {
	data, err := s.engine.GetReceiptDetail(ctx, req.Msg.TripID, req.Msg.ReceiptID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(data), nil
}

// DeleteReceipt voids a receipt; its invoices become unpaid again.
func (s *BillingService) DeleteReceipt(ctx context.Context, req *connect.Request[ReceiptRequest]) (*connect.Response[Empty], error) {
	if err := s.engine.DeleteReceipt(ctx, req.Msg.TripID, req.Msg.ReceiptID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *BillingService) ListReceipts(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ListReceiptsResponse], error) {
	receipts, err := s.engine.ListReceipts(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListReceiptsResponse{Receipts: receipts}), nil
}

func (s *BillingService) ReceiptHistory(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[ListReceiptsResponse], error) {
	receipts, err := s.engine.ReceiptHistory(ctx, req.Msg.TripID, req.Msg.ParticipantID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListReceiptsResponse{Receipts: receipts}), nil
}

func (s *BillingService) ComputeRefund(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[billing.RefundData], error) {
	data, err := s.engine.ComputeRefund(ctx, req.Msg.TripID, req.Msg.ParticipantID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(data), nil
}

func (s *BillingService) ListReconciliation(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ReconciliationResponse], error) {
	items, err := s.engine.ListReconciliation(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ReconciliationResponse{Participants: items}), nil
}

func (s *BillingService) Overview(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[billing.OverviewStats], error) {
	stats, err := s.engine.Overview(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(stats), nil
}

func (s *BillingService) Dashboard(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[billing.Dashboard], error) {
	d, err := s.engine.Dashboard(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(d), nil
}

func (s *BillingService) CashFlow(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[CashFlowResponse], error) {
	days, err := s.engine.CashFlow(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&CashFlowResponse{Days: days}), nil
}

func (s *BillingService) Breakdown(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[BreakdownResponse], error) {
	categories, err := s.engine.Breakdown(ctx, req.Msg.TripID, s.classifier)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&BreakdownResponse{Categories: categories}), nil
}

// RenderDocument returns a rendered invoice, receipt or refund statement.
func (s *BillingService) RenderDocument(ctx context.Context, req *connect.Request[RenderDocumentRequest]) (*connect.Response[DocumentResponse], error) {
	kind, err := billing.ParseKind(req.Msg.Kind)
	if err != nil {
		return nil, connectError(err)
	}
	doc, err := s.engine.RenderDocument(ctx, req.Msg.TripID, kind, req.Msg.ID)
	if err != nil {
		slog.Error("RenderDocument failed", "trip_id", req.Msg.TripID, "kind", kind, "id", req.Msg.ID, "error", err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&DocumentResponse{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Body:        doc.Body,
	}), nil
}
