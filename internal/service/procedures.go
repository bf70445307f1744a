package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	TripServiceName    = "tripledger.v1.TripService"
	BillingServiceName = "tripledger.v1.BillingService"
	AdminServiceName   = "tripledger.v1.AdminService"
)

// Fully-qualified procedure names, as they appear in request paths.
const (
	TripServiceCreateTripProcedure        = "/" + TripServiceName + "/CreateTrip"
	TripServiceGetTripProcedure           = "/" + TripServiceName + "/GetTrip"
	TripServiceListTripsProcedure         = "/" + TripServiceName + "/ListTrips"
	TripServiceGetSettingsProcedure       = "/" + TripServiceName + "/GetSettings"
	TripServiceUpdateSettingsProcedure    = "/" + TripServiceName + "/UpdateSettings"
	TripServiceAddParticipantProcedure    = "/" + TripServiceName + "/AddParticipant"
	TripServiceListParticipantsProcedure  = "/" + TripServiceName + "/ListParticipants"
	TripServiceFindParticipantProcedure   = "/" + TripServiceName + "/FindParticipant"
	TripServiceDeleteParticipantProcedure = "/" + TripServiceName + "/DeleteParticipant"
	TripServiceCreateExpenseProcedure     = "/" + TripServiceName + "/CreateExpense"
	TripServiceUpdateExpenseProcedure     = "/" + TripServiceName + "/UpdateExpense"
	TripServiceGetExpenseProcedure        = "/" + TripServiceName + "/GetExpense"
	TripServiceListExpensesProcedure      = "/" + TripServiceName + "/ListExpenses"
	TripServiceLogPaymentProcedure        = "/" + TripServiceName + "/LogPayment"
	TripServiceDeleteExpenseProcedure     = "/" + TripServiceName + "/DeleteExpense"
	TripServiceAddRefundProcedure         = "/" + TripServiceName + "/AddRefund"
	TripServiceListRefundsProcedure       = "/" + TripServiceName + "/ListRefunds"
	TripServiceDeleteRefundProcedure      = "/" + TripServiceName + "/DeleteRefund"

	BillingServicePreviewInvoiceProcedure     = "/" + BillingServiceName + "/PreviewInvoice"
	BillingServiceCommitInvoiceProcedure      = "/" + BillingServiceName + "/CommitInvoice"
	BillingServiceGetInvoiceProcedure         = "/" + BillingServiceName + "/GetInvoice"
	BillingServiceDeleteInvoiceProcedure      = "/" + BillingServiceName + "/DeleteInvoice"
	BillingServiceListInvoicesProcedure       = "/" + BillingServiceName + "/ListInvoices"
	BillingServiceInvoiceHistoryProcedure     = "/" + BillingServiceName + "/InvoiceHistory"
	BillingServicePreviewReceiptProcedure     = "/" + BillingServiceName + "/PreviewReceipt"
	BillingServiceCommitReceiptProcedure      = "/" + BillingServiceName + "/CommitReceipt"
	BillingServiceGetReceiptProcedure         = "/" + BillingServiceName + "/GetReceipt"
	BillingServiceDeleteReceiptProcedure      = "/" + BillingServiceName + "/DeleteReceipt"
	BillingServiceListReceiptsProcedure       = "/" + BillingServiceName + "/ListReceipts"
	BillingServiceReceiptHistoryProcedure     = "/" + BillingServiceName + "/ReceiptHistory"
	BillingServiceComputeRefundProcedure      = "/" + BillingServiceName + "/ComputeRefund"
	BillingServiceListReconciliationProcedure = "/" + BillingServiceName + "/ListReconciliation"
	BillingServiceOverviewProcedure           = "/" + BillingServiceName + "/Overview"
	BillingServiceDashboardProcedure          = "/" + BillingServiceName + "/Dashboard"
	BillingServiceCashFlowProcedure           = "/" + BillingServiceName + "/CashFlow"
	BillingServiceBreakdownProcedure          = "/" + BillingServiceName + "/Breakdown"
	BillingServiceRenderDocumentProcedure     = "/" + BillingServiceName + "/RenderDocument"

	AdminServiceLoginProcedure             = "/" + AdminServiceName + "/Login"
	AdminServiceVerifyProcedure            = "/" + AdminServiceName + "/Verify"
	AdminServiceListTripSummariesProcedure = "/" + AdminServiceName + "/ListTripSummaries"
	AdminServiceListEventsProcedure        = "/" + AdminServiceName + "/ListEvents"
)

// adminProcedures change state or expose every trip. Everything else is a
// read addressed by trip id.
var adminProcedures = map[string]bool{
	TripServiceCreateTripProcedure:        true,
	TripServiceUpdateSettingsProcedure:    true,
	TripServiceAddParticipantProcedure:    true,
	TripServiceDeleteParticipantProcedure: true,
	TripServiceCreateExpenseProcedure:     true,
	TripServiceUpdateExpenseProcedure:     true,
	TripServiceLogPaymentProcedure:        true,
	TripServiceDeleteExpenseProcedure:     true,
	TripServiceAddRefundProcedure:         true,
	TripServiceDeleteRefundProcedure:      true,

	BillingServiceCommitInvoiceProcedure: true,
	BillingServiceDeleteInvoiceProcedure: true,
	BillingServiceCommitReceiptProcedure: true,
	BillingServiceDeleteReceiptProcedure: true,

	AdminServiceListTripSummariesProcedure: true,
	AdminServiceListEventsProcedure:        true,
}

// RequiresAdmin reports whether procedure needs admin credentials.
func RequiresAdmin(procedure string) bool {
	return adminProcedures[procedure]
}

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}
