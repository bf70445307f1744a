package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/audit"
	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/render"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
)

const testAdminToken = "correct-horse-battery"

// syncAudit saves events inline so tests can read them back immediately.
type syncAudit struct {
	logger audit.EventLogger
}

func (a syncAudit) Observe(ev billing.Event) {
	event, err := audit.FromBilling(ev)
	if err != nil {
		return
	}
	a.logger.Save(context.Background(), event)
}

type testServer struct {
	url string
}

// setupTestServer creates a test server with every service mounted on the router
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	events := audit.NewSQLEventLogger(store.DB())
	m := metrics.New()
	engine := billing.NewEngine(store,
		billing.WithRenderer(render.NewPDF()),
		billing.WithListener(m),
		billing.WithListener(syncAudit{logger: events}),
	)

	authenticator, err := auth.NewSecretAuthenticator(testAdminToken, "")
	if err != nil {
		t.Fatalf("failed to create authenticator: %v", err)
	}

	server := httptest.NewServer(NewRouter(RouterConfig{
		Engine:        engine,
		Authenticator: authenticator,
		JWTManager:    auth.NewJWTManager("test-secret", time.Hour),
		Events:        events,
		Metrics:       m,
	}))

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testServer{url: server.URL}
}

// invoke calls procedure with the given credentials. An empty token sends no
// credentials; a token starting with "Bearer " goes in Authorization.
func invoke[Req, Res any](ts *testServer, procedure, token string, msg *Req) (*Res, error) {
	client := connect.NewClient[Req, Res](http.DefaultClient, ts.url+procedure, connect.WithCodec(jsonCodec{}))
	req := connect.NewRequest(msg)
	switch {
	case strings.HasPrefix(token, "Bearer "):
		req.Header().Set("Authorization", token)
	case token != "":
		req.Header().Set("X-Admin-Token", token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// admin calls procedure with the admin token and fails the test on error.
func admin[Req, Res any](t *testing.T, ts *testServer, procedure string, msg *Req) *Res {
	t.Helper()
	res, err := invoke[Req, Res](ts, procedure, testAdminToken, msg)
	if err != nil {
		t.Fatalf("%s failed: %v", procedure, err)
	}
	return res
}

func ref(tripID string) TripRef {
	return TripRef{TripID: tripID}
}

func expectCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

// seedTrip creates a trip with two participants and one shared THB expense.
func seedTrip(t *testing.T, ts *testServer) (tripID string, alice, bob int64, expenseID int64) {
	t.Helper()

	trip := admin[CreateTripRequest, TripResponse](t, ts, TripServiceCreateTripProcedure, &CreateTripRequest{Name: "Osaka"})
	tripID = trip.Trip.ID

	a := admin[AddParticipantRequest, ParticipantResponse](t, ts, TripServiceAddParticipantProcedure,
		&AddParticipantRequest{TripRef: ref(tripID), Name: "Alice"})
	b := admin[AddParticipantRequest, ParticipantResponse](t, ts, TripServiceAddParticipantProcedure,
		&AddParticipantRequest{TripRef: ref(tripID), Name: "Bob"})

	exp := admin[CreateExpenseRequest, ExpenseResponse](t, ts, TripServiceCreateExpenseProcedure, &CreateExpenseRequest{
		TripRef: ref(tripID),
		ExpenseInput: billing.ExpenseInput{
			Name:           "Hotel",
			Amount:         4000,
			Currency:       "THB",
			ParticipantIDs: []int64{a.Participant.ID, b.Participant.ID},
		},
	})

	return tripID, a.Participant.ID, b.Participant.ID, exp.Expense.ID
}

func TestAdminRequiredForMutations(t *testing.T) {
	ts := setupTestServer(t)

	_, err := invoke[CreateTripRequest, TripResponse](ts, TripServiceCreateTripProcedure, "", &CreateTripRequest{Name: "Nope"})
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = invoke[CreateTripRequest, TripResponse](ts, TripServiceCreateTripProcedure, "wrong-token", &CreateTripRequest{Name: "Nope"})
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = invoke[CreateTripRequest, TripResponse](ts, TripServiceCreateTripProcedure, "Bearer not-a-jwt", &CreateTripRequest{Name: "Nope"})
	expectCode(t, err, connect.CodeUnauthenticated)

	// Reads only need the trip id.
	_, err = invoke[TripRequest, TripResponse](ts, TripServiceGetTripProcedure, "", &TripRequest{TripRef: ref("missing")})
	expectCode(t, err, connect.CodeNotFound)

	tripID, _, bob, _ := seedTrip(t, ts)
	found, err := invoke[FindParticipantRequest, ParticipantResponse](ts, TripServiceFindParticipantProcedure, "",
		&FindParticipantRequest{TripRef: ref(tripID), Name: "Bob"})
	if err != nil {
		t.Fatalf("FindParticipant failed: %v", err)
	}
	if found.Participant.ID != bob {
		t.Errorf("expected participant %d, got %d", bob, found.Participant.ID)
	}

	resp, err := invoke[TripRequest, TripResponse](ts, TripServiceGetTripProcedure, "", &TripRequest{TripRef: ref(tripID)})
	if err != nil {
		t.Fatalf("GetTrip failed: %v", err)
	}
	if resp.Trip.Name != "Osaka" || resp.Settings == nil || resp.Settings.TripName != "Osaka" {
		t.Errorf("unexpected trip response: %+v %+v", resp.Trip, resp.Settings)
	}
}

func TestLoginIssuesSessionToken(t *testing.T) {
	ts := setupTestServer(t)

	_, err := invoke[LoginRequest, LoginResponse](ts, AdminServiceLoginProcedure, "", &LoginRequest{Token: "guess"})
	expectCode(t, err, connect.CodeUnauthenticated)

	login, err := invoke[LoginRequest, LoginResponse](ts, AdminServiceLoginProcedure, "", &LoginRequest{Token: testAdminToken})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Token == "" || !login.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected login response: %+v", login)
	}
	bearer := "Bearer " + login.Token

	verify, err := invoke[Empty, VerifyResponse](ts, AdminServiceVerifyProcedure, bearer, &Empty{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verify.Valid {
		t.Error("expected session token to verify")
	}

	verify, err = invoke[Empty, VerifyResponse](ts, AdminServiceVerifyProcedure, "", &Empty{})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verify.Valid {
		t.Error("expected anonymous verify to be invalid")
	}

	if _, err := invoke[CreateTripRequest, TripResponse](ts, TripServiceCreateTripProcedure, bearer, &CreateTripRequest{Name: "Kyoto"}); err != nil {
		t.Fatalf("CreateTrip with session token failed: %v", err)
	}

	summaries, err := invoke[Empty, TripSummariesResponse](ts, AdminServiceListTripSummariesProcedure, bearer, &Empty{})
	if err != nil {
		t.Fatalf("ListTripSummaries failed: %v", err)
	}
	if len(summaries.Trips) != 1 || summaries.Trips[0].Name != "Kyoto" {
		t.Errorf("unexpected summaries: %+v", summaries.Trips)
	}
}

func TestBillingFlow(t *testing.T) {
	ts := setupTestServer(t)
	tripID, alice, _, expenseID := seedTrip(t, ts)

	preview := admin[ParticipantRequest, billing.InvoiceData](t, ts, BillingServicePreviewInvoiceProcedure,
		&ParticipantRequest{TripRef: ref(tripID), ParticipantID: alice})
	if !preview.HasNewExpenses || preview.Total != 2000 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	inv := admin[CommitInvoiceRequest, InvoiceResponse](t, ts, BillingServiceCommitInvoiceProcedure,
		&CommitInvoiceRequest{TripRef: ref(tripID), ParticipantID: alice})
	if inv.Invoice.Version != inv.Invoice.ID || inv.Invoice.TotalTHB != 2000 {
		t.Fatalf("unexpected invoice: %+v", inv.Invoice)
	}

	t.Run("nothing left to bill", func(t *testing.T) {
		_, err := invoke[CommitInvoiceRequest, InvoiceResponse](ts, BillingServiceCommitInvoiceProcedure, testAdminToken,
			&CommitInvoiceRequest{TripRef: ref(tripID), ParticipantID: alice})
		expectCode(t, err, connect.CodeFailedPrecondition)
	})

	t.Run("invoiced expense cannot be deleted", func(t *testing.T) {
		_, err := invoke[ExpenseRequest, Empty](ts, TripServiceDeleteExpenseProcedure, testAdminToken,
			&ExpenseRequest{TripRef: ref(tripID), ExpenseID: expenseID})
		expectCode(t, err, connect.CodeFailedPrecondition)
	})

	receipt := admin[CommitReceiptRequest, ReceiptResponse](t, ts, BillingServiceCommitReceiptProcedure,
		&CommitReceiptRequest{TripRef: ref(tripID), ParticipantID: alice, PaymentMethod: "cash"})
	if receipt.Receipt.TotalTHB != 2000 || len(receipt.Receipt.InvoiceIDs) != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt.Receipt)
	}

	t.Run("paid invoice cannot be deleted", func(t *testing.T) {
		_, err := invoke[InvoiceRequest, Empty](ts, BillingServiceDeleteInvoiceProcedure, testAdminToken,
			&InvoiceRequest{TripRef: ref(tripID), InvoiceID: inv.Invoice.ID})
		expectCode(t, err, connect.CodeFailedPrecondition)
	})

	invoices := admin[TripRequest, ListInvoicesResponse](t, ts, BillingServiceListInvoicesProcedure, &TripRequest{TripRef: ref(tripID)})
	if len(invoices.Invoices) != 1 || invoices.Invoices[0].ReceiptNumber != receipt.Receipt.ReceiptNumber {
		t.Errorf("expected invoice linked to receipt, got %+v", invoices.Invoices)
	}

	admin[LogPaymentRequest, ExpenseResponse](t, ts, TripServiceLogPaymentProcedure, &LogPaymentRequest{
		TripRef:   ref(tripID),
		ExpenseID: expenseID,
		PaymentInput: billing.PaymentInput{
			Date:     "2024-03-02",
			Method:   "card",
			Amount:   3600,
			Currency: "THB",
			THB:      3600,
		},
	})

	refund := admin[ParticipantRequest, billing.RefundData](t, ts, BillingServiceComputeRefundProcedure,
		&ParticipantRequest{TripRef: ref(tripID), ParticipantID: alice})
	if refund.TotalCollected != 2000 || refund.TotalActual != 1800 || refund.RefundAmount != 200 {
		t.Errorf("unexpected refund: %+v", refund.Reconciliation)
	}

	overview := admin[TripRequest, billing.OverviewStats](t, ts, BillingServiceOverviewProcedure, &TripRequest{TripRef: ref(tripID)})
	if overview.PaidInvoices != 1 || overview.TotalReceived != 2000 {
		t.Errorf("unexpected overview: %+v", overview)
	}

	admin[ReceiptRequest, Empty](t, ts, BillingServiceDeleteReceiptProcedure, &ReceiptRequest{TripRef: ref(tripID), ReceiptID: receipt.Receipt.ID})
	admin[InvoiceRequest, Empty](t, ts, BillingServiceDeleteInvoiceProcedure, &InvoiceRequest{TripRef: ref(tripID), InvoiceID: inv.Invoice.ID})

	events := admin[ListEventsRequest, ListEventsResponse](t, ts, AdminServiceListEventsProcedure, &ListEventsRequest{TripRef: ref(tripID)})
	var types []string
	for _, e := range events.Events {
		types = append(types, e.Type)
	}
	want := []string{
		string(billing.EventInvoiceCommitted),
		string(billing.EventReceiptCommitted),
		string(billing.EventPaymentLogged),
		string(billing.EventReceiptVoided),
		string(billing.EventInvoiceDeleted),
	}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, types)
	}
}

func TestErrorCodes(t *testing.T) {
	ts := setupTestServer(t)
	tripID, alice, _, _ := seedTrip(t, ts)

	_, err := invoke[AddParticipantRequest, ParticipantResponse](ts, TripServiceAddParticipantProcedure, testAdminToken,
		&AddParticipantRequest{TripRef: ref(tripID), Name: "Alice"})
	expectCode(t, err, connect.CodeAlreadyExists)

	_, err = invoke[CreateExpenseRequest, ExpenseResponse](ts, TripServiceCreateExpenseProcedure, testAdminToken, &CreateExpenseRequest{
		TripRef:      ref(tripID),
		ExpenseInput: billing.ExpenseInput{Name: "Ghost", Amount: 100, Currency: "THB"},
	})
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = invoke[CreateExpenseRequest, ExpenseResponse](ts, TripServiceCreateExpenseProcedure, testAdminToken, &CreateExpenseRequest{
		TripRef:      ref(tripID),
		ExpenseInput: billing.ExpenseInput{Name: "Euro", Amount: 100, Currency: "EUR", ParticipantIDs: []int64{alice}},
	})
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = invoke[CommitReceiptRequest, ReceiptResponse](ts, BillingServiceCommitReceiptProcedure, testAdminToken,
		&CommitReceiptRequest{TripRef: ref(tripID), ParticipantID: alice})
	expectCode(t, err, connect.CodeFailedPrecondition)

	_, err = invoke[RenderDocumentRequest, DocumentResponse](ts, BillingServiceRenderDocumentProcedure, "",
		&RenderDocumentRequest{TripRef: ref(tripID), Kind: "memo", ID: 1})
	expectCode(t, err, connect.CodeInvalidArgument)
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{fmt.Errorf("expense 3: %w", storage.ErrNotFound), connect.CodeNotFound},
		{calculator.ErrInvalidExpenseState, connect.CodeInvalidArgument},
		{billing.ErrNoNewExpenses, connect.CodeFailedPrecondition},
		{billing.ErrNoMatchingExpenses, connect.CodeFailedPrecondition},
		{billing.ErrNoUnpaidInvoices, connect.CodeFailedPrecondition},
		{storage.ErrInvoicePaid, connect.CodeFailedPrecondition},
		{storage.ErrExpenseInvoiced, connect.CodeFailedPrecondition},
		{storage.ErrDuplicateName, connect.CodeAlreadyExists},
		{billing.ErrNoRenderer, connect.CodeUnimplemented},
		{errors.New("disk full"), connect.CodeInternal},
	}

	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, body
}

func TestHTTPRoutes(t *testing.T) {
	ts := setupTestServer(t)
	tripID, alice, _, _ := seedTrip(t, ts)
	inv := admin[CommitInvoiceRequest, InvoiceResponse](t, ts, BillingServiceCommitInvoiceProcedure,
		&CommitInvoiceRequest{TripRef: ref(tripID), ParticipantID: alice})

	t.Run("invoice pdf", func(t *testing.T) {
		resp, body := get(t, fmt.Sprintf("%s/trips/%s/invoices/%d.pdf", ts.url, tripID, inv.Invoice.ID))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if resp.Header.Get("Content-Type") != "application/pdf" {
			t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
		}
		wantName := fmt.Sprintf("invoice_Alice_v%d.pdf", inv.Invoice.Version)
		if !strings.Contains(resp.Header.Get("Content-Disposition"), wantName) {
			t.Errorf("expected filename %s in %q", wantName, resp.Header.Get("Content-Disposition"))
		}
		if !strings.HasPrefix(string(body), "%PDF-") {
			t.Error("expected a PDF body")
		}
	})

	t.Run("refund pdf", func(t *testing.T) {
		resp, _ := get(t, fmt.Sprintf("%s/trips/%s/participants/%d/refund.pdf", ts.url, tripID, alice))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("missing receipt", func(t *testing.T) {
		resp, _ := get(t, fmt.Sprintf("%s/trips/%s/receipts/999.pdf", ts.url, tripID))
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("other trip", func(t *testing.T) {
		resp, _ := get(t, fmt.Sprintf("%s/trips/%s/invoices/%d.pdf", ts.url, "someone-else", inv.Invoice.ID))
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		resp, body := get(t, ts.url+"/healthz")
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		_, body := get(t, ts.url+"/metrics")
		for _, want := range []string{
			`tripledger_rpc_requests_total{code="ok",procedure="` + BillingServiceCommitInvoiceProcedure + `"} 1`,
			`tripledger_billing_events_total{type="invoice.committed"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected %q in metrics output", want)
			}
		}
	})
}
