package service

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/billing"
)

// TripService implements the Connect TripService: trips, settings,
// participants, expenses and manual refunds.
type TripService struct {
	engine *billing.Engine
}

// NewTripService creates a new TripService backed by engine.
func NewTripService(engine *billing.Engine) *TripService {
	return &TripService{engine: engine}
}

// NewTripServiceHandler builds an HTTP handler serving every TripService
// procedure. It returns the path to mount it on.
func NewTripServiceHandler(svc *TripService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	handle(mux, TripServiceCreateTripProcedure, svc.CreateTrip, opts)
	handle(mux, TripServiceGetTripProcedure, svc.GetTrip, opts)
	handle(mux, TripServiceListTripsProcedure, svc.ListTrips, opts)
	handle(mux, TripServiceGetSettingsProcedure, svc.GetSettings, opts)
	handle(mux, TripServiceUpdateSettingsProcedure, svc.UpdateSettings, opts)
	handle(mux, TripServiceAddParticipantProcedure, svc.AddParticipant, opts)
	handle(mux, TripServiceListParticipantsProcedure, svc.ListParticipants, opts)
	handle(mux, TripServiceFindParticipantProcedure, svc.FindParticipant, opts)
	handle(mux, TripServiceDeleteParticipantProcedure, svc.DeleteParticipant, opts)
	handle(mux, TripServiceCreateExpenseProcedure, svc.CreateExpense, opts)
	handle(mux, TripServiceUpdateExpenseProcedure, svc.UpdateExpense, opts)
	handle(mux, TripServiceGetExpenseProcedure, svc.GetExpense, opts)
	handle(mux, TripServiceListExpensesProcedure, svc.ListExpenses, opts)
	handle(mux, TripServiceLogPaymentProcedure, svc.LogPayment, opts)
	handle(mux, TripServiceDeleteExpenseProcedure, svc.DeleteExpense, opts)
	handle(mux, TripServiceAddRefundProcedure, svc.AddRefund, opts)
	handle(mux, TripServiceListRefundsProcedure, svc.ListRefunds, opts)
	handle(mux, TripServiceDeleteRefundProcedure, svc.DeleteRefund, opts)
	return "/" + TripServiceName + "/", mux
}

// CreateTrip creates a new trip with a fresh id.
func (s *TripService) CreateTrip(ctx context.Context, req *connect.Request[CreateTripRequest]) (*connect.Response[TripResponse], error) {
	trip, err := s.engine.CreateTrip(ctx, req.Msg.Name)
	if err != nil {
		slog.Error("CreateTrip failed", "error", err)
		return nil, connectError(err)
	}

	slog.Info("Trip created", "trip_id", trip.ID, "name", trip.Name)

	return connect.NewResponse(&TripResponse{Trip: trip}), nil
}

// GetTrip retrieves a trip and its settings.
func (s *TripService) GetTrip(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[TripResponse], error) {
	trip, err := s.engine.GetTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	settings, err := s.engine.GetSettings(ctx, trip.ID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&TripResponse{Trip: trip, Settings: settings}), nil
}

func (s *TripService) ListTrips(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListTripsResponse], error) {
	trips, err := s.engine.ListTrips(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListTripsResponse{Trips: trips}), nil
}

func (s *TripService) GetSettings(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[SettingsResponse], error) {
	settings, err := s.engine.GetSettings(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&SettingsResponse{Settings: settings}), nil
}

// UpdateSettings changes the default buffer rate and the trip name.
func (s *TripService) UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[SettingsResponse], error) {
	settings, err := s.engine.UpdateSettings(ctx, req.Msg.TripID, req.Msg.DefaultBufferRate, req.Msg.TripName)
	if err != nil {
		slog.Error("UpdateSettings failed", "trip_id", req.Msg.TripID, "error", err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&SettingsResponse{Settings: settings}), nil
}

func (s *TripService) AddParticipant(ctx context.Context, req *connect.Request[AddParticipantRequest]) (*connect.Response[ParticipantResponse], error) {
	p, err := s.engine.AddParticipant(ctx, req.Msg.TripID, req.Msg.Name)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ParticipantResponse{Participant: p}), nil
}

func (s *TripService) ListParticipants(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ListParticipantsResponse], error) {
	participants, err := s.engine.ListParticipants(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListParticipantsResponse{Participants: participants}), nil
}

// FindParticipant looks a participant up by exact name.
func (s *TripService) FindParticipant(ctx context.Context, req *connect.Request[FindParticipantRequest]) (*connect.Response[ParticipantResponse], error) {
	p, err := s.engine.FindParticipant(ctx, req.Msg.TripID, req.Msg.Name)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ParticipantResponse{Participant: p}), nil
}

// DeleteParticipant removes a participant together with their invoices,
// receipts and refunds.
func (s *TripService) DeleteParticipant(ctx context.Context, req *connect.Request[ParticipantRequest]) (*connect.Response[Empty], error) {
	if err := s.engine.DeleteParticipant(ctx, req.Msg.TripID, req.Msg.ParticipantID); err != nil {
		return nil, connectError(err)
	}
	slog.Info("Participant deleted", "trip_id", req.Msg.TripID, "participant_id", req.Msg.ParticipantID)
	return connect.NewResponse(&Empty{}), nil
}

func (s *TripService) CreateExpense(ctx context.Context, req *connect.Request[CreateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	view, err := s.engine.CreateExpense(ctx, req.Msg.TripID, req.Msg.ExpenseInput)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ExpenseResponse{Expense: view}), nil
}

func (s *TripService) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	view, err := s.engine.UpdateExpense(ctx, req.Msg.TripID, req.Msg.ExpenseID, req.Msg.ExpenseInput)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ExpenseResponse{Expense: view}), nil
}

func (s *TripService) GetExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	view, err := s.engine.GetExpense(ctx, req.Msg.TripID, req.Msg.ExpenseID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ExpenseResponse{Expense: view}), nil
}

func (s *TripService) ListExpenses(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ListExpensesResponse], error) {
	views, err := s.engine.ListExpenses(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: views}), nil
}

// LogPayment records the real-world payment and marks the expense collected.
func (s *TripService) LogPayment(ctx context.Context, req *connect.Request[LogPaymentRequest]) (*connect.Response[ExpenseResponse], error) {
	view, err := s.engine.LogPayment(ctx, req.Msg.TripID, req.Msg.ExpenseID, req.Msg.PaymentInput)
	if err != nil {
		slog.Error("LogPayment failed", "trip_id", req.Msg.TripID, "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&ExpenseResponse{Expense: view}), nil
}

func (s *TripService) DeleteExpense(ctx context.Context, req *connect.Request[ExpenseRequest]) (*connect.Response[Empty], error) {
	if err := s.engine.DeleteExpense(ctx, req.Msg.TripID, req.Msg.ExpenseID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *TripService) AddRefund(ctx context.Context, req *connect.Request[AddRefundRequest]) (*connect.Response[RefundResponse], error) {
	refund, err := s.engine.AddRefund(ctx, req.Msg.TripID, req.Msg.ParticipantID, req.Msg.AmountTHB, req.Msg.Notes)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RefundResponse{Refund: refund}), nil
}

func (s *TripService) ListRefunds(ctx context.Context, req *connect.Request[TripRequest]) (*connect.Response[ListRefundsResponse], error) {
	refunds, err := s.engine.ListRefunds(ctx, req.Msg.TripID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListRefundsResponse{Refunds: refunds}), nil
}

func (s *TripService) DeleteRefund(ctx context.Context, req *connect.Request[RefundRequest]) (*connect.Response[Empty], error) {
	if err := s.engine.DeleteRefund(ctx, req.Msg.TripID, req.Msg.RefundID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}
