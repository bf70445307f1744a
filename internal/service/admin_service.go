package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/audit"
	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/middleware"
)

var errNoAuditLog = errors.New("audit log is not configured")

// AdminService implements the AdminService RPC interface.
type AdminService struct {
	engine        *billing.Engine
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	events        audit.EventLogger
}

// NewAdminService creates a new admin service. events may be nil, in which
// case ListEvents is unimplemented.
func NewAdminService(engine *billing.Engine, authenticator auth.Authenticator, jwtManager *auth.JWTManager, events audit.EventLogger) *AdminService {
	return &AdminService{
		engine:        engine,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		events:        events,
	}
}

// NewAdminServiceHandler builds an HTTP handler serving every AdminService
// procedure. It returns the path to mount it on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	handle(mux, AdminServiceLoginProcedure, svc.Login, opts)
	handle(mux, AdminServiceVerifyProcedure, svc.Verify, opts)
	handle(mux, AdminServiceListTripSummariesProcedure, svc.ListTripSummaries, opts)
	handle(mux, AdminServiceListEventsProcedure, svc.ListEvents, opts)
	return "/" + AdminServiceName + "/", mux
}

// Login exchanges the admin secret for a session token.
func (s *AdminService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	if err := s.authenticator.Authenticate(ctx, req.Msg.Token); err != nil {
		slog.Warn("Admin login failed", "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}

	token, expires, err := s.jwtManager.Generate(auth.RoleAdmin)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Admin logged in", "expires_at", expires)
	return connect.NewResponse(&LoginResponse{Token: token, ExpiresAt: expires}), nil
}

// Verify reports whether the request carries valid admin credentials.
func (s *AdminService) Verify(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[VerifyResponse], error) {
	_, err := middleware.Authorize(ctx, s.jwtManager, s.authenticator,
		req.Header().Get("Authorization"), req.Header().Get(middleware.AdminTokenHeader))
	return connect.NewResponse(&VerifyResponse{Valid: err == nil}), nil
}

// ListTripSummaries lists every trip with its record counts.
func (s *AdminService) ListTripSummaries(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[TripSummariesResponse], error) {
	trips, err := s.engine.TripSummaries(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&TripSummariesResponse{Trips: trips}), nil
}

// ListEvents returns the trip's billing audit trail, oldest first.
func (s *AdminService) ListEvents(ctx context.Context, req *connect.Request[ListEventsRequest]) (*connect.Response[ListEventsResponse], error) {
	if s.events == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errNoAuditLog)
	}
	events, err := s.events.List(ctx, req.Msg.TripID, req.Msg.EventType)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListEventsResponse{Events: events}), nil
}
