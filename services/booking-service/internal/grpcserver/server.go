// Package grpcserver exposes the booking engine over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the REST API.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/agendafacil/libs/auth"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "agendafacil.booking.v1.BookingService"

type Server struct {
	coord     *booking.Coordinator
	lifecycle *lifecycle.Manager
	logger    *slog.Logger
	jwtSecret string
}

func Register(s *grpc.Server, coord *booking.Coordinator, mgr *lifecycle.Manager, logger *slog.Logger, jwtSecret string) *Server {
	srv := &Server{coord: coord, lifecycle: mgr, logger: logger, jwtSecret: jwtSecret}
	s.RegisterService(&serviceDesc, srv)
	return srv
}

type availabilityRequest struct {
	CompanyID  string     `json:"company_id"`
	EmployeeID string     `json:"employee_id"`
	Date       model.Date `json:"date"`
	ServiceIDs []string   `json:"service_ids"`
}

func (s *Server) GetAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req availabilityRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	out, err := s.coord.Availability(ctx, req.CompanyID, req.EmployeeID, req.Date, req.ServiceIDs...)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(out)
}

type occurrence struct {
	Date        model.Date         `json:"date"`
	Appointment *model.Appointment `json:"appointment,omitempty"`
	Error       string             `json:"error,omitempty"`
	Code        string             `json:"code,omitempty"`
}

func (s *Server) CreateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	var req booking.Request
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	switch actor.Role {
	case model.RoleClient:
		req.Client.ID = actor.ID
	case model.RoleEmployee, model.RoleCompany:
		if actor.CompanyID != req.CompanyID {
			return nil, status.Error(codes.PermissionDenied, "actor belongs to another company")
		}
	default:
		return nil, status.Error(codes.PermissionDenied, "role may not book")
	}

	if req.Recurrence == nil {
		appt, err := s.coord.Book(ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		return encode(appt)
	}
	results, err := s.coord.BookSeries(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]occurrence, 0, len(results))
	for _, r := range results {
		o := occurrence{Date: r.Date, Appointment: r.Appointment}
		if r.Err != nil {
			o.Error = r.Err.Error()
			o.Code = status.Code(toStatus(r.Err)).String()
		}
		out = append(out, o)
	}
	return encode(map[string]any{"results": out})
}

type transitionRequest struct {
	AppointmentID string       `json:"appointment_id"`
	Status        model.Status `json:"status"`
	Justification string       `json:"justification"`
}

func (s *Server) Transition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	var req transitionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	appt, err := s.lifecycle.Transition(ctx, req.AppointmentID, req.Status, actor, req.Justification)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(appt)
}

// actor mirrors the REST rules: a verified bearer token when a secret is set,
// else x-user-id / x-role / x-company-id metadata.
func (s *Server) actor(ctx context.Context) (model.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(k string) string {
		if v := md.Get(k); len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	unauthenticated := status.Error(codes.Unauthenticated, "missing or invalid credentials")

	if s.jwtSecret != "" {
		raw, ok := strings.CutPrefix(first("authorization"), "Bearer ")
		if !ok {
			return model.Actor{}, unauthenticated
		}
		claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(raw), s.jwtSecret)
		if err != nil {
			return model.Actor{}, unauthenticated
		}
		role, err := model.ParseRole(claims.Role)
		if err != nil {
			return model.Actor{}, unauthenticated
		}
		return model.Actor{Role: role, ID: claims.Subject, CompanyID: claims.CompanyID}, nil
	}
	role, err := model.ParseRole(first("x-role"))
	if err != nil || first("x-user-id") == "" {
		return model.Actor{}, unauthenticated
	}
	return model.Actor{Role: role, ID: first("x-user-id"), CompanyID: first("x-company-id")}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func decode(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "unreadable request")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
