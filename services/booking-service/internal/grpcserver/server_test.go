package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/grpcx"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.NewMemory()
	if err := cat.Load(catalog.Seed{
		Companies: []model.Company{{ID: "c1", Opens: model.NewClock(8, 0), Closes: model.NewClock(12, 0), WorkingDays: []time.Weekday{1, 2, 3, 4, 5}}},
		Employees: []model.Employee{{ID: "e1", CompanyID: "c1", Name: "Ana"}},
		Services:  []model.Service{{ID: "s60", CompanyID: "c1", Name: "Corte", DurationMinutes: 60, Price: decimal.NewFromInt(50), Active: true}},
	}); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	repo := storage.NewMemory()
	rec := &notify.Recorder{}
	coord := booking.NewCoordinator(cat, repo, rec, logger, booking.Options{Now: now})
	mgr := lifecycle.NewManager(repo, cat, rec, logger).WithClock(now)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer(grpcx.ServerOptions(grpcx.UnaryServerLogInterceptor(logger))...)
	Register(srv, coord, mgr, logger, "")
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcx.Dial(context.Background(), lis.Addr().String(), grpcx.DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health: %v %v", resp, err)
	}
	return NewClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("struct: %v", err)
	}
	return s
}

func as(role, id, company string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-role", role, "x-user-id", id, "x-company-id", company)
}

func TestBookAndTransitionOverGRPC(t *testing.T) {
	c := startServer(t)
	client := as("client", "cli-1", "")

	avail, err := c.Call(client, "GetAvailability", mustStruct(t, map[string]any{
		"company_id": "c1", "employee_id": "e1", "date": "2026-03-02",
	}))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if slots := avail.Fields["slots"].GetListValue().GetValues(); len(slots) != 7 || slots[0].GetStringValue() != "08:00" {
		t.Fatalf("unexpected slots %v", slots)
	}

	booked, err := c.Call(client, "CreateBooking", mustStruct(t, map[string]any{
		"company_id":  "c1",
		"employee_id": "e1",
		"date":        "2026-03-02",
		"start_time":  "09:00",
		"service_ids": []any{"s60"},
		"client":      map[string]any{"name": "Maria"},
	}))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.Fields["id"].GetStringValue()
	if id == "" || booked.Fields["status"].GetStringValue() != "pendente" {
		t.Fatalf("unexpected booking %v", booked)
	}

	_, err = c.Call(client, "CreateBooking", mustStruct(t, map[string]any{
		"company_id": "c1", "employee_id": "e1", "date": "2026-03-02", "start_time": "09:30",
		"service_ids": []any{"s60"}, "client": map[string]any{"name": "Joana"},
	}))
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("overlap: expected AlreadyExists, got %v", err)
	}

	_, err = c.Call(as("employee", "e1", "c1"), "Transition", mustStruct(t, map[string]any{
		"appointment_id": id, "status": "concluido",
	}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("pendente -> concluido: expected FailedPrecondition, got %v", err)
	}
	out, err := c.Call(as("employee", "e1", "c1"), "Transition", mustStruct(t, map[string]any{
		"appointment_id": id, "status": "confirmado",
	}))
	if err != nil || out.Fields["status"].GetStringValue() != "confirmado" {
		t.Fatalf("confirm: %v %v", out, err)
	}
}

func TestGRPCErrors(t *testing.T) {
	c := startServer(t)

	_, err := c.Call(context.Background(), "CreateBooking", mustStruct(t, map[string]any{"company_id": "c1"}))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	_, err = c.Call(as("client", "cli-1", ""), "GetAvailability", mustStruct(t, map[string]any{
		"company_id": "nope", "employee_id": "e1", "date": "2026-03-02",
	}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_, err = c.Call(as("client", "cli-1", ""), "CreateBooking", mustStruct(t, map[string]any{
		"company_id": "c1", "employee_id": "e1", "date": "2026-02-20", "start_time": "09:00",
		"service_ids": []any{"s60"}, "client": map[string]any{"name": "Maria"},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
