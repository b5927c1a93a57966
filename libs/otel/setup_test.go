package otelx

import (
	"context"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.ServiceName != "booking-service" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if got := ConfigFromEnv("x").SampleRatio; got != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", got)
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
