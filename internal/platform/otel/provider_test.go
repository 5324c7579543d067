package otel

import (
	"context"
	"testing"
)

// TestSetupDisabledWithoutEndpoint ensures tracing stays off when no endpoint
// is configured.
func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("SKIRMISH_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "combat")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

// TestSetupDisabledWhenExplicitlyOff ensures the kill switch wins even with
// an endpoint set.
func TestSetupDisabledWhenExplicitlyOff(t *testing.T) {
	t.Setenv("SKIRMISH_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SKIRMISH_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "combat")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
