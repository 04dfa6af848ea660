package services_test

import (
	"context"
	"testing"

	"demoflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "abc")
	ctx = services.WithStep(ctx, "compare-psnr")
	ctx = services.WithStream(ctx, "codecA")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "compare-psnr" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if stream, ok := services.StreamFromContext(ctx); !ok || stream != "codecA" {
		t.Fatalf("unexpected stream: %v %v", stream, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStep(ctx, "")
	ctx = services.WithSessionID(ctx, "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
	if _, ok := services.SessionIDFromContext(ctx); ok {
		t.Fatal("expected no session value")
	}
}
