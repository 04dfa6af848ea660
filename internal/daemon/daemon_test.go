package daemon_test

import (
	"context"
	"strings"
	"testing"

	"demoflow/internal/config"
	"demoflow/internal/daemon"
	"demoflow/internal/logging"
	"demoflow/internal/testsupport"
)

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, opts...)
}

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) (*daemon.Daemon, *testsupport.Registry) {
	t.Helper()
	registry := testsupport.NewRegistry(t, cfg)
	opts = append([]daemon.Option{daemon.WithMetrics(registry.Metrics)}, opts...)
	d, err := daemon.New(cfg, registry.Registry, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, registry
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}
	if strings.HasSuffix(status.APIAddress, ":0") {
		t.Fatalf("expected resolved listener address, got %q", status.APIAddress)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := testConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestStopClosesSessions(t *testing.T) {
	d, registry := newDaemon(t, testConfig(t, testsupport.WithAPIBind("")))

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess, err := registry.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := d.Status().Sessions; got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}

	d.Stop()
	if !sess.Closed() {
		t.Fatal("expected session closed on stop")
	}
	if registry.Len() != 0 {
		t.Fatalf("registry still holds %d sessions", registry.Len())
	}
}
