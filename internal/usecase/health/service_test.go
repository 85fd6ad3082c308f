package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(
		Component{Name: "engine", Pinger: &mockPinger{}, Critical: true},
		Component{Name: "cache", Pinger: &mockPinger{}},
	)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["engine"] != CheckOK {
		t.Errorf("expected engine %q, got %q", CheckOK, r.Checks["engine"])
	}
	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
}

func TestCheck_CriticalError(t *testing.T) {
	svc := New(
		Component{Name: "engine", Pinger: &mockPinger{err: errors.New("conn refused")}, Critical: true},
		Component{Name: "cache", Pinger: &mockPinger{err: errors.New("timeout")}},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["engine"] != CheckError {
		t.Errorf("expected engine %q, got %q", CheckError, r.Checks["engine"])
	}
}

func TestCheck_OptionalError(t *testing.T) {
	svc := New(
		Component{Name: "engine", Pinger: &mockPinger{}, Critical: true},
		Component{Name: "cache", Pinger: &mockPinger{err: errors.New("timeout")}},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
}

func TestCheck_NilPingerSkipped(t *testing.T) {
	svc := New(Component{Name: "cache"})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["cache"]; ok {
		t.Error("nil pinger should not be reported")
	}
}
