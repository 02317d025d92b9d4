package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockArtifact struct {
	exists bool
}

func (m *mockArtifact) Exists() bool { return m.exists }

type mockCachePinger struct {
	err error
}

func (m *mockCachePinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_ArtifactPresent(t *testing.T) {
	svc := New(&mockArtifact{exists: true}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if !r.ModelLoaded {
		t.Error("expected model_loaded=true")
	}
	if len(r.Checks) != 0 {
		t.Errorf("expected no checks without cache, got %v", r.Checks)
	}
}

func TestCheck_ArtifactMissingStillHealthy(t *testing.T) {
	svc := New(&mockArtifact{exists: false}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.ModelLoaded {
		t.Error("expected model_loaded=false")
	}
}

func TestCheck_CacheOK(t *testing.T) {
	svc := New(&mockArtifact{exists: true}, &mockCachePinger{})
	r := svc.Check(context.Background())

	if r.Checks["cache"] != CheckOK {
		t.Errorf("expected cache %q, got %q", CheckOK, r.Checks["cache"])
	}
}

func TestCheck_CacheDown(t *testing.T) {
	svc := New(&mockArtifact{exists: true}, &mockCachePinger{err: errors.New("conn refused")})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if !r.ModelLoaded {
		t.Error("expected model_loaded=true")
	}
	if r.Checks["cache"] != CheckError {
		t.Errorf("expected cache %q, got %q", CheckError, r.Checks["cache"])
	}
}
