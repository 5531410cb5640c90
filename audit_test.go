package tokenlife

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, ch <-chan AuditEvent) AuditEvent {
	t.Helper()

	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an audit event")
		return AuditEvent{}
	}
}

func TestAuditEventsForLifecycle(t *testing.T) {
	sink := NewChannelSink(64)

	cfg := serviceTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	mr, rdb := newTestRedis(t)
	defer mr.Close()
	clock := newTestClock()
	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	pair, err := svc.GenerateTokens(ctx, testIdentity(), nil)
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	issued := waitForEvent(t, sink.Events())
	if issued.EventType != auditEventTokensIssued {
		t.Fatalf("expected %s, got %s", auditEventTokensIssued, issued.EventType)
	}
	if !issued.Success || issued.UserID != "u1" || issued.FamilyID != pair.FamilyID {
		t.Fatalf("unexpected issue event: %+v", issued)
	}
	if issued.IP != "203.0.113.7" {
		t.Fatalf("expected client ip to be recorded, got %q", issued.IP)
	}
	if issued.ID == "" || issued.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", issued)
	}

	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken, nil); err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	rotatedEvent := waitForEvent(t, sink.Events())
	if rotatedEvent.EventType != auditEventRefreshSuccess {
		t.Fatalf("expected %s, got %s", auditEventRefreshSuccess, rotatedEvent.EventType)
	}
	if rotatedEvent.Metadata["generation"] != "2" {
		t.Fatalf("expected generation metadata, got %+v", rotatedEvent.Metadata)
	}

	// Replay: a reuse event followed by the family revocation it forced.
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken, nil); err == nil {
		t.Fatal("expected replay to fail")
	}
	reuse := waitForEvent(t, sink.Events())
	if reuse.EventType != auditEventRefreshReuseDetected || reuse.Success {
		t.Fatalf("unexpected reuse event: %+v", reuse)
	}
	burned := waitForEvent(t, sink.Events())
	if burned.EventType != auditEventFamilyRevoked || burned.FamilyID != pair.FamilyID {
		t.Fatalf("unexpected family revocation event: %+v", burned)
	}
}

type gatedSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *gatedSink) Emit(context.Context, AuditEvent) {
	s.started <- struct{}{}
	<-s.release
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &gatedSink{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	d.Emit(ctx, AuditEvent{EventType: "e1"})
	<-sink.started // dispatcher is now blocked inside the sink

	d.Emit(ctx, AuditEvent{EventType: "e2"}) // fills the buffer
	d.Emit(ctx, AuditEvent{EventType: "e3"})
	d.Emit(ctx, AuditEvent{EventType: "e4"})

	if got := d.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped events, got %d", got)
	}

	close(sink.release)
	d.Close()
}

func TestAuditDisabledIsSilent(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1)); d != nil {
		t.Fatal("expected no dispatcher when audit is disabled")
	}

	// nil dispatcher methods are safe.
	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		ID:        "evt-1",
		EventType: "tokens_issued",
		UserID:    "u1",
		Success:   true,
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not one JSON document: %v", err)
	}
	if decoded.ID != "evt-1" || decoded.EventType != "tokens_issued" || !decoded.Success {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}
