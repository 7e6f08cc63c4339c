package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) LogEvent(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

func TestLogToolExecution(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(sink, nil)

	logger.LogToolExecution(context.Background(), "search", "alice", "s-1", true, "")
	logger.LogToolExecution(context.Background(), "delete", "bob", "s-2", false, "permission denied")

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Type != EventToolExecution {
		t.Errorf("Expected tool_execution type, got %q", first.Type)
	}
	if first.Tool != "search" || first.UserID != "alice" || first.SessionID != "s-1" || !first.Success {
		t.Errorf("Unexpected event fields: %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Error("Expected a timestamp on the event")
	}

	second := events[1]
	if second.Success || second.Detail != "permission denied" {
		t.Errorf("Unexpected failure event: %+v", second)
	}
}

func TestLogPermissionCheck(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(sink, nil)

	logger.LogPermissionCheck(context.Background(), "search", "alice", false, "no role grants tool:search")

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventPermissionCheck {
		t.Errorf("Expected permission_check type, got %q", events[0].Type)
	}
	if events[0].Success {
		t.Error("Expected the denial to be recorded as unsuccessful")
	}
}

func TestLogProtocolViolation(t *testing.T) {
	sink := &captureSink{}
	logger := NewLogger(sink, nil)

	logger.LogProtocolViolation(context.Background(), `{"type":"bogus"}`, "alice", "unknown envelope type")

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventProtocolViolation {
		t.Errorf("Expected protocol_violation type, got %q", events[0].Type)
	}
	if events[0].Fields["message"] != `{"type":"bogus"}` {
		t.Errorf("Expected the offending message to be preserved, got %+v", events[0].Fields)
	}
}

func TestNilSinkDropsEvents(t *testing.T) {
	logger := NewLogger(nil, nil)
	// Must not panic.
	logger.LogToolExecution(context.Background(), "search", "alice", "", true, "")
}

func TestSinkFailureIsSwallowed(t *testing.T) {
	failing := SinkFunc(func(ctx context.Context, event Event) error {
		return fmt.Errorf("sink unavailable")
	})
	logger := NewLogger(failing, nil)
	// The audited operation must not observe the sink failure.
	logger.LogToolExecution(context.Background(), "search", "alice", "", true, "")
}

func TestRecordViolation(t *testing.T) {
	monitor := NewComplianceMonitor(nil)

	id := monitor.RecordViolation("security", SeverityCritical, "credential leak", "transport/http", "alice",
		map[string]string{"header": "Authorization"})
	if id == "" {
		t.Fatal("Expected a finding id")
	}
	if monitor.FindingCount() != 1 {
		t.Errorf("Expected 1 finding, got %d", monitor.FindingCount())
	}

	start, end := time.Now().Add(-time.Minute), time.Now().Add(time.Minute)
	report := monitor.GenerateReport("security", start, end)
	if report.ReportType != "security" {
		t.Errorf("Expected the report type to be carried, got %q", report.ReportType)
	}
	if !report.PeriodStart.Equal(start) || !report.PeriodEnd.Equal(end) {
		t.Errorf("Expected the window bounds on the report, got %v..%v",
			report.PeriodStart, report.PeriodEnd)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected a generation timestamp")
	}
	if len(report.Violations) != 1 {
		t.Fatalf("Expected 1 finding in the report, got %d", len(report.Violations))
	}
	f := report.Violations[0]
	if f.ID != id || f.Severity != SeverityCritical || f.Resource != "transport/http" {
		t.Errorf("Unexpected finding: %+v", f)
	}
	if f.Evidence["header"] != "Authorization" {
		t.Errorf("Expected evidence to be preserved, got %+v", f.Evidence)
	}
}

func TestRecordViolationCopiesEvidence(t *testing.T) {
	monitor := NewComplianceMonitor(nil)

	evidence := map[string]string{"k": "original"}
	monitor.RecordViolation("security", SeverityInfo, "m", "r", "", evidence)
	evidence["k"] = "mutated"

	report := monitor.GenerateReport("security", time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if report.Violations[0].Evidence["k"] != "original" {
		t.Error("Expected the stored finding to be immune to caller mutation")
	}
}

func TestGenerateReportFilters(t *testing.T) {
	monitor := NewComplianceMonitor(nil)

	monitor.RecordViolation("security", SeverityWarning, "a", "r1", "", nil)
	monitor.RecordViolation("privacy", SeverityWarning, "b", "r2", "", nil)
	monitor.RecordViolation("security", SeverityInfo, "c", "r3", "", nil)

	now := time.Now()
	report := monitor.GenerateReport("security", now.Add(-time.Minute), now.Add(time.Minute))
	if len(report.Violations) != 2 {
		t.Fatalf("Expected 2 security findings, got %d", len(report.Violations))
	}
	for _, f := range report.Violations {
		if f.ReportType != "security" {
			t.Errorf("Expected only security findings, got %q", f.ReportType)
		}
	}

	// A window in the past excludes everything.
	past := monitor.GenerateReport("security", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if len(past.Violations) != 0 {
		t.Errorf("Expected no findings outside the window, got %d", len(past.Violations))
	}
}

func TestConcurrentViolationRecording(t *testing.T) {
	monitor := NewComplianceMonitor(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				monitor.RecordViolation("load", SeverityInfo, "m", "r", "", nil)
			}
		}()
	}
	wg.Wait()

	if monitor.FindingCount() != 400 {
		t.Errorf("Expected 400 findings, got %d", monitor.FindingCount())
	}
}
