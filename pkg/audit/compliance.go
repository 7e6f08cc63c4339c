package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolgrid/toolgrid-go/pkg/observability"
)

// Severity levels for compliance findings
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Finding is one immutable compliance violation record
type Finding struct {
	ID         string            `json:"id"`
	ReportType string            `json:"report_type"`
	Severity   string            `json:"severity"`
	Message    string            `json:"message"`
	Resource   string            `json:"resource"`
	UserID     string            `json:"user_id,omitempty"`
	Evidence   map[string]string `json:"evidence,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ComplianceMonitor accumulates findings for report generation. The finding
// list is append-only; RecordViolation copies evidence so callers cannot
// mutate a stored finding afterwards.
type ComplianceMonitor struct {
	mu       sync.RWMutex
	findings []Finding
	metrics  *observability.Metrics
}

// NewComplianceMonitor creates an empty monitor. The metrics provider is
// optional.
func NewComplianceMonitor(metrics *observability.Metrics) *ComplianceMonitor {
	return &ComplianceMonitor{metrics: metrics}
}

// RecordViolation appends a finding and returns its assigned id
func (m *ComplianceMonitor) RecordViolation(reportType, severity, message, resource, userID string, evidence map[string]string) string {
	f := Finding{
		ID:         uuid.New().String(),
		ReportType: reportType,
		Severity:   severity,
		Message:    message,
		Resource:   resource,
		UserID:     userID,
		Timestamp:  time.Now().UTC(),
	}
	if len(evidence) > 0 {
		f.Evidence = make(map[string]string, len(evidence))
		for k, v := range evidence {
			f.Evidence[k] = v
		}
	}

	m.mu.Lock()
	m.findings = append(m.findings, f)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordViolation(reportType, severity)
	}
	return f.ID
}

// Report aggregates the findings of one type over a reporting window
type Report struct {
	ReportType  string    `json:"report_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	GeneratedAt time.Time `json:"generated_at"`
	Violations  []Finding `json:"violations"`
}

// GenerateReport collects every finding of the given report type whose
// timestamp falls within [start, end], in insertion order.
func (m *ComplianceMonitor) GenerateReport(reportType string, start, end time.Time) *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := &Report{
		ReportType:  reportType,
		PeriodStart: start,
		PeriodEnd:   end,
		GeneratedAt: time.Now().UTC(),
	}
	for _, f := range m.findings {
		if f.ReportType != reportType {
			continue
		}
		if f.Timestamp.Before(start) || f.Timestamp.After(end) {
			continue
		}
		report.Violations = append(report.Violations, f)
	}
	return report
}

// FindingCount reports the total number of recorded findings
func (m *ComplianceMonitor) FindingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.findings)
}
