package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"clientpulse/internal/blob"
	"clientpulse/pkg/domain"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newPortfolioService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store := seedPortfolio(t)
	store.SetNowFunc(func() time.Time { return passTime })
	opts = append([]Option{WithClock(&fixedClock{now: passTime})}, opts...)
	return NewService(store, opts...)
}

func TestServiceRecomputesAfterCommit(t *testing.T) {
	svc := newPortfolioService(t)
	if len(svc.DerivedRecords()) != 0 {
		t.Fatalf("expected no derived values before the first operation")
	}
	if _, _, err := svc.UpdateAccount(context.Background(), "acct-1", func(a *Account) error {
		a.Region = "AMER"
		return nil
	}); err != nil {
		t.Fatalf("update account: %v", err)
	}
	health, ok := svc.LookupDerived(DerivedKey{ObjectType: domain.EntityAccount, ObjectID: "acct-1", Field: domain.FieldAccountHealth})
	if !ok {
		t.Fatalf("derived value missing after commit")
	}
	if !health.ComputedAt.Equal(passTime) {
		t.Fatalf("ComputedAt = %v, want %v", health.ComputedAt, passTime)
	}
}

func TestServiceBlockedCommitLeavesDerivedUnchanged(t *testing.T) {
	svc := newPortfolioService(t)
	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	before := svc.DerivedRecords()

	_, _, err := svc.CreateInvoice(context.Background(), Invoice{
		EngagementID: "eng-1",
		Amount:       -10,
		IssuedAt:     passTime,
		DueDate:      date(2026, 4, 1),
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}

	after := svc.DerivedRecords()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("derived values changed after a blocked commit")
	}
}

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.log("error", msg) }

type captureMetrics struct {
	mu           sync.Mutex
	observations []string
}

func (m *captureMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := "ok"
	if !success {
		status = "error"
	}
	m.observations = append(m.observations, operation+"/"+status)
}

type captureSpan struct {
	operation string
	err       error
	tracer    *captureTracer
}

func (s *captureSpan) End(err error) {
	s.err = err
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, s)
}

type captureTracer struct {
	mu    sync.Mutex
	ended []*captureSpan
}

func (t *captureTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{operation: operation, tracer: t}
}

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *captureAudit) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func TestServiceObservabilityHooks(t *testing.T) {
	logger := &captureLogger{}
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	audit := &captureAudit{}
	svc := newPortfolioService(t,
		WithLogger(logger),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithAuditRecorder(audit),
	)

	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if _, _, err := svc.CreateWorkstream(context.Background(), Workstream{EngagementID: "missing"}); err == nil {
		t.Fatalf("expected failure for unknown engagement")
	}

	if len(metrics.observations) != 2 || metrics.observations[0] != "recompute/ok" || metrics.observations[1] != "create_workstream/error" {
		t.Fatalf("unexpected observations %v", metrics.observations)
	}
	if len(tracer.ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tracer.ended))
	}
	if tracer.ended[0].err != nil || tracer.ended[1].err == nil {
		t.Fatalf("span errors not propagated")
	}
	if len(audit.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(audit.entries))
	}
	if audit.entries[0].Status != AuditStatusSuccess || audit.entries[1].Status != AuditStatusFailure {
		t.Fatalf("unexpected audit statuses %+v", audit.entries)
	}
	if audit.entries[1].Error == "" {
		t.Fatalf("failure entry should carry the error message")
	}
	sawError := false
	for _, entry := range logger.entries {
		if entry == "error: operation failed" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error log, got %v", logger.entries)
	}
}

func TestServiceArchiveReport(t *testing.T) {
	archive := blob.NewMemory()
	svc := newPortfolioService(t, WithReportArchive(archive, "reports/"))
	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	key, err := svc.ArchiveReport(context.Background())
	if err != nil {
		t.Fatalf("archive report: %v", err)
	}
	if key != "reports/derived-20260301T000000Z.json" {
		t.Fatalf("unexpected key %q", key)
	}
	info, rc, err := archive.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get archived report: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", info.ContentType)
	}
	var records []DerivedValue
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(records) != len(svc.DerivedRecords()) {
		t.Fatalf("report has %d records, store has %d", len(records), len(svc.DerivedRecords()))
	}
}

func TestServiceArchiveReportRequiresArchive(t *testing.T) {
	svc := newPortfolioService(t)
	if _, err := svc.ArchiveReport(context.Background()); err == nil {
		t.Fatalf("expected error without a configured archive")
	}
}

func TestServiceGetAccount(t *testing.T) {
	svc := newPortfolioService(t)
	account, err := svc.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Name != "Globex Industrial" {
		t.Fatalf("unexpected account %+v", account)
	}
	_, err = svc.GetAccount(context.Background(), "nope")
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.Entity != domain.EntityAccount || notFound.ID != "nope" {
		t.Fatalf("unexpected not-found detail %+v", notFound)
	}
}

func TestServiceMilestoneHelpers(t *testing.T) {
	svc := newPortfolioService(t)
	completed, _, err := svc.CompleteMilestone(context.Background(), "ms-soon", date(2026, 3, 2))
	if err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	if completed.CompletionDate == nil || !completed.CompletionDate.Equal(date(2026, 3, 2)) {
		t.Fatalf("completion date not set: %+v", completed)
	}
	record, ok := svc.LookupDerived(DerivedKey{ObjectType: domain.EntityMilestone, ObjectID: "ms-soon", Field: domain.FieldAtRiskFlag})
	if !ok {
		t.Fatalf("missing at-risk flag")
	}
	if record.Value != false {
		t.Fatalf("completed milestone should not be at risk")
	}

	signed, _, err := svc.SignOffMilestone(context.Background(), "ms-soon", date(2026, 3, 3))
	if err != nil {
		t.Fatalf("sign off milestone: %v", err)
	}
	if signed.ClientSignoffDate == nil {
		t.Fatalf("signoff date not set")
	}
}

func TestServiceLinkAndUnlinkRelations(t *testing.T) {
	svc := newPortfolioService(t)
	link, _, err := svc.LinkDeliverableToOutcome(context.Background(), "del-1", "out-1")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	progress, ok := svc.LookupDerived(DerivedKey{ObjectType: domain.EntityOutcome, ObjectID: "out-1", Field: domain.FieldProgressPct})
	if !ok {
		t.Fatalf("missing progress record")
	}
	if progress.Explanation["supporting_deliverables"] != float64(2) {
		t.Fatalf("expected 2 supporting deliverables, got %v", progress.Explanation["supporting_deliverables"])
	}
	if _, err := svc.UnlinkRelation(context.Background(), link.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
}
