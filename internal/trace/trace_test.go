package trace

import (
	"errors"
	"testing"
)

func TestStartEndRecordsSpan(t *testing.T) {
	tr := NewTracer(DefaultConfig())

	span := tr.StartSpan("job-1", "dispatch", map[string]string{"key": "val"})
	tr.EndSpan(span, nil)

	if tr.SpanCount() != 1 {
		t.Fatalf("SpanCount() = %d, want 1", tr.SpanCount())
	}
	spans := tr.Spans(1)
	if len(spans) != 1 {
		t.Fatalf("Spans(1) returned %d, want 1", len(spans))
	}
	if spans[0].Operation != "dispatch" {
		t.Errorf("Operation = %q, want dispatch", spans[0].Operation)
	}
	if spans[0].Status != OK {
		t.Errorf("Status = %d, want OK", spans[0].Status)
	}
	if spans[0].EndTime.Before(spans[0].StartTime) {
		t.Error("EndTime should not be before StartTime")
	}
	if spans[0].Attrs["key"] != "val" {
		t.Errorf("Attrs[key] = %q, want val", spans[0].Attrs["key"])
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	tr := NewTracer(DefaultConfig())

	span := tr.StartSpan("job-1", "settle", nil)
	tr.EndSpan(span, errors.New("boom"))

	spans := tr.Spans(1)
	if spans[0].Status != Error {
		t.Errorf("Status = %d, want Error", spans[0].Status)
	}
	if spans[0].Attrs["error"] != "boom" {
		t.Errorf("Attrs[error] = %q, want boom", spans[0].Attrs["error"])
	}
}

func TestDisabledTracerRecordsNothing(t *testing.T) {
	tr := NewTracer(Config{Enabled: false, MaxSpans: 10})
	span := tr.StartSpan("job-1", "dispatch", nil)
	tr.EndSpan(span, nil)
	if tr.SpanCount() != 0 {
		t.Errorf("SpanCount() = %d, want 0 when disabled", tr.SpanCount())
	}
}

func TestRingBufferEvictsOldestSpan(t *testing.T) {
	tr := NewTracer(Config{Enabled: true, MaxSpans: 2})
	for i := 0; i < 3; i++ {
		span := tr.StartSpan("job-1", "dispatch", nil)
		tr.EndSpan(span, nil)
	}
	if tr.SpanCount() != 2 {
		t.Errorf("SpanCount() = %d, want 2 (ring buffer capped)", tr.SpanCount())
	}
}

func TestSpansReturnsMostRecent(t *testing.T) {
	tr := NewTracer(DefaultConfig())
	for i := 0; i < 5; i++ {
		span := tr.StartSpan("job-1", "dispatch", nil)
		tr.EndSpan(span, nil)
	}
	spans := tr.Spans(2)
	if len(spans) != 2 {
		t.Fatalf("Spans(2) returned %d, want 2", len(spans))
	}
}
