package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCompilationCountsRejectionsByReason(t *testing.T) {
	okBefore := testutil.ToFloat64(filterCompilationsTotal.WithLabelValues(CompileOutcomeOK))
	rejectedBefore := testutil.ToFloat64(filterCompilationsTotal.WithLabelValues(CompileOutcomeRejected))
	reasonBefore := testutil.ToFloat64(filterRejectionsTotal.WithLabelValues("invalid_boolean_value"))

	ObserveCompilation("")
	ObserveCompilation("invalid_boolean_value")

	if got := testutil.ToFloat64(filterCompilationsTotal.WithLabelValues(CompileOutcomeOK)); got != okBefore+1 {
		t.Fatalf("ok compilations = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(filterCompilationsTotal.WithLabelValues(CompileOutcomeRejected)); got != rejectedBefore+1 {
		t.Fatalf("rejected compilations = %v, want %v", got, rejectedBefore+1)
	}
	if got := testutil.ToFloat64(filterRejectionsTotal.WithLabelValues("invalid_boolean_value")); got != reasonBefore+1 {
		t.Fatalf("rejections = %v, want %v", got, reasonBefore+1)
	}
}

func TestObserveExportCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(exportsTotal.WithLabelValues("error"))
	ObserveExport(errors.New("bucket missing"))
	if got := testutil.ToFloat64(exportsTotal.WithLabelValues("error")); got != before+1 {
		t.Fatalf("export errors = %v, want %v", got, before+1)
	}
	ObserveBrowse(12, 40*time.Millisecond)
}
