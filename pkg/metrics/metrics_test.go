package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRunComplete(t *testing.T) {
	initial := testutil.ToFloat64(RunsTotal.WithLabelValues("COMPLETED", "B"))
	RecordRunComplete("COMPLETED", "B", 90*time.Second)
	after := testutil.ToFloat64(RunsTotal.WithLabelValues("COMPLETED", "B"))
	if after != initial+1 {
		t.Errorf("RunsTotal = %v, want %v", after, initial+1)
	}
}

func TestRecordEntryFailure(t *testing.T) {
	initial := testutil.ToFloat64(EntryFailuresTotal.WithLabelValues("domain_blocked"))
	RecordEntryFailure("domain_blocked")
	after := testutil.ToFloat64(EntryFailuresTotal.WithLabelValues("domain_blocked"))
	if after != initial+1 {
		t.Errorf("EntryFailuresTotal = %v, want %v", after, initial+1)
	}
}

func TestRecordDuplicate(t *testing.T) {
	initial := testutil.ToFloat64(DuplicatesTotal)
	RecordDuplicate()
	after := testutil.ToFloat64(DuplicatesTotal)
	if after != initial+1 {
		t.Errorf("DuplicatesTotal = %v, want %v", after, initial+1)
	}
}

func TestRecordCluster(t *testing.T) {
	initial := testutil.ToFloat64(ClustersTotal.WithLabelValues("fp-1"))
	RecordCluster("fp-1")
	after := testutil.ToFloat64(ClustersTotal.WithLabelValues("fp-1"))
	if after != initial+1 {
		t.Errorf("ClustersTotal = %v, want %v", after, initial+1)
	}
}

func TestRecordOracleCall(t *testing.T) {
	initial := testutil.ToFloat64(OracleCallsTotal.WithLabelValues("anthropic", "success"))
	RecordOracleCall("anthropic", "success", 2*time.Second)
	after := testutil.ToFloat64(OracleCallsTotal.WithLabelValues("anthropic", "success"))
	if after != initial+1 {
		t.Errorf("OracleCallsTotal = %v, want %v", after, initial+1)
	}
}
