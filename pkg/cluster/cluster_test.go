package cluster

import (
	"testing"

	"github.com/AteetVatan/masx-geosignal/internal/config"
)

func testClusterConfig() config.ClusterConfig {
	return config.ClusterConfig{KNNK: 10, CosineThreshold: 0.65}
}

func TestCluster_Empty(t *testing.T) {
	got := Cluster(nil, testClusterConfig())
	if len(got) != 0 {
		t.Errorf("expected zero clusters, got %d", len(got))
	}
}

func TestCluster_Singleton(t *testing.T) {
	vectors := []Vector{{EntryID: "e1", Values: []float64{1, 0, 0}}}
	got := Cluster(vectors, testClusterConfig())
	if len(got) != 1 || len(got[0].EntryIDs) != 1 {
		t.Fatalf("got = %+v, want one singleton cluster", got)
	}
	if got[0].ClusterID != 1 {
		t.Errorf("ClusterID = %d, want 1", got[0].ClusterID)
	}
}

func TestCluster_TwoGroups(t *testing.T) {
	vectors := []Vector{
		{EntryID: "e1", Values: []float64{1, 0, 0}},
		{EntryID: "e2", Values: []float64{0.99, 0.01, 0}},
		{EntryID: "e3", Values: []float64{0.98, 0.02, 0}},
		{EntryID: "e4", Values: []float64{0, 1, 0}},
		{EntryID: "e5", Values: []float64{0, 0.99, 0.01}},
	}
	got := Cluster(vectors, testClusterConfig())
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2: %+v", len(got), got)
	}
	// Larger group (3 members) ranked first.
	if len(got[0].EntryIDs) != 3 {
		t.Errorf("largest cluster has %d members, want 3", len(got[0].EntryIDs))
	}
	if len(got[1].EntryIDs) != 2 {
		t.Errorf("second cluster has %d members, want 2", len(got[1].EntryIDs))
	}
}

func TestCluster_DenseRankOrdering(t *testing.T) {
	vectors := []Vector{
		{EntryID: "e1", Values: []float64{1, 0, 0}},
		{EntryID: "e9", Values: []float64{0, 1, 0}},
	}
	got := Cluster(vectors, testClusterConfig())
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
	// Equal-size singletons break ties by smallest entry_id ASC.
	if got[0].EntryIDs[0] != "e1" {
		t.Errorf("first cluster member = %s, want e1", got[0].EntryIDs[0])
	}
	if got[1].ClusterID != 2 {
		t.Errorf("second ClusterID = %d, want 2", got[1].ClusterID)
	}
}
