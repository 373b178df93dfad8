package scorer

import (
	"testing"
	"time"

	"github.com/AteetVatan/masx-geosignal/internal/config"
)

func testScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		WeightMemberCount:     0.4,
		WeightDomainDiversity: 0.25,
		WeightLangDiversity:   0.15,
		WeightBurstiness:      0.2,
		TopK:                  1,
	}
}

func TestScoreAll_FlagsTopK(t *testing.T) {
	now := time.Now()
	clusters := []ClusterStats{
		{FlashpointID: "fp1", ClusterID: 1, MemberCount: 2, Domains: []string{"a.com"}, Languages: []string{"en"}, SeenDates: []time.Time{now}},
		{FlashpointID: "fp1", ClusterID: 2, MemberCount: 20, Domains: []string{"a.com", "b.com", "c.com"}, Languages: []string{"en", "fr"}, SeenDates: []time.Time{now, now.Add(24 * time.Hour)}},
	}

	scores := ScoreAll(clusters, testScorerConfig())
	if len(scores) != 2 {
		t.Fatalf("len(scores) = %d, want 2", len(scores))
	}

	flaggedCount := 0
	var maxScore Score
	for _, s := range scores {
		if s.Flagged {
			flaggedCount++
			maxScore = s
		}
	}
	if flaggedCount != 1 {
		t.Fatalf("flaggedCount = %d, want 1", flaggedCount)
	}
	if maxScore.ClusterID != 2 {
		t.Errorf("flagged cluster = %d, want the larger cluster (2)", maxScore.ClusterID)
	}
}

func TestScoreAll_Empty(t *testing.T) {
	if got := ScoreAll(nil, testScorerConfig()); got != nil {
		t.Errorf("ScoreAll(nil) = %+v, want nil", got)
	}
}

func TestScoreAll_TopKExceedsCount(t *testing.T) {
	cfg := testScorerConfig()
	cfg.TopK = 10
	clusters := []ClusterStats{
		{FlashpointID: "fp1", ClusterID: 1, MemberCount: 1},
	}
	scores := ScoreAll(clusters, cfg)
	if !scores[0].Flagged {
		t.Error("expected sole cluster to be flagged when TopK exceeds cluster count")
	}
}

func TestDistinctCount(t *testing.T) {
	if got := distinctCount([]string{"a", "b", "a"}); got != 2 {
		t.Errorf("distinctCount = %d, want 2", got)
	}
}
