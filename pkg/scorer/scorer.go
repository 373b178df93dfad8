// Package scorer computes the four-component weighted hotspot score for
// each cluster of a run and flags the top-K clusters for alerting.
package scorer

import (
	"sort"
	"time"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/mathutil"
)

// ClusterStats is a cluster's raw signal, prior to normalization, as
// gathered by the run controller from its members.
type ClusterStats struct {
	FlashpointID string
	ClusterID    int
	MemberCount  int
	Domains      []string
	Languages    []string
	SeenDates    []time.Time
}

// Score is one cluster's computed hotspot score.
type Score struct {
	FlashpointID string
	ClusterID    int
	Value        float64
	Flagged      bool
}

// ScoreAll normalizes each component across clusters, combines them with
// cfg's weights, and flags the top cfg.TopK clusters by score.
func ScoreAll(clusters []ClusterStats, cfg config.ScorerConfig) []Score {
	if len(clusters) == 0 {
		return nil
	}

	memberCounts := make([]float64, len(clusters))
	domainDiversities := make([]float64, len(clusters))
	langDiversities := make([]float64, len(clusters))
	burstinesses := make([]float64, len(clusters))

	for i, c := range clusters {
		memberCounts[i] = float64(c.MemberCount)
		domainDiversities[i] = float64(distinctCount(c.Domains))
		langDiversities[i] = float64(distinctCount(c.Languages))
		burstinesses[i] = burstiness(c.SeenDates)
	}

	memberMin, memberMax := mathutil.Min(memberCounts), mathutil.Max(memberCounts)
	domainMin, domainMax := mathutil.Min(domainDiversities), mathutil.Max(domainDiversities)
	langMin, langMax := mathutil.Min(langDiversities), mathutil.Max(langDiversities)
	burstMin, burstMax := mathutil.Min(burstinesses), mathutil.Max(burstinesses)

	scores := make([]Score, len(clusters))
	for i, c := range clusters {
		value := cfg.WeightMemberCount*mathutil.Normalize(memberCounts[i], memberMin, memberMax) +
			cfg.WeightDomainDiversity*mathutil.Normalize(domainDiversities[i], domainMin, domainMax) +
			cfg.WeightLangDiversity*mathutil.Normalize(langDiversities[i], langMin, langMax) +
			cfg.WeightBurstiness*mathutil.Normalize(burstinesses[i], burstMin, burstMax)
		scores[i] = Score{FlashpointID: c.FlashpointID, ClusterID: c.ClusterID, Value: value}
	}

	flagTopK(scores, cfg.TopK)
	return scores
}

// flagTopK marks the top k scores (by value, ties broken by the stable
// input order) as flagged, in place.
func flagTopK(scores []Score, k int) {
	if k <= 0 {
		return
	}
	if k >= len(scores) {
		for i := range scores {
			scores[i].Flagged = true
		}
		return
	}

	ranked := make([]int, len(scores))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return scores[ranked[a]].Value > scores[ranked[b]].Value
	})
	for _, idx := range ranked[:k] {
		scores[idx].Flagged = true
	}
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// burstiness measures temporal concentration over seen-date: articles per
// day of span, so a cluster whose members all land within a short window
// scores higher than one spread over many days. A single-day cluster
// collapses to the maximal signal (count itself); the caller's Normalize
// pass rescales across clusters.
func burstiness(seenDates []time.Time) float64 {
	if len(seenDates) == 0 {
		return 0
	}
	sorted := make([]time.Time, len(seenDates))
	copy(sorted, seenDates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	span := sorted[len(sorted)-1].Sub(sorted[0]).Hours() / 24
	if span <= 0 {
		return float64(len(sorted))
	}
	return float64(len(sorted)) / (span + 1)
}
