package summarizer

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// ClusterInput is one cluster's members as handed to the summarizer after
// clustering, before stage-2 synthesis.
type ClusterInput struct {
	ClusterUUID string
	Articles    []Article
}

// ClusterSummary is a cluster's final summary plus the pre-synthesis size
// used for premium-pass selection.
type ClusterSummary struct {
	ClusterUUID string
	Summary     string
	Premium     bool
	MemberCount int
	StageOne    []StageOneResult
}

// Summarizer runs the two-stage pipeline: a local extractive pass over
// every cluster member, followed by an at-most-once oracle synthesis call
// per cluster, with the top PremiumPassFraction of clusters by member count
// resubmitted to a higher-quality oracle that supersedes the standard
// result.
type Summarizer struct {
	local           *LocalSummarizer
	oracle          Oracle
	premiumOracle   Oracle
	premiumFraction float64
	logger          *logrus.Logger
}

// NewSummarizer builds a Summarizer. premiumOracle may be nil, in which
// case no cluster is ever resubmitted regardless of premiumFraction.
func NewSummarizer(local *LocalSummarizer, oracle, premiumOracle Oracle, premiumFraction float64, logger *logrus.Logger) *Summarizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Summarizer{
		local:           local,
		oracle:          oracle,
		premiumOracle:   premiumOracle,
		premiumFraction: premiumFraction,
		logger:          logger,
	}
}

// SummarizeClusters runs stage 1 and stage 2 across every cluster, then
// the premium pass over the top premiumFraction of clusters ranked by
// pre-summarization member count. Each cluster is visited independently;
// a stage-2 failure on one cluster does not block the others.
func (s *Summarizer) SummarizeClusters(ctx context.Context, clusters []ClusterInput) []ClusterSummary {
	out := make([]ClusterSummary, len(clusters))
	stageOne := make([][]StageOneResult, len(clusters))

	for i, c := range clusters {
		stageOne[i] = s.local.SummarizeAll(ctx, c.Articles)
		summary := s.synthesize(ctx, s.oracle, stageOne[i])
		out[i] = ClusterSummary{
			ClusterUUID: c.ClusterUUID,
			Summary:     summary,
			MemberCount: len(c.Articles),
			StageOne:    stageOne[i],
		}
	}

	s.runPremiumPass(ctx, out, stageOne)
	return out
}

// synthesize submits a cluster's stage-1 summaries to oracle and parses its
// reply; on any failure (exhausted retries, unparseable response, nil
// oracle) it falls back to the longest non-empty stage-1 summary so a
// cluster is never left without one.
func (s *Summarizer) synthesize(ctx context.Context, oracle Oracle, stageOne []StageOneResult) string {
	if oracle == nil {
		return longestSummary(stageOne)
	}

	payload := joinSummaries(extractSummaryTexts(stageOne))
	raw, err := oracle.Synthesize(ctx, payload)
	if err != nil {
		s.logger.WithError(err).Warn("oracle synthesis failed, falling back to local summary")
		return longestSummary(stageOne)
	}

	summary, ok := ParseOracleResponse(raw)
	if !ok {
		s.logger.Warn("oracle response unparseable, falling back to local summary")
		return longestSummary(stageOne)
	}
	return summary
}

// runPremiumPass resubmits the top premiumFraction of clusters, ranked by
// descending member count with a stable tie-break on original order, to
// the premium oracle. A premium failure keeps the standard-pass result
// rather than clearing it.
func (s *Summarizer) runPremiumPass(ctx context.Context, out []ClusterSummary, stageOne [][]StageOneResult) {
	if s.premiumOracle == nil || s.premiumFraction <= 0 || len(out) == 0 {
		return
	}

	k := int(float64(len(out)) * s.premiumFraction)
	if k <= 0 {
		k = 1
	}
	if k > len(out) {
		k = len(out)
	}

	ranked := make([]int, len(out))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return out[ranked[a]].MemberCount > out[ranked[b]].MemberCount
	})

	for _, idx := range ranked[:k] {
		raw, err := s.premiumOracle.Synthesize(ctx, joinSummaries(extractSummaryTexts(stageOne[idx])))
		if err != nil {
			s.logger.WithError(err).Warn("premium synthesis failed, keeping standard result")
			continue
		}
		summary, ok := ParseOracleResponse(raw)
		if !ok {
			s.logger.Warn("premium response unparseable, keeping standard result")
			continue
		}
		out[idx].Summary = summary
		out[idx].Premium = true
	}
}

func longestSummary(stageOne []StageOneResult) string {
	var longest string
	for _, r := range stageOne {
		if len(r.Summary) > len(longest) {
			longest = r.Summary
		}
	}
	return longest
}

func extractSummaryTexts(stageOne []StageOneResult) []string {
	out := make([]string, 0, len(stageOne))
	for _, r := range stageOne {
		if r.Summary != "" {
			out = append(out, r.Summary)
		}
	}
	return out
}
