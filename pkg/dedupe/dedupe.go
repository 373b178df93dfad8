package dedupe

import (
	"sort"

	"github.com/AteetVatan/masx-geosignal/internal/config"
)

// Candidate is one run's entry as seen by the deduplicator: the extracted
// text and its ID, prior to embedding.
type Candidate struct {
	EntryID string
	Text    string
}

// Verdict is the deduplicator's decision for one candidate.
type Verdict struct {
	EntryID          string
	ContentHash      string
	MinHashSignature Signature
	IsDuplicate      bool
	DuplicateOfEntryID string
}

// Dedupe runs the two-level exact-then-near duplicate detector over
// candidates, processing in ascending entry_id order so the earliest entry
// in any duplicate group always wins.
func Dedupe(candidates []Candidate, cfg config.DedupeConfig) []Verdict {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EntryID < sorted[j].EntryID })

	verdicts := make([]Verdict, 0, len(sorted))
	exactWinners := make(map[string]string) // content_hash -> winning entry_id
	index := NewLSHIndex(cfg.NumHashes)

	for _, c := range sorted {
		canonical := Canonicalize(c.Text)
		hash := ContentHash(c.Text)

		if winner, ok := exactWinners[hash]; ok {
			verdicts = append(verdicts, Verdict{
				EntryID:            c.EntryID,
				ContentHash:        hash,
				IsDuplicate:        true,
				DuplicateOfEntryID: winner,
			})
			continue
		}
		exactWinners[hash] = c.EntryID

		sig := ComputeSignature(canonical, cfg.ShingleSize, cfg.NumHashes)
		winner := bestNearMatch(index, sig, cfg.MinHashThreshold)
		if winner != "" {
			verdicts = append(verdicts, Verdict{
				EntryID:            c.EntryID,
				ContentHash:        hash,
				MinHashSignature:   sig,
				IsDuplicate:        true,
				DuplicateOfEntryID: winner,
			})
			continue
		}

		index.Insert(c.EntryID, sig)
		verdicts = append(verdicts, Verdict{
			EntryID:          c.EntryID,
			ContentHash:      hash,
			MinHashSignature: sig,
			IsDuplicate:      false,
		})
	}
	return verdicts
}

// bestNearMatch returns the candidate entry_id with the highest Jaccard
// estimate at or above threshold, or "" if none qualifies. Ties break on
// the smaller (earlier) entry_id, matching the exact-dedup tie rule.
func bestNearMatch(index *LSHIndex, sig Signature, threshold float64) string {
	var best string
	var bestScore float64
	for _, candidateID := range index.Candidates(sig) {
		candidateSig, ok := index.Signature(candidateID)
		if !ok {
			continue
		}
		score := EstimateJaccard(sig, candidateSig)
		if score < threshold {
			continue
		}
		if best == "" || score > bestScore || (score == bestScore && candidateID < best) {
			best = candidateID
			bestScore = score
		}
	}
	return best
}
