// Package summarizer implements the two-stage summarization pipeline:
// a local, deterministic extractive stage-1 pass run across a bounded CPU
// worker pool, then an external oracle stage-2 synthesis per cluster with a
// fault-tolerant JSON response parser and a longest-stage-1-summary
// fallback on terminal oracle failure.
package summarizer

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const maxSummaryTokens = 80

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)
var wordRe = regexp.MustCompile(`[A-Za-z0-9']+`)

// LocalSummarizer produces a deterministic extractive summary per article,
// dispatched across a bounded worker pool to parallelize the CPU-bound
// scoring work without affecting the I/O scheduler's concurrency.
type LocalSummarizer struct {
	workers int
}

// NewLocalSummarizer builds a LocalSummarizer with the configured worker
// count; workers <= 0 falls back to 1.
func NewLocalSummarizer(workers int) *LocalSummarizer {
	if workers <= 0 {
		workers = 1
	}
	return &LocalSummarizer{workers: workers}
}

// Article is one cluster member's input to stage 1.
type Article struct {
	EntryID string
	Text    string
}

// StageOneResult is one article's local extractive summary.
type StageOneResult struct {
	EntryID string
	Summary string
}

// SummarizeAll runs Summarize across articles using the configured worker
// pool, preserving input order in the result slice regardless of which
// worker finishes first.
func (s *LocalSummarizer) SummarizeAll(ctx context.Context, articles []Article) []StageOneResult {
	results := make([]StageOneResult, len(articles))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = StageOneResult{
					EntryID: articles[i].EntryID,
					Summary: Summarize(articles[i].Text),
				}
			}
		}()
	}

	for i := range articles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// Summarize produces a deterministic extractive summary of text capped at
// roughly maxSummaryTokens words: sentences are scored by word-frequency
// density (the classic Luhn extractive heuristic) and the top-scoring
// sentences are emitted in their original document order.
func Summarize(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}

	freq := wordFrequencies(text)
	scored := make([]sentenceScore, len(sentences))
	for i, sent := range sentences {
		scored[i] = sentenceScore{index: i, sentence: sent, score: scoreSentence(sent, freq)}
	}

	ranked := make([]sentenceScore, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	var kept []sentenceScore
	tokenBudget := maxSummaryTokens
	for _, s := range ranked {
		n := len(wordRe.FindAllString(s.sentence, -1))
		if n == 0 {
			continue
		}
		if len(kept) > 0 && tokenBudget-n < 0 {
			continue
		}
		kept = append(kept, s)
		tokenBudget -= n
		if tokenBudget <= 0 {
			break
		}
	}
	if len(kept) == 0 {
		kept = []sentenceScore{scored[0]}
	}

	sort.Slice(kept, func(a, b int) bool { return kept[a].index < kept[b].index })
	out := make([]string, len(kept))
	for i, s := range kept {
		out[i] = s.sentence
	}
	return strings.Join(out, " ")
}

type sentenceScore struct {
	index    int
	sentence string
	score    float64
}

func splitSentences(text string) []string {
	raw := sentenceSplitRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func wordFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		freq[w]++
	}
	return freq
}

func scoreSentence(sentence string, freq map[string]int) float64 {
	words := wordRe.FindAllString(strings.ToLower(sentence), -1)
	if len(words) == 0 {
		return 0
	}
	var total float64
	for _, w := range words {
		total += float64(freq[w])
	}
	return total / float64(len(words))
}
