package runcontroller

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/internal/storage"
	"github.com/AteetVatan/masx-geosignal/pkg/alert"
	"github.com/AteetVatan/masx-geosignal/pkg/cluster"
	"github.com/AteetVatan/masx-geosignal/pkg/dedupe"
	"github.com/AteetVatan/masx-geosignal/pkg/embed"
	"github.com/AteetVatan/masx-geosignal/pkg/enrich"
	"github.com/AteetVatan/masx-geosignal/pkg/extractor"
	"github.com/AteetVatan/masx-geosignal/pkg/fetcher"
	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/model"
	"github.com/AteetVatan/masx-geosignal/pkg/scorer"
	"github.com/AteetVatan/masx-geosignal/pkg/summarizer"
)

// fetchQueueDepth bounds the queue between the fetch producers and the
// extract consumer. When the extractor falls behind, producers block on the
// full queue, which throttles upstream fetch concurrency.
const fetchQueueDepth = 64

// fetchAndExtractStage runs fetch and extract as decoupled stages joined by
// a bounded queue: up to MaxConcurrentFetches producer goroutines fetch
// concurrently (driving real contention into the fetcher's global and
// per-host semaphores) and hand successfully-fetched entries to a single
// consumer that runs the pure extraction cascade. Failures are recorded per
// entry and do not abort the batch.
func (c *Controller) fetchAndExtractStage(ctx context.Context, runID string, work []*entryWork) {
	queue := make(chan *entryWork, fetchQueueDepth)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for w := range queue {
			c.extractEntry(ctx, runID, w)
		}
	}()

	var producers errgroup.Group
	producers.SetLimit(c.ioLimit())
	for _, w := range work {
		producers.Go(func() error {
			if !c.fetchEntry(ctx, runID, w) {
				return nil
			}
			select {
			case queue <- w:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = producers.Wait()
	close(queue)
	<-consumerDone
}

// fetchEntry fetches one entry's document, reporting whether it is ready
// for extraction.
func (c *Controller) fetchEntry(ctx context.Context, runID string, w *entryWork) bool {
	now := time.Now()
	res, err := c.fetcher.Fetch(ctx, w.entry.URL)
	metrics.RecordFetch(fetchOutcome(err), time.Since(now))
	if err != nil {
		w.failed = true
		w.reason = fetchFailureReason(err)
		_ = c.jobs.Fail(ctx, runID, w.entry.EntryID, w.reason)
		metrics.RecordEntryFailure(string(w.reason))
		return false
	}
	w.fetched = res
	_ = c.jobs.AdvanceStage(ctx, runID, w.entry.EntryID, model.JobFetching, "fetched_at", now)
	return true
}

// extractEntry runs the extraction cascade (and, when applicable, the
// browser fallback) over one fetched entry. The raw body is released
// afterwards so only queued entries hold fetched documents in memory.
func (c *Controller) extractEntry(ctx context.Context, runID string, w *entryWork) {
	extracted, err := c.cascade.Extract(w.fetched.Body, w.fetched.FinalURL)
	if err != nil {
		extracted, err = c.browserFallback(ctx, w.entry.URL, err)
	}
	w.fetched = nil
	if err != nil {
		var xf *extractor.ExtractFailure
		reason := model.ReasonParseError
		if errors.As(err, &xf) {
			reason = xf.Reason
		}
		w.failed = true
		w.reason = reason
		_ = c.jobs.Fail(ctx, runID, w.entry.EntryID, reason)
		metrics.RecordEntryFailure(string(reason))
		return
	}
	w.extracted = extracted
	w.entry.Content = &extracted.Text
	metrics.RecordExtractionMethod(string(extracted.Method))
	_ = c.jobs.RecordExtraction(ctx, runID, w.entry.EntryID, extracted.Method, time.Now())
}

// browserFallback reroutes a js_required or consent_wall extraction failure
// through the headless-browser fetcher, when one is configured. Any failure
// on the browser path reports the original extraction failure, which is the
// more accurate record of why the plain fetch was unusable.
func (c *Controller) browserFallback(ctx context.Context, rawURL string, extractErr error) (*extractor.Result, error) {
	if c.browser == nil || !c.cfg.Fetcher.PlaywrightEnabled {
		return nil, extractErr
	}
	var xf *extractor.ExtractFailure
	if !errors.As(extractErr, &xf) {
		return nil, extractErr
	}
	if xf.Reason != model.ReasonJSRequired && xf.Reason != model.ReasonConsentWall {
		return nil, extractErr
	}

	res, err := c.browser.Fetch(ctx, rawURL)
	if err != nil {
		return nil, extractErr
	}
	extracted, err := c.cascade.Extract(res.Body, res.FinalURL)
	if err != nil {
		return nil, extractErr
	}
	return extracted, nil
}

func fetchOutcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ioLimit is the I/O scheduler's concurrency bound, shared by the fetch
// producers and the enrich stage's network sub-stages. A misconfigured
// non-positive cap degrades to sequential dispatch rather than deadlocking
// the errgroup.
func (c *Controller) ioLimit() int {
	if n := c.cfg.Fetcher.MaxConcurrentFetches; n > 0 {
		return n
	}
	return 1
}

// enrichStage runs language detection, optional title translation, hostname
// derivation, optional NER tagging, and geo resolution for every
// successfully-extracted entry. The translate and NER sub-stages are
// network calls, so entries are dispatched through the same bounded I/O
// scheduler the fetch stage uses; each goroutine owns its entry outright.
func (c *Controller) enrichStage(ctx context.Context, runID string, work []*entryWork) {
	var g errgroup.Group
	g.SetLimit(c.ioLimit())
	for _, w := range work {
		if w.failed || w.extracted == nil {
			continue
		}
		g.Go(func() error {
			c.enrichEntry(ctx, w)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Controller) enrichEntry(ctx context.Context, w *entryWork) {
	w.entry.Hostname = strPtr(enrich.DeriveHostname(w.entry.URL))

	lang := enrich.DetectLanguage(w.extracted.Text)
	if lang.Code != "unknown" {
		w.entry.Language = lang.Code
	}

	translator := c.translate
	if translator == nil {
		translator = enrich.NoopTranslator{}
	}
	titleEN := enrich.TranslateTitleOrFallback(ctx, translator, w.entry.Title, w.entry.Language, c.logger)
	w.entry.TitleEN = &titleEN

	var entities model.NEREntities
	if c.ner != nil {
		if tagged, err := enrich.Tag(ctx, c.ner, w.extracted.Text); err == nil {
			entities = tagged
		}
	}
	w.entry.Entities = &entities
	w.entry.GeoEntities = enrich.ResolveGeo(entities)

	if topic, err := enrich.ClassifyIfEnabled(ctx, c.cfg.Topic.Enabled, c.topic, w.entry.EntryID, w.extracted.Text); err != nil {
		c.logger.WithError(err).WithField("entry_id", w.entry.EntryID).Warn("topic classification failed")
	} else if topic != nil && c.topics != nil {
		if err := c.topics.Upsert(ctx, topic); err != nil {
			c.logger.WithError(err).WithField("entry_id", w.entry.EntryID).Warn("failed to persist topic")
		}
	}
}

// dedupeStage runs the two-level exact-then-near duplicate detector across
// every successfully-extracted entry in this run's batch.
func (c *Controller) dedupeStage(ctx context.Context, runID string, work []*entryWork) {
	candidates := make([]dedupe.Candidate, 0, len(work))
	index := make(map[string]*entryWork, len(work))
	for _, w := range work {
		if w.failed || w.extracted == nil {
			continue
		}
		candidates = append(candidates, dedupe.Candidate{EntryID: w.entry.EntryID, Text: w.extracted.Text})
		index[w.entry.EntryID] = w
	}

	verdicts := dedupe.Dedupe(candidates, c.cfg.Dedupe)
	for _, v := range verdicts {
		w := index[v.EntryID]
		w.contentHash = v.ContentHash
		w.minHash = v.MinHashSignature
		w.isDuplicate = v.IsDuplicate
		w.duplicateOf = v.DuplicateOfEntryID

		var dup *string
		if v.IsDuplicate {
			dup = &v.DuplicateOfEntryID
			metrics.RecordDuplicate()
		}
		_ = c.jobs.RecordDedupe(ctx, runID, v.EntryID, v.ContentHash, []uint64(v.MinHashSignature), v.IsDuplicate, dup, time.Now())
	}
}

// writeBackStage persists every successfully-extracted entry's enrichment
// columns, including duplicates (whose content is still written back so
// content IS NULL remains an accurate cross-run resume marker).
func (c *Controller) writeBackStage(ctx context.Context, table, runID string, work []*entryWork) error {
	for _, w := range work {
		if w.failed || w.extracted == nil {
			continue
		}
		e := storage.Enrichment{
			EntryID:     w.entry.EntryID,
			Hostname:    derefStr(w.entry.Hostname),
			Content:     w.extracted.Text,
			TitleEN:     derefStr(w.entry.TitleEN),
			Images:      w.entry.Images,
			GeoEntities: w.entry.GeoEntities,
		}
		if w.entry.Entities != nil {
			e.Entities = *w.entry.Entities
		}
		if c.transform != nil {
			compressed, err := c.transform.Compress([]byte(w.extracted.Text))
			if err != nil {
				c.logger.WithError(err).WithField("entry_id", w.entry.EntryID).Warn("failed to compress content")
			} else {
				e.CompressedContent = compressed
			}
		}
		if err := c.entries.WriteEnrichment(ctx, table, e); err != nil {
			c.logger.WithError(err).WithField("entry_id", w.entry.EntryID).Warn("failed to write enrichment")
		}
	}
	return nil
}

// embedStage embeds and persists vectors for every non-duplicate
// successfully-extracted entry, skipping the content-addressed store when a
// current vector already exists for that entry_id.
func (c *Controller) embedStage(ctx context.Context, runID string, work []*entryWork) error {
	if c.embedder == nil {
		return nil
	}
	var toEmbed []*entryWork
	for _, w := range work {
		if w.failed || w.isDuplicate || w.extracted == nil {
			continue
		}
		if existing, ok, err := c.vectors.Get(ctx, w.entry.EntryID); err == nil && ok {
			w.vector = existing.Vector
			continue
		}
		toEmbed = append(toEmbed, w)
	}
	if len(toEmbed) == 0 {
		return nil
	}

	texts := make([]string, len(toEmbed))
	for i, w := range toEmbed {
		texts[i] = w.extracted.Text
	}
	vectors, err := embed.BatchEmbed(ctx, c.embedder, texts, c.cfg.Embedding.BatchSize)
	if err != nil {
		return err
	}
	for i, w := range toEmbed {
		w.vector = vectors[i]
		ev := &model.EntryVector{EntryID: w.entry.EntryID, Vector: w.vector, Model: "geosignal-embedder"}
		if err := c.vectors.Upsert(ctx, ev); err != nil {
			c.logger.WithError(err).WithField("entry_id", w.entry.EntryID).Warn("failed to persist vector")
		}
		_ = c.jobs.AdvanceStage(ctx, runID, w.entry.EntryID, model.JobEmbedded, "embedded_at", time.Now())
	}
	return nil
}

// flashpointClusters groups one flashpoint's connected-component clusters
// alongside the entryWork each member came from, for downstream
// summarization and scoring.
type flashpointClusters struct {
	flashpointID string
	clusters     []cluster.Cluster
}

// clusterStage runs per-flashpoint kNN cosine clustering over every
// non-duplicate entry's vector.
func (c *Controller) clusterStage(ctx context.Context, runID string, work []*entryWork) []flashpointClusters {
	byFlashpoint := make(map[string][]cluster.Vector)
	for _, w := range work {
		if w.failed || w.isDuplicate || w.vector == nil {
			continue
		}
		values := make([]float64, len(w.vector))
		for i, v := range w.vector {
			values[i] = float64(v)
		}
		byFlashpoint[w.entry.FlashpointID] = append(byFlashpoint[w.entry.FlashpointID], cluster.Vector{EntryID: w.entry.EntryID, Values: values})
	}

	out := make([]flashpointClusters, 0, len(byFlashpoint))
	for fpID, vectors := range byFlashpoint {
		clusters := cluster.Cluster(vectors, c.cfg.Cluster)
		metrics.RecordCluster(fpID)
		out = append(out, flashpointClusters{flashpointID: fpID, clusters: clusters})
	}
	for _, w := range work {
		if !w.failed && !w.isDuplicate && w.vector != nil {
			_ = c.jobs.AdvanceStage(ctx, runID, w.entry.EntryID, model.JobClustered, "clustered_at", time.Now())
		}
	}
	return out
}

// summarizeAndScoreStage runs the two-stage summarizer over every cluster
// (gated by tier), scores and flags the top-K, persists the dense-ranked
// output rows, and returns the flagged clusters for alert dispatch.
func (c *Controller) summarizeAndScoreStage(ctx context.Context, runID, entriesTable, outputTable string, groups []flashpointClusters, work []*entryWork) ([]model.ClusterOutput, error) {
	byEntryID := make(map[string]*entryWork, len(work))
	for _, w := range work {
		byEntryID[w.entry.EntryID] = w
	}

	var stats []scorer.ClusterStats
	var inputs []summarizer.ClusterInput
	var outMeta []model.ClusterOutput

	for _, g := range groups {
		for _, cl := range g.clusters {
			var articles []summarizer.Article
			var domains, langs []string
			var urls, images []string
			var seenDates []time.Time
			for _, entryID := range cl.EntryIDs {
				w, ok := byEntryID[entryID]
				if !ok || w.extracted == nil {
					continue
				}
				articles = append(articles, summarizer.Article{EntryID: entryID, Text: w.extracted.Text})
				domains = append(domains, w.entry.Domain)
				langs = append(langs, w.entry.Language)
				urls = append(urls, w.entry.URL)
				images = append(images, w.entry.Images...)
				seenDates = append(seenDates, w.entry.SeenAt)
			}

			// cluster_uuid is a fresh opaque identity scoped to this run's
			// clustering pass, distinct from the dense-ranked cluster_id
			// exposed downstream.
			clusterUUID := uuid.New().String()
			inputs = append(inputs, summarizer.ClusterInput{ClusterUUID: clusterUUID, Articles: articles})
			stats = append(stats, scorer.ClusterStats{
				FlashpointID: g.flashpointID, ClusterID: cl.ClusterID,
				MemberCount: len(cl.EntryIDs), Domains: domains, Languages: langs, SeenDates: seenDates,
			})
			outMeta = append(outMeta, model.ClusterOutput{
				FlashpointID: g.flashpointID, ClusterID: cl.ClusterID,
				ArticleCount: len(cl.EntryIDs), TopDomains: rankByFrequency(domains), Languages: distinct(langs),
				URLs: urls, Images: images, MemberEntryIDs: cl.EntryIDs,
			})
			_ = c.clusters.InsertMembers(ctx, runID, g.flashpointID, clusterUUID, cl.EntryIDs)
		}
	}

	// summarizeAndScoreStage only runs for tiers B and C; runSummarizer
	// drops the oracle entirely at tier B, so a B run's cluster summary is
	// the longest stage-1 local summary, and only tier C calls out to an
	// oracle.
	summaries := c.runSummarizer().SummarizeClusters(ctx, inputs)
	for i, s := range summaries {
		outMeta[i].Summary = s.Summary
		for _, r := range s.StageOne {
			if r.Summary == "" {
				continue
			}
			if err := c.entries.UpdateSummary(ctx, entriesTable, r.EntryID, r.Summary); err != nil {
				c.logger.WithError(err).WithField("entry_id", r.EntryID).Warn("failed to persist entry summary")
			}
		}
	}

	scores := scorer.ScoreAll(stats, c.cfg.Scorer)
	scoreByKey := make(map[string]scorer.Score, len(scores))
	for _, s := range scores {
		scoreByKey[s.FlashpointID+"-"+strconv.Itoa(s.ClusterID)] = s
	}

	for i := range outMeta {
		key := outMeta[i].FlashpointID + "-" + strconv.Itoa(outMeta[i].ClusterID)
		if s, ok := scoreByKey[key]; ok {
			outMeta[i].Score = s.Value
			outMeta[i].Flagged = s.Flagged
		}
		outMeta[i].CreatedAt = time.Now()
		if err := c.clusters.InsertOutput(ctx, outputTable, outMeta[i]); err != nil {
			c.logger.WithError(err).WithField("cluster_id", outMeta[i].ClusterID).Warn("failed to persist cluster output")
		}
	}

	for _, w := range work {
		if !w.failed && !w.isDuplicate && w.vector != nil {
			_ = c.jobs.AdvanceStage(ctx, runID, w.entry.EntryID, model.JobSummarized, "summarized_at", time.Now())
			_ = c.jobs.AdvanceStage(ctx, runID, w.entry.EntryID, model.JobScored, "scored_at", time.Now())
			metrics.RecordEntryProcessed("processed")
		} else if w.isDuplicate {
			metrics.RecordEntryProcessed("skipped_duplicate")
		}
	}

	return outMeta, nil
}

func (c *Controller) runSummarizer() *summarizer.Summarizer {
	// Tier B is local-summary-only; only tier C engages the oracle and its
	// premium pass.
	oracle := c.oracle
	premium := c.premium
	if c.cfg.Pipeline.Tier != config.TierC {
		oracle = nil
		premium = nil
	}
	return summarizer.NewSummarizer(c.local, oracle, premium, c.cfg.Summarizer.PremiumPassFraction, c.logger)
}

// dispatchAlerts submits every flagged cluster to the configured
// Dispatcher, a no-op when alerting is disabled.
func (c *Controller) dispatchAlerts(ctx context.Context, runID string, outputs []model.ClusterOutput) {
	if !c.cfg.Alert.Enabled {
		return
	}
	var flagged []alert.ClusterPayload
	for _, o := range outputs {
		if !o.Flagged {
			continue
		}
		flagged = append(flagged, alert.ClusterPayload{
			FlashpointID: o.FlashpointID, ClusterID: o.ClusterID, Score: o.Score,
			Summary: o.Summary, ArticleCount: o.ArticleCount, TopDomains: o.TopDomains,
		})
	}
	if len(flagged) == 0 {
		return
	}
	if err := c.dispatch.Dispatch(ctx, runID, flagged); err != nil {
		c.logger.WithError(err).Warn("failed to dispatch alerts")
		return
	}
	metrics.RecordAlertDispatched()
}

func fetchFailureReason(err error) model.FailureReason {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return model.ReasonUnknown
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// rankByFrequency returns the distinct values in values, ordered by
// occurrence count descending with a name-ascending tie-break for
// determinism, so "top_domains" actually reflects prevalence within the
// cluster rather than first-seen order.
func rankByFrequency(values []string) []string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
	}
	out := make([]string, 0, len(counts))
	for v := range counts {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

