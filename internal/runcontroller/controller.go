// Package runcontroller owns the top-level run(target_date, tier)
// orchestration: opening a ProcessingRun, resolving the date-partitioned
// table set, dispatching the per-entry job state machine across every
// stage, per-flashpoint clustering and scoring, and closing the run.
package runcontroller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/internal/storage"
	"github.com/AteetVatan/masx-geosignal/pkg/alert"
	"github.com/AteetVatan/masx-geosignal/pkg/compress"
	"github.com/AteetVatan/masx-geosignal/pkg/dedupe"
	"github.com/AteetVatan/masx-geosignal/pkg/embed"
	"github.com/AteetVatan/masx-geosignal/pkg/enrich"
	"github.com/AteetVatan/masx-geosignal/pkg/extractor"
	"github.com/AteetVatan/masx-geosignal/pkg/fetcher"
	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/model"
	sharederrors "github.com/AteetVatan/masx-geosignal/pkg/shared/errors"
	"github.com/AteetVatan/masx-geosignal/pkg/summarizer"
)

// contentFetcher is the subset of *fetcher.Fetcher the controller needs;
// narrowed to an interface so tests can substitute a fake without standing
// up real HTTP admission control.
type contentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// contentExtractor is the subset of *extractor.Cascade the controller
// needs.
type contentExtractor interface {
	Extract(body []byte, pageURL string) (*extractor.Result, error)
}

// Controller wires every pipeline stage into the run(target_date, tier)
// operation.
type Controller struct {
	cfg    *config.Config
	logger *logrus.Logger

	runs        *storage.RunRepository
	jobs        *storage.JobRepository
	entries     *storage.EntriesRepository
	flashpoints *storage.FlashpointsRepository
	clusters    *storage.ClustersRepository
	vectors     *embed.Store
	topics      *storage.TopicsRepository

	fetcher   contentFetcher
	browser   contentFetcher
	transform compress.Transform
	cascade   contentExtractor
	embedder  embed.Embedder
	oracle    summarizer.Oracle
	premium   summarizer.Oracle
	local     *summarizer.LocalSummarizer
	translate enrich.TitleTranslator
	ner       enrich.NERTagger
	topic     enrich.TopicClassifier
	dispatch  alert.Dispatcher
}

// New builds a Controller from its fully-wired collaborators. Any
// optional collaborator (translate, ner, topic, premium) may be nil and is
// treated as disabled for that concern.
func New(
	cfg *config.Config,
	logger *logrus.Logger,
	runs *storage.RunRepository,
	jobs *storage.JobRepository,
	entries *storage.EntriesRepository,
	flashpoints *storage.FlashpointsRepository,
	clusters *storage.ClustersRepository,
	vectors *embed.Store,
	topics *storage.TopicsRepository,
	fetcher contentFetcher,
	cascade contentExtractor,
	embedder embed.Embedder,
	oracle, premium summarizer.Oracle,
	local *summarizer.LocalSummarizer,
	translate enrich.TitleTranslator,
	ner enrich.NERTagger,
	topic enrich.TopicClassifier,
	dispatch alert.Dispatcher,
) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	if dispatch == nil {
		dispatch = alert.NoopDispatcher{}
	}
	return &Controller{
		cfg: cfg, logger: logger,
		runs: runs, jobs: jobs, entries: entries, flashpoints: flashpoints, clusters: clusters, vectors: vectors, topics: topics,
		fetcher: fetcher, cascade: cascade, embedder: embedder,
		oracle: oracle, premium: premium, local: local,
		translate: translate, ner: ner, topic: topic, dispatch: dispatch,
	}
}

// WithBrowser installs the headless-browser fallback fetcher used for
// entries whose plain-HTTP fetch yields a js_required or consent_wall
// classification. Nil leaves the fallback disabled.
func (c *Controller) WithBrowser(browser contentFetcher) *Controller {
	c.browser = browser
	return c
}

// WithCompression installs the transform applied to extracted bodies before
// the compressed_content write-back. Nil leaves the column null.
func (c *Controller) WithCompression(transform compress.Transform) *Controller {
	c.transform = transform
	return c
}

// entryWork carries one entry through the in-memory stages of a single run;
// its storage-layer persistence happens alongside each stage transition
// rather than in one final batch write, so a crash mid-run leaves the job
// table an accurate record of how far the entry got.
type entryWork struct {
	entry       model.FeedEntry
	fetched     *fetcher.Result
	extracted   *extractor.Result
	minHash     dedupe.Signature
	contentHash string
	isDuplicate bool
	duplicateOf string
	vector      []float32
	failed      bool
	reason      model.FailureReason
}

// Run executes one full pipeline invocation for targetDate at the
// configured tier: sweep abandoned runs, open a new ProcessingRun, select
// and claim unprocessed entries, dispatch every stage gated by tier, and
// close the run as COMPLETED or FAILED.
func (c *Controller) Run(ctx context.Context, targetDate time.Time) (err error) {
	// Per-request deadlines downstream are taken from this context, so they
	// can never outlive the remaining run deadline.
	if c.cfg.Pipeline.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Pipeline.RunDeadline)
		defer cancel()
	}

	if _, sweepErr := c.runs.SweepAbandoned(ctx, c.cfg.Pipeline.AbandonedRunAfter, time.Now().UTC()); sweepErr != nil {
		c.logger.WithError(sweepErr).Warn("failed to sweep abandoned runs")
	}

	tables, err := storage.ResolvePartitionTables(targetDate)
	if err != nil {
		return fmt.Errorf("failed to resolve partition tables: %w", err)
	}

	startedAt := time.Now().UTC()
	runID := storage.NewRunID(startedAt)
	run := &model.ProcessingRun{
		RunID:      runID,
		TargetDate: storage.DatePartition(targetDate),
		Tier:       model.Tier(c.cfg.Pipeline.Tier),
		Status:     model.RunRunning,
		StartedAt:  startedAt,
	}
	if err := c.runs.Open(ctx, run); err != nil {
		return fmt.Errorf("failed to open run: %w", err)
	}

	defer func() {
		status := model.RunCompleted
		msg := ""
		if err != nil {
			status = model.RunFailed
			msg = err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				msg = string(model.ReasonCancelled)
			}
		}
		// The close write must land even when the run context itself is
		// what expired, so it gets its own short deadline.
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if closeErr := c.runs.Complete(closeCtx, runID, status, time.Now().UTC(), msg); closeErr != nil {
			c.logger.WithError(closeErr).Error("failed to close run")
		}
		metrics.RecordRunComplete(string(status), string(c.cfg.Pipeline.Tier), time.Since(startedAt))
	}()

	if err = c.runOnce(ctx, runID, tables); err != nil {
		return err
	}
	return nil
}

func (c *Controller) runOnce(ctx context.Context, runID string, tables storage.PartitionTables) error {
	if err := c.clusters.EnsureOutputTable(ctx, tables.NewsClusters); err != nil {
		return sharederrors.FailedToWithDetails("ensure output table", "runcontroller", tables.NewsClusters, err)
	}

	entries, err := c.entries.SelectUnprocessed(ctx, tables.FeedEntries, c.cfg.Pipeline.MaxSelectEntries)
	if err != nil {
		return sharederrors.FailedToWithDetails("select unprocessed entries", "runcontroller", tables.FeedEntries, err)
	}

	// Flashpoints are read-only upstream data; ListAll is called so an
	// unreadable partition surfaces before any job is claimed, even though
	// the core only consumes each entry's own flashpoint_id column.
	if _, err := c.flashpoints.ListAll(ctx, tables.FlashPoints); err != nil {
		return sharederrors.FailedToWithDetails("list flashpoints", "runcontroller", tables.FlashPoints, err)
	}

	selected := len(entries)
	processed, failed := 0, 0

	work := make([]*entryWork, 0, len(entries))
	for _, e := range entries {
		claimed, claimErr := c.jobs.Claim(ctx, runID, e.EntryID)
		if claimErr != nil {
			c.logger.WithError(claimErr).WithField("entry_id", e.EntryID).Warn("failed to claim job")
			continue
		}
		if !claimed {
			continue
		}
		work = append(work, &entryWork{entry: e})
	}

	c.fetchAndExtractStage(ctx, runID, work)
	c.enrichStage(ctx, runID, work)
	c.dedupeStage(ctx, runID, work)
	if err := c.writeBackStage(ctx, tables.FeedEntries, runID, work); err != nil {
		return err
	}

	// Tier gate: tier A is ingest-only and must leave no vector or cluster
	// rows behind; tiers B and C both embed and cluster, and only tier C
	// engages the oracle (handled inside summarizeAndScoreStage).
	if c.cfg.Pipeline.Tier != config.TierA {
		if err := c.embedStage(ctx, runID, work); err != nil {
			c.logger.WithError(err).Error("embedding stage failed")
		}

		clustersByFlashpoint := c.clusterStage(ctx, runID, work)
		outputs, err := c.summarizeAndScoreStage(ctx, runID, tables.FeedEntries, tables.NewsClusters, clustersByFlashpoint, work)
		if err != nil {
			c.logger.WithError(err).Error("summarize/score stage failed")
		}
		c.dispatchAlerts(ctx, runID, outputs)
	}

	for _, w := range work {
		if w.failed {
			failed++
		} else {
			processed++
		}
	}
	if err := c.runs.UpdateCounters(ctx, runID, selected, processed, failed); err != nil {
		c.logger.WithError(err).Warn("failed to update run counters")
	}
	return nil
}
