package runcontroller_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/internal/runcontroller"
	"github.com/AteetVatan/masx-geosignal/internal/storage"
	"github.com/AteetVatan/masx-geosignal/pkg/embed"
	"github.com/AteetVatan/masx-geosignal/pkg/extractor"
	"github.com/AteetVatan/masx-geosignal/pkg/fetcher"
	"github.com/AteetVatan/masx-geosignal/pkg/model"
	"github.com/AteetVatan/masx-geosignal/pkg/summarizer"
)

var sqlErrNoRows = sql.ErrNoRows

func summarizerLocal(cfg *config.Config) *summarizer.LocalSummarizer {
	return summarizer.NewLocalSummarizer(cfg.Summarizer.LocalWorkers)
}

func TestRunController(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RunController Suite")
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Result, error) {
	return &fetcher.Result{Body: []byte("<html><body>a long enough article body for the cascade to accept as real content, well past the minimum length threshold configured for this test run.</body></html>"), Status: 200, FinalURL: rawURL}, nil
}

type fakeCascade struct{}

func (fakeCascade) Extract(body []byte, pageURL string) (*extractor.Result, error) {
	return &extractor.Result{Text: string(body), Method: model.MethodReadabilityLike, Length: len(body)}, nil
}

// jsShellCascade fails plain-fetch bodies with js_required and accepts
// anything containing the rendered marker, so the browser fallback path can
// be driven without a real rendering sidecar.
type jsShellCascade struct{}

func (jsShellCascade) Extract(body []byte, pageURL string) (*extractor.Result, error) {
	text := string(body)
	if !strings.Contains(text, "rendered") {
		return nil, &extractor.ExtractFailure{URL: pageURL, Reason: model.ReasonJSRequired}
	}
	return &extractor.Result{Text: text, Method: model.MethodReadabilityLike, Length: len(text)}, nil
}

type renderedFetcher struct{}

func (renderedFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Result, error) {
	return &fetcher.Result{Body: []byte("rendered single-page application content, long enough to pass the cascade threshold in this suite."), Status: 200, FinalURL: rawURL}, nil
}

// concurrencyTrackingFetcher records the peak number of simultaneous Fetch
// calls it observes, so the dispatch path's fan-out can be asserted from
// the caller side.
type concurrencyTrackingFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *concurrencyTrackingFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Result, error) {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	f.inFlight.Add(-1)
	return &fetcher.Result{Body: []byte("a long enough article body for the cascade to accept as real content, well past the minimum length threshold configured for this test run."), Status: 200, FinalURL: rawURL}, nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Dimension() int { return f.dim }
func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline:  config.PipelineConfig{Tier: config.TierA, MaxSelectEntries: 100, AbandonedRunAfter: 2 * time.Hour},
		Dedupe:    config.DedupeConfig{MinHashThreshold: 0.8, ShingleSize: 5, NumHashes: 16},
		Cluster:   config.ClusterConfig{KNNK: 10, CosineThreshold: 0.5},
		Scorer: config.ScorerConfig{
			WeightMemberCount: 0.4, WeightDomainDiversity: 0.25, WeightLangDiversity: 0.15, WeightBurstiness: 0.2, TopK: 10,
		},
		Summarizer: config.SummarizerConfig{LocalWorkers: 2, PremiumPassFraction: 0},
		Alert:      config.AlertConfig{Enabled: false},
	}
}

var _ = Describe("Controller.Run", func() {
	var (
		logger *logrus.Logger
		mock   sqlmock.Sqlmock
		db     *sqlx.DB
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)

		mockDB, m, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		mock = m
		mock.MatchExpectationsInOrder(false)
		db = sqlx.NewDb(mockDB, "postgres")
	})

	It("processes a single unprocessed entry end to end at tier B", func() {
		targetDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

		entryRows := sqlmock.NewRows([]string{"entry_id", "url", "title", "language", "domain", "flashpoint_id", "seen_at"}).
			AddRow("entry-1", "https://example.com/a", "A Title", "en", "example.com", "fp-1", time.Now())
		mock.ExpectQuery("SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at").WillReturnRows(entryRows)

		fpRows := sqlmock.NewRows([]string{"flashpoint_id", "title", "description", "domain_hints"})
		mock.ExpectQuery("SELECT flashpoint_id, title, description, domain_hints").WillReturnRows(fpRows)

		mock.ExpectExec("INSERT INTO feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		for i := 0; i < 7; i++ {
			mock.ExpectExec("UPDATE feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec("feed_entries_").WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery("SELECT entry_id, vector, model, updated_at FROM feed_entry_vectors").WillReturnError(sqlErrNoRows)
		mock.ExpectExec("INSERT INTO feed_entry_vectors").WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM cluster_members").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO cluster_members").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectExec("UPDATE feed_entries_.* SET summary").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("news_clusters_").WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))

		cfg := testConfig()
		cfg.Pipeline.Tier = config.TierB
		ctrl := runcontroller.New(
			cfg, logger,
			storage.NewRunRepository(db),
			storage.NewJobRepository(db),
			storage.NewEntriesRepository(db),
			storage.NewFlashpointsRepository(db),
			storage.NewClustersRepository(db),
			embed.NewStore(db, nil, 0),
			storage.NewTopicsRepository(db),
			fakeFetcher{},
			fakeCascade{},
			fakeEmbedder{dim: 3},
			nil, nil,
			summarizerLocal(cfg),
			nil, nil, nil,
			nil,
		)

		err := ctrl.Run(context.Background(), targetDate)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("skips embedding and clustering at tier A, leaving no vector or cluster rows", func() {
		targetDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

		entryRows := sqlmock.NewRows([]string{"entry_id", "url", "title", "language", "domain", "flashpoint_id", "seen_at"}).
			AddRow("entry-1", "https://example.com/a", "A Title", "en", "example.com", "fp-1", time.Now())
		mock.ExpectQuery("SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at").WillReturnRows(entryRows)

		fpRows := sqlmock.NewRows([]string{"flashpoint_id", "title", "description", "domain_hints"})
		mock.ExpectQuery("SELECT flashpoint_id, title, description, domain_hints").WillReturnRows(fpRows)

		mock.ExpectExec("INSERT INTO feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		// fetched_at, extraction_method, and dedupe verdict advance at tier A;
		// no embedded/clustered/summarized/scored transitions are recorded.
		for i := 0; i < 3; i++ {
			mock.ExpectExec("UPDATE feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec("feed_entries_").WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))

		cfg := testConfig()
		ctrl := runcontroller.New(
			cfg, logger,
			storage.NewRunRepository(db),
			storage.NewJobRepository(db),
			storage.NewEntriesRepository(db),
			storage.NewFlashpointsRepository(db),
			storage.NewClustersRepository(db),
			embed.NewStore(db, nil, 0),
			storage.NewTopicsRepository(db),
			fakeFetcher{},
			fakeCascade{},
			fakeEmbedder{dim: 3},
			nil, nil,
			summarizerLocal(cfg),
			nil, nil, nil,
			nil,
		)

		err := ctrl.Run(context.Background(), targetDate)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("reroutes a js_required extraction failure through the browser fallback", func() {
		targetDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

		entryRows := sqlmock.NewRows([]string{"entry_id", "url", "title", "language", "domain", "flashpoint_id", "seen_at"}).
			AddRow("entry-1", "https://example.com/spa", "A Title", "en", "example.com", "fp-1", time.Now())
		mock.ExpectQuery("SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at").WillReturnRows(entryRows)

		fpRows := sqlmock.NewRows([]string{"flashpoint_id", "title", "description", "domain_hints"})
		mock.ExpectQuery("SELECT flashpoint_id, title, description, domain_hints").WillReturnRows(fpRows)

		mock.ExpectExec("INSERT INTO feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		for i := 0; i < 3; i++ {
			mock.ExpectExec("UPDATE feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec("feed_entries_").WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))

		cfg := testConfig()
		cfg.Fetcher.PlaywrightEnabled = true
		ctrl := runcontroller.New(
			cfg, logger,
			storage.NewRunRepository(db),
			storage.NewJobRepository(db),
			storage.NewEntriesRepository(db),
			storage.NewFlashpointsRepository(db),
			storage.NewClustersRepository(db),
			embed.NewStore(db, nil, 0),
			storage.NewTopicsRepository(db),
			fakeFetcher{},
			jsShellCascade{},
			fakeEmbedder{dim: 3},
			nil, nil,
			summarizerLocal(cfg),
			nil, nil, nil,
			nil,
		).WithBrowser(renderedFetcher{})

		err := ctrl.Run(context.Background(), targetDate)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("dispatches fetches concurrently up to the configured cap", func() {
		targetDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
		const entries = 8
		const fetchCap = 4

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

		entryRows := sqlmock.NewRows([]string{"entry_id", "url", "title", "language", "domain", "flashpoint_id", "seen_at"})
		for i := 0; i < entries; i++ {
			entryRows.AddRow(fmt.Sprintf("entry-%d", i), fmt.Sprintf("https://example.com/%d", i), "A Title", "en", "example.com", "fp-1", time.Now())
		}
		mock.ExpectQuery("SELECT entry_id, url, title, language, domain, flashpoint_id, seen_at").WillReturnRows(entryRows)

		fpRows := sqlmock.NewRows([]string{"flashpoint_id", "title", "description", "domain_hints"})
		mock.ExpectQuery("SELECT flashpoint_id, title, description, domain_hints").WillReturnRows(fpRows)

		for i := 0; i < entries; i++ {
			mock.ExpectExec("INSERT INTO feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
			for j := 0; j < 3; j++ {
				mock.ExpectExec("UPDATE feed_entry_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectExec("feed_entries_").WillReturnResult(sqlmock.NewResult(0, 1))
		}

		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE processing_runs").WillReturnResult(sqlmock.NewResult(0, 1))

		cfg := testConfig()
		cfg.Fetcher.MaxConcurrentFetches = fetchCap
		tracker := &concurrencyTrackingFetcher{}
		ctrl := runcontroller.New(
			cfg, logger,
			storage.NewRunRepository(db),
			storage.NewJobRepository(db),
			storage.NewEntriesRepository(db),
			storage.NewFlashpointsRepository(db),
			storage.NewClustersRepository(db),
			embed.NewStore(db, nil, 0),
			storage.NewTopicsRepository(db),
			tracker,
			fakeCascade{},
			fakeEmbedder{dim: 3},
			nil, nil,
			summarizerLocal(cfg),
			nil, nil, nil,
			nil,
		)

		err := ctrl.Run(context.Background(), targetDate)
		Expect(err).NotTo(HaveOccurred())
		Expect(int(tracker.peak.Load())).To(BeNumerically(">", 1), "fetches should overlap")
		Expect(int(tracker.peak.Load())).To(BeNumerically("<=", fetchCap))
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})
