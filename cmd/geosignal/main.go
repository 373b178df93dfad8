// Package main is the geosignal CLI entrypoint: a single "run" command that
// executes one pipeline invocation for a target date and tier, plus a
// "serve-metrics" command for standalone observability during development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/AteetVatan/masx-geosignal/internal/config"
	"github.com/AteetVatan/masx-geosignal/internal/runcontroller"
	"github.com/AteetVatan/masx-geosignal/internal/storage"
	"github.com/AteetVatan/masx-geosignal/pkg/alert"
	"github.com/AteetVatan/masx-geosignal/pkg/compress"
	"github.com/AteetVatan/masx-geosignal/pkg/embed"
	"github.com/AteetVatan/masx-geosignal/pkg/enrich"
	"github.com/AteetVatan/masx-geosignal/pkg/extractor"
	"github.com/AteetVatan/masx-geosignal/pkg/fetcher"
	"github.com/AteetVatan/masx-geosignal/pkg/metrics"
	"github.com/AteetVatan/masx-geosignal/pkg/shared/httpclient"
	"github.com/AteetVatan/masx-geosignal/pkg/summarizer"
)

var (
	cfgFile    string
	targetDate string
	tierFlag   string
	logger     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "geosignal",
	Short: "geosignal - multilingual news enrichment and clustering pipeline",
	Long:  `Fetches, enriches, deduplicates, embeds, clusters, summarizes and scores a day's news feed entries.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pipeline invocation for a target date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		configureLogger(cfg.Logging)

		if v := viper.GetString("tier"); v != "" {
			cfg.Pipeline.Tier = config.Tier(v)
		}

		date := time.Now().UTC()
		if targetDate != "" {
			date, err = time.Parse("2006-01-02", targetDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", targetDate, err)
			}
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		ctrl, metricsSrv, err := buildController(cfg)
		if err != nil {
			return fmt.Errorf("failed to build controller: %w", err)
		}
		metricsSrv.StartAsync()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			_ = metricsSrv.Stop(stopCtx)
		}()

		logger.WithField("target_date", date.Format("2006-01-02")).WithField("tier", cfg.Pipeline.Tier).Info("starting run")
		if err := ctrl.Run(ctx, date); err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		logger.Info("run completed")
		return nil
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve the /healthz and /metrics endpoints standalone, without running the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		configureLogger(cfg.Logging)

		srv := metrics.NewServer(cfg.Server.MetricsPort, logger)
		srv.StartAsync()
		logger.WithField("port", cfg.Server.MetricsPort).Info("serving metrics")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		return srv.Stop(stopCtx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the pipeline's YAML config file")
	rootCmd.PersistentFlags().StringVar(&tierFlag, "tier", "", "override the configured pipeline tier (A, B, or C)")
	_ = viper.BindPFlag("tier", rootCmd.PersistentFlags().Lookup("tier"))
	_ = viper.BindEnv("tier", "PIPELINE_TIER")

	runCmd.Flags().StringVar(&targetDate, "date", "", "target date to process, YYYY-MM-DD (default: today, UTC)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func configureLogger(cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// buildController wires every concrete collaborator the run controller
// needs from cfg, selecting the embedding service, oracle provider, and
// optional enrichers/dispatcher per configuration.
func buildController(cfg *config.Config) (*runcontroller.Controller, *metrics.Server, error) {
	db, err := storage.Connect(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	var cache *redis.Client
	if cfg.Cache.Enabled {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr})
	}
	vectors := embed.NewStore(db, cache, cfg.Cache.TTL)

	fetch, err := fetcher.New(cfg.Fetcher, nil, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build fetcher: %w", err)
	}
	cascade := extractor.NewCascade(cfg.Extractor.MinContentLength)

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	oracle, premium, err := buildOracles(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build summarizer oracles: %w", err)
	}
	local := summarizer.NewLocalSummarizer(cfg.Summarizer.LocalWorkers)

	var translate enrich.TitleTranslator
	if cfg.Pipeline.Tier != config.TierA && cfg.Oracle.APIKey != "" {
		translate = enrich.NewAnthropicTitleTranslator(cfg.Oracle.APIKey, cfg.Oracle.Model, logger)
	}

	var ner enrich.NERTagger
	if cfg.NER.Endpoint != "" {
		ner = enrich.NewHTTPNERTagger(cfg.NER.Endpoint, httpclient.NewClientWithTimeout(cfg.NER.Timeout))
	}

	var dispatch alert.Dispatcher = alert.NoopDispatcher{}
	if cfg.Alert.Enabled {
		dispatch = alert.NewSlackDispatcher(cfg.Alert.SlackWebhookURL)
	}

	ctrl := runcontroller.New(
		cfg, logger,
		storage.NewRunRepository(db),
		storage.NewJobRepository(db),
		storage.NewEntriesRepository(db),
		storage.NewFlashpointsRepository(db),
		storage.NewClustersRepository(db),
		vectors,
		storage.NewTopicsRepository(db),
		fetch,
		cascade,
		embedder,
		oracle, premium,
		local,
		translate,
		ner,
		buildTopicClassifier(cfg.Topic),
		dispatch,
	)

	if cfg.Fetcher.PlaywrightEnabled && cfg.Fetcher.BrowserEndpoint != "" {
		ctrl.WithBrowser(fetcher.NewBrowserFetcher(cfg.Fetcher.BrowserEndpoint, nil))
	}
	if cfg.Compression.Enabled {
		ctrl.WithCompression(compress.NewGzip(cfg.Compression.Level))
	}

	metricsSrv := metrics.NewServer(cfg.Server.MetricsPort, logger)
	return ctrl, metricsSrv, nil
}

func buildEmbedder(cfg config.EmbeddingConfig) (embed.Embedder, error) {
	switch cfg.Service {
	case "", "local":
		return embed.NewLocalEmbeddingService(cfg.Dimension, logger), nil
	case "openai":
		llm, err := openai.New()
		if err != nil {
			return nil, fmt.Errorf("failed to build openai client: %w", err)
		}
		inner, err := embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("failed to build langchain embedder: %w", err)
		}
		return embed.NewLangchainEmbedder(inner, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding service: %q", cfg.Service)
	}
}

// buildOracles selects the standard oracle (tiers B and C) per
// cfg.Oracle.Provider, and a Bedrock-hosted premium oracle for tier C's
// top-cluster resubmission pass.
func buildOracles(cfg *config.Config) (standard, premium summarizer.Oracle, err error) {
	if cfg.Pipeline.Tier == config.TierA {
		return nil, nil, nil
	}

	switch cfg.Oracle.Provider {
	case "", "anthropic":
		standard = summarizer.NewAnthropicOracle(cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.MaxTokens, cfg.Oracle.Temperature, logger)
	case "bedrock":
		client, berr := buildBedrockClient(cfg.Oracle.Region)
		if berr != nil {
			return nil, nil, berr
		}
		standard = summarizer.NewBedrockOracle(client, cfg.Oracle.Model, cfg.Oracle.MaxTokens, cfg.Oracle.Temperature, logger)
	default:
		return nil, nil, fmt.Errorf("unsupported oracle provider: %q", cfg.Oracle.Provider)
	}

	if cfg.Pipeline.Tier == config.TierC {
		client, berr := buildBedrockClient(cfg.Oracle.Region)
		if berr != nil {
			return nil, nil, berr
		}
		premium = summarizer.NewBedrockOracle(client, cfg.Oracle.PremiumModel, cfg.Oracle.MaxTokens, cfg.Oracle.Temperature, logger)
	}
	return standard, premium, nil
}

// buildTopicClassifier returns the keyword-taxonomy classifier when the
// optional topic enricher is enabled, nil otherwise (ClassifyIfEnabled
// no-ops on either a disabled config or a nil classifier).
func buildTopicClassifier(cfg config.TopicConfig) enrich.TopicClassifier {
	if !cfg.Enabled {
		return nil
	}
	return enrich.NewKeywordTopicClassifier()
}

func buildBedrockClient(region string) (*bedrockruntime.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
