package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joanies-kitchen/recipes-cli/internal/config"
	"github.com/joanies-kitchen/recipes-cli/internal/model"
	"github.com/joanies-kitchen/recipes-cli/internal/normalize"
	"github.com/joanies-kitchen/recipes-cli/internal/pipeline"
	"github.com/joanies-kitchen/recipes-cli/internal/scorer"
	"github.com/joanies-kitchen/recipes-cli/internal/source"
	"github.com/joanies-kitchen/recipes-cli/internal/taxonomy"
	anthropicpkg "github.com/joanies-kitchen/recipes-cli/pkg/anthropic"
)

var (
	ingestSource string
	ingestApply  bool
	ingestLimit  int
	ingestOffset int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingestion pipeline for one source",
	Long:  "Pulls records from the named source, normalizes, deduplicates, enriches, and commits them in batches. Without --apply the run is a dry run: the full report is produced but nothing is written.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		src, ok := model.ParseSource(ingestSource)
		if !ok {
			return eris.Errorf("unknown source %q (want csv_dump, scraped_json, or partner_api)", ingestSource)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		adapter, err := source.ForSource(src, cfg.Sources)
		if err != nil {
			return err
		}

		tax, err := loadTaxonomy()
		if err != nil {
			return err
		}
		extractor, err := taxonomy.New(tax)
		if err != nil {
			return eris.Wrap(err, "compile taxonomy")
		}

		normalizer := normalize.New(normalize.Thresholds{
			EasyMaxIngredients: cfg.Ingest.EasyMaxIngredients,
			EasyMaxSteps:       cfg.Ingest.EasyMaxSteps,
			HardMinIngredients: cfg.Ingest.HardMinIngredients,
			HardMinSteps:       cfg.Ingest.HardMinSteps,
		})

		opts := pipeline.Options{
			Source:         src,
			Limit:          ingestLimit,
			Offset:         ingestOffset,
			DryRun:         !ingestApply,
			BatchSize:      cfg.Ingest.BatchSize,
			ChunkSize:      cfg.Ingest.ChunkSize,
			ScoringEnabled: cfg.Ingest.ScoringEnabled,
			RateLimitMs:    cfg.Ingest.RateLimitMs,
			Workers:        cfg.Ingest.Workers,
			HeadWords:      cfg.Ingest.HeadWords,
		}
		if v, _ := cmd.Flags().GetInt("batch-size"); cmd.Flags().Changed("batch-size") {
			opts.BatchSize = v
		}
		if v, _ := cmd.Flags().GetInt("workers"); cmd.Flags().Changed("workers") {
			opts.Workers = v
		}
		if cmd.Flags().Changed("no-scoring") {
			opts.ScoringEnabled = false
		}

		var qs pipeline.QualityScorer
		if opts.ScoringEnabled {
			if cfg.Anthropic.Key == "" {
				return eris.New("anthropic API key is required for scoring (RECIPES_ANTHROPIC_KEY); pass --no-scoring to skip")
			}
			qs = scorer.New(anthropicpkg.NewClient(cfg.Anthropic.Key), scorerConfig(cfg.Anthropic))
		}

		p, err := pipeline.New(opts, st, adapter, normalizer, extractor, qs)
		if err != nil {
			return err
		}

		report, runErr := p.Run(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode report")
		}

		if runErr != nil {
			return eris.Wrap(runErr, "ingest")
		}
		return nil
	},
}

func scorerConfig(a config.AnthropicConfig) scorer.Config {
	sc := scorer.DefaultConfig(a.Model)
	if a.MaxTokens > 0 {
		sc.MaxTokens = a.MaxTokens
	}
	if a.MaxAttempts > 0 {
		sc.MaxAttempts = a.MaxAttempts
	}
	if a.TimeoutSecs > 0 {
		sc.CallTimeout = time.Duration(a.TimeoutSecs) * time.Second
	}
	return sc
}

func loadTaxonomy() (*taxonomy.Taxonomy, error) {
	if cfg.Taxonomy.Path != "" {
		zap.L().Info("loading taxonomy file", zap.String("path", cfg.Taxonomy.Path))
		return taxonomy.LoadFile(cfg.Taxonomy.Path)
	}
	return taxonomy.Default()
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source to ingest: csv_dump, scraped_json, or partner_api (required)")
	ingestCmd.Flags().BoolVar(&ingestApply, "apply", false, "write to the store; without this flag the run is a dry run")
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "max records to process (0 = all)")
	ingestCmd.Flags().IntVar(&ingestOffset, "offset", 0, "records to skip before processing")
	ingestCmd.Flags().Int("batch-size", 0, "records per commit transaction (default from config)")
	ingestCmd.Flags().Int("workers", 0, "enrichment worker count (default from config)")
	ingestCmd.Flags().Bool("no-scoring", false, "skip AI quality scoring")
	_ = ingestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCmd)
}
