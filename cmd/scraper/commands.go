package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/aluiziolira/go-scrape-apps/pipeline"
	"github.com/aluiziolira/go-scrape-apps/scraper"
	"github.com/spf13/cobra"
)

const (
	termsFile     = "search_terms.txt"
	linksFile     = "app_links.txt"
	appsJSONFile  = "apps.jsonl"
	appsCSVFile   = "apps.csv"
	appsStoreFile = "apps.db"
)

// targetOutputs lists the files each run produces, relative to the output
// directory.
var targetOutputs = map[string][]string{
	"terms": {termsFile},
	"links": {linksFile},
	"apps":  {appsJSONFile, appsCSVFile, appsStoreFile},
}

func newTermsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "terms",
		Short: "Collect search terms from the autocomplete endpoint for every three letter keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer sess.close()

			fetcher, err := scraper.NewCollyFetcher(sess.cfg, nil, sess.metrics)
			if err != nil {
				return err
			}
			sink, err := pipeline.NewLineWriter(sess.cfg.OutputPath(termsFile))
			if err != nil {
				return err
			}
			defer sink.Close()

			handler := scraper.NewTermHandler(fetcher, sess.cfg, sink, sess.metrics, sess.logger)
			_, err = sess.run(cmd.Context(), "terms", scraper.ThreeLetterKeywords(), handler)
			return err
		},
	}
}

func newLinksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Search the marketplace for every collected term and record new app links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer sess.close()

			terms, err := batch.LoadItems(sess.cfg.OutputPath(termsFile))
			if err != nil {
				return fmt.Errorf("load search terms (run the terms command first): %w", err)
			}
			known, err := loadIfExists(sess.cfg.OutputPath(linksFile))
			if err != nil {
				return err
			}

			fetcher, err := scraper.NewCollyFetcher(sess.cfg, scraper.SearchHeaders(), sess.metrics)
			if err != nil {
				return err
			}
			sink, err := pipeline.NewLineWriter(sess.cfg.OutputPath(linksFile))
			if err != nil {
				return err
			}
			defer sink.Close()

			handler, err := scraper.NewLinkHandler(fetcher, sess.cfg, sink, known, sess.metrics, sess.logger)
			if err != nil {
				return err
			}
			_, err = sess.run(cmd.Context(), "links", terms, handler)
			return err
		},
	}
}

func newAppsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Scrape every collected app link into app records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer sess.close()

			links, err := batch.LoadItems(sess.cfg.OutputPath(linksFile))
			if err != nil {
				return fmt.Errorf("load app links (run the links command first): %w", err)
			}

			fetcher, err := scraper.NewCollyFetcher(sess.cfg, nil, sess.metrics)
			if err != nil {
				return err
			}
			writer, err := createWriter(sess.cfg)
			if err != nil {
				return fmt.Errorf("creating writer: %w", err)
			}
			p := pipeline.NewPipeline(writer, sess.logger)
			defer func() {
				if err := p.Close(); err != nil {
					slog.Error("close writer", slog.Any("error", err))
				}
			}()

			scraperOpts := []scraper.Option{
				scraper.WithLogger(sess.logger),
				scraper.WithMetrics(sess.metrics),
			}
			if isTerminal(os.Stderr) && !sess.cfg.OmitReviews {
				scraperOpts = append(scraperOpts, scraper.WithProgress(scraper.NewTerminalProgress(os.Stderr, 40)))
			}
			handler := &scraper.AppHandler{
				Scraper: scraper.NewAppScraper(fetcher, sess.cfg, scraperOpts...),
				Sink:    p,
			}

			report, err := sess.run(cmd.Context(), "apps", links, handler)
			if err != nil {
				return err
			}
			if report.Attempted > 0 {
				if err := writer.Validate(); err != nil {
					return fmt.Errorf("output validation failed: %w", err)
				}
			}
			if validation, ok := p.GetMetrics()["validation_errors"].(map[string]int); ok && len(validation) > 0 {
				sess.logger.Info("output checks", slog.Any("validation_errors", validation))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.testMode, "test-mode", false, "Fetch at most three review pages per rating")
	flags.BoolVar(&opts.omitReviews, "omit-reviews", false, "Skip review collection")
	flags.StringVar(&opts.format, "format", "json", "Output format: json, csv, dual, badger, or all")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the checkpoint, error log and output of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			outputs, ok := targetOutputs[opts.target]
			if !ok {
				return fmt.Errorf("unknown target %q: want apps, links or terms", opts.target)
			}

			paths := []string{
				cfg.StatePath(opts.target + ".toml"),
				cfg.LogPath(opts.target + ".log"),
			}
			for _, name := range outputs {
				paths = append(paths, cfg.OutputPath(name))
			}

			deleted, err := batch.Reset(paths...)
			for _, path := range deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "deleted "+path)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.target, "target", "", "Run to reset: apps, links, or terms")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputPath(appsJSONFile))
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputPath(appsCSVFile))
	case "dual":
		return pipeline.NewDualWriter(cfg.OutputPath(appsCSVFile), cfg.OutputPath(appsJSONFile))
	case "badger":
		return pipeline.NewBadgerWriter(cfg.OutputPath(appsStoreFile))
	case "all":
		return pipeline.NewArchiveWriter(cfg.OutputPath(appsCSVFile), cfg.OutputPath(appsJSONFile), cfg.OutputPath(appsStoreFile))
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func loadIfExists(path string) ([]string, error) {
	items, err := batch.LoadItems(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return items, err
}
