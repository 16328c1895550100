package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/categorize"
	"github.com/dvloznov/subscription-tracker/internal/config"
	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/dvloznov/subscription-tracker/internal/feed"
	"github.com/dvloznov/subscription-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/subscription-tracker/internal/infra/bigquery"
	"github.com/dvloznov/subscription-tracker/internal/jobs"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/dvloznov/subscription-tracker/internal/notionsync"
	"github.com/dvloznov/subscription-tracker/internal/pipeline"
	"github.com/dvloznov/subscription-tracker/internal/subscriptions"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load(".env", log)
	if err := logger.SetLevel(cfg.App.LogLevel); err != nil {
		log.Warn().Err(err).Msg("Invalid log level, keeping default")
	}

	switch os.Args[1] {
	case "detect":
		runDetect(cfg, log)
	case "demo":
		runDemo(cfg, log)
	case "upload":
		runUpload(log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Subscription Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  detect       Detect subscriptions in a feed file, a GCS object or BigQuery")
	fmt.Println("  demo         Detect subscriptions in generated demo transactions")
	fmt.Println("  upload       Upload a feed file to GCS")
	fmt.Println("  sync-notion  Detect subscriptions and sync them to a Notion database")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// scanFlags are shared by every command that runs a scan.
type scanFlags struct {
	file      *string
	gcsURI    *string
	bigquery  *bool
	startDate *string
	endDate   *string
}

func addScanFlags(fs *flag.FlagSet) scanFlags {
	return scanFlags{
		file:      fs.String("file", "", "Path to a local feed JSON file"),
		gcsURI:    fs.String("gcs-uri", "", "GCS URI of a feed JSON file"),
		bigquery:  fs.Bool("bigquery", false, "Read transactions from BigQuery"),
		startDate: fs.String("start-date", "", "BigQuery start date in YYYY-MM-DD format"),
		endDate:   fs.String("end-date", "", "BigQuery end date in YYYY-MM-DD format"),
	}
}

// source resolves the flags to a scan source and optional date range.
func (f scanFlags) source() (string, *time.Time, *time.Time, error) {
	var sources []string
	if *f.file != "" {
		sources = append(sources, *f.file)
	}
	if *f.gcsURI != "" {
		if !strings.HasPrefix(*f.gcsURI, "gs://") {
			return "", nil, nil, fmt.Errorf("-gcs-uri must start with gs://")
		}
		sources = append(sources, *f.gcsURI)
	}
	if *f.bigquery {
		sources = append(sources, jobs.SourceBigQuery)
	}
	if len(sources) != 1 {
		return "", nil, nil, fmt.Errorf("exactly one of -file, -gcs-uri or -bigquery is required")
	}

	start, err := parseDateFlag("start-date", *f.startDate)
	if err != nil {
		return "", nil, nil, err
	}
	end, err := parseDateFlag("end-date", *f.endDate)
	if err != nil {
		return "", nil, nil, err
	}
	return sources[0], start, end, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q, expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}

// newDependencies wires the scan pipeline for source. Cloud clients are only
// created when the source needs them; the returned func closes them.
func newDependencies(ctx context.Context, cfg *config.Config, source string, log zerolog.Logger) (pipeline.Dependencies, func(), error) {
	deps := pipeline.Dependencies{
		Detector: subscriptions.NewDetector(cfg.Detection.Heuristics(), cfg.Detection.Concurrency),
	}
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	switch {
	case strings.HasPrefix(source, "gs://"):
		storageService, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { storageService.Close() })
		deps.Storage = storageService

	case source == jobs.SourceBigQuery:
		repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.GCP.ProjectID, cfg.GCP.DatasetID)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { repo.Close() })
		deps.Transactions = repo
	}

	chain := categorize.Chain{categorize.NewKeywordCategorizer()}
	if cfg.Gemini.Enabled {
		gemini, err := categorize.NewGeminiCategorizer(ctx, cfg.Gemini.Model, nil, log)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini unavailable - keyword categorization only")
		} else {
			chain = append(chain, gemini)
		}
	}
	deps.Categorizer = chain

	return deps, cleanup, nil
}

func scan(ctx context.Context, deps pipeline.Dependencies, source string, start, end *time.Time) (*pipeline.ScanState, error) {
	return pipeline.NewScanPipeline(deps).Scan(ctx, source, start, end)
}

func runDetect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	flags := addScanFlags(fs)
	asJSON := fs.Bool("json", false, "Print subscriptions as JSON")
	fs.Parse(os.Args[2:])

	source, start, end, err := flags.source()
	if err != nil {
		log.Fatal().Err(err).Msg("Usage: cli detect -file PATH | -gcs-uri URI | -bigquery [-json]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps, cleanup, err := newDependencies(ctx, cfg, source, log)
	defer cleanup()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scan dependencies")
	}

	state, err := scan(ctx, deps, source, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Detection failed")
	}

	printSubscriptions(state.Subscriptions, *asJSON)
}

func runDemo(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	seed := fs.Int64("seed", 0, "Random seed for the demo feed (0 uses the clock)")
	out := fs.String("out", "", "Also write the generated feed JSON to this path")
	asJSON := fs.Bool("json", false, "Print subscriptions as JSON")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	deps, cleanup, err := newDependencies(ctx, cfg, jobs.SourceDemo, log)
	defer cleanup()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scan dependencies")
	}
	deps.DemoSeed = *seed

	state, err := scan(ctx, deps, jobs.SourceDemo, nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Demo detection failed")
	}

	if *out != "" {
		data, err := feed.Encode(state.Transactions)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode demo feed")
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", *out).Msg("Failed to write demo feed")
		}
		log.Info().Str("path", *out).Int("transactions", len(state.Transactions)).Msg("Demo feed written")
	}

	printSubscriptions(state.Subscriptions, *asJSON)
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local feed JSON file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	storageService, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storageService.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storageService.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	flags := addScanFlags(fs)
	notionToken := fs.String("notion-token", cfg.Notion.Token, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := fs.String("notion-db-id", cfg.Notion.DatabaseID, "Notion database ID (or set NOTION_DB_ID)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(os.Args[2:])

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	source, start, end, err := flags.source()
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid scan source")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("source", source).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	deps, cleanup, err := newDependencies(ctx, cfg, source, log)
	defer cleanup()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scan dependencies")
	}

	state, err := scan(ctx, deps, source, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Detection failed")
	}

	result, err := notionsync.SyncSubscriptions(ctx, state.Subscriptions, notionsync.NewNotionClient(*notionToken), *notionDBID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}

	fmt.Printf("Notion sync finished: %d created, %d updated, %d archived, %d failed\n",
		result.Created, result.Updated, result.Deleted, result.Failed)
}

func printSubscriptions(subs []domain.Subscription, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(subs); err != nil {
			fmt.Fprintf(os.Stderr, "encode subscriptions: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(subs) == 0 {
		fmt.Println("No subscriptions detected.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAMOUNT\tFREQUENCY\tNEXT BILLING\tCONFIDENCE\tCATEGORY\tNOTES")
	for _, sub := range subs {
		var notes []string
		if sub.PriceChange != nil {
			sign := ""
			if sub.PriceChange.Amount.IsPositive() {
				sign = "+"
			}
			notes = append(notes, fmt.Sprintf("price %s%s (%.2f%%)", sign, sub.PriceChange.Amount.StringFixed(2), sub.PriceChange.Percentage))
		}
		if sub.Sharing != nil && sub.Sharing.IsShared {
			notes = append(notes, "shared, your share "+sub.Sharing.YourShare.StringFixed(2))
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%d\t%s\t%s\n",
			sub.Name,
			sub.Amount.Current.StringFixed(2), sub.Amount.Currency,
			sub.Billing.Frequency,
			sub.Billing.NextBillingDate.Format("2006-01-02"),
			sub.Confidence,
			sub.Category,
			strings.Join(notes, "; "),
		)
	}
	w.Flush()

	summary := subscriptions.Summarize(subs)
	for currency, total := range summary.MonthlyTotals {
		fmt.Printf("\nMonthly total (%s): %s, your share %s\n",
			currency, total.StringFixed(2), summary.MonthlyYourShare[currency].StringFixed(2))
	}
}
