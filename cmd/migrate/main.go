package main

import (
	"context"
	"flag"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subscription-tracker/internal/config"
	infraBQ "github.com/dvloznov/subscription-tracker/internal/infra/bigquery"
	"github.com/dvloznov/subscription-tracker/internal/logger"
)

func main() {
	log := logger.New()

	cfg := config.Load(".env", log)
	if err := logger.SetLevel(cfg.App.LogLevel); err != nil {
		log.Warn().Err(err).Msg("Ignoring invalid LOG_LEVEL")
	}

	var (
		projectID     = flag.String("project", cfg.GCP.ProjectID, "GCP project ID (or set GCP_PROJECT_ID env)")
		datasetID     = flag.String("dataset", cfg.GCP.DatasetID, "BigQuery dataset ID (or set BQ_DATASET env)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
		dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("-project flag is required. Please specify your GCP project ID.")
	}

	migrationsFS := infraBQ.EmbeddedMigrations()
	if *migrationsDir != "" {
		migrationsFS = os.DirFS(*migrationsDir)
	}

	migrations, err := infraBQ.ReadMigrations(migrationsFS, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	if *dryRun {
		for _, m := range migrations {
			log.Info().Int("version", m.Version).Str("name", m.Name).Str("checksum", m.Checksum[:12]).Msg("Migration")
		}
		return
	}

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	migrator := infraBQ.NewMigrator(client, *projectID, *datasetID, *appliedBy, log)
	applied, err := migrator.Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}
