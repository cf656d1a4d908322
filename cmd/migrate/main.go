// Command migrate copies every draft from one storage backend to another,
// keeping ids and timestamps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/db"
	"github.com/debemdeboas/the-pantry/internal/logger"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

func main() {
	from := flag.String("from", "", "Config file whose storage section is the source")
	to := flag.String("to", "", "Config file whose storage section is the destination")
	owner := flag.String("owner", "", "Only copy drafts of this owner")
	dryRun := flag.Bool("dry-run", false, "List what would be copied without writing")
	flag.Parse()

	log := logger.New("info", "console")
	config.SetLogger(log)
	db.SetLogger(log)
	repository.SetLogger(log)

	if *from == "" || *to == "" {
		log.Fatal().Msg("Both --from and --to flags are required")
	}

	ctx := context.Background()
	src, closeSrc, err := openStorage(ctx, *from)
	if err != nil {
		log.Fatal().Err(err).Str("path", *from).Msg("Failed to open source")
	}
	defer closeSrc()

	dst, closeDst, err := openStorage(ctx, *to)
	if err != nil {
		log.Fatal().Err(err).Str("path", *to).Msg("Failed to open destination")
	}
	defer closeDst()

	copied, err := migrate(ctx, src, dst, *owner, *dryRun, log)
	if err != nil {
		log.Error().Err(err).Int("copied", copied).Msg("Migration finished with errors")
		closeSrc()
		closeDst()
		os.Exit(1)
	}
	log.Info().Int("copied", copied).Bool("dry_run", *dryRun).Msg("Migration finished")
}

func openStorage(ctx context.Context, path string) (repository.DraftRepository, func() error, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	return repository.Open(ctx, cfg.Storage)
}

// migrate copies the drafts of owner (every owner when empty) from src to dst.
// A draft that fails to copy is logged and skipped; the joined errors are returned.
func migrate(ctx context.Context, src, dst repository.DraftRepository, owner string, dryRun bool, log zerolog.Logger) (int, error) {
	importer, ok := dst.(repository.Importer)
	if !ok {
		return 0, fmt.Errorf("destination %T cannot import drafts", dst)
	}

	summaries, err := src.List(ctx, model.UserID(owner))
	if err != nil {
		return 0, fmt.Errorf("error listing source drafts: %w", err)
	}

	var errs []error
	copied := 0
	for _, s := range summaries {
		l := log.With().Str("draft_id", string(s.ID)).Str("owner", string(s.Owner)).Logger()

		doc, err := src.Get(ctx, s.ID)
		if err != nil {
			l.Error().Err(err).Msg("Error reading draft")
			errs = append(errs, fmt.Errorf("reading %s: %w", s.ID, err))
			continue
		}
		if dryRun {
			l.Info().Str("title", s.Title).Msg("Would copy draft")
			copied++
			continue
		}
		if err := importer.Import(ctx, *doc); err != nil {
			l.Error().Err(err).Msg("Error writing draft")
			errs = append(errs, fmt.Errorf("writing %s: %w", s.ID, err))
			continue
		}
		l.Debug().Msg("Copied draft")
		copied++
	}
	return copied, errors.Join(errs...)
}
