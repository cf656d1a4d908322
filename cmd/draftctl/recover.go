package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/autosave"
	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/connectivity"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/persist"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

type outcome string

const (
	outcomeCreated   outcome = "created"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
	outcomePending   outcome = "pending"
	outcomeFailed    outcome = "failed"
)

type recovered struct {
	Key     string
	DraftID model.DraftID
	Title   string
	Outcome outcome
	Err     error
}

func NewRecoverCommand(opts *RootOptions) *cobra.Command {
	var dryRun, keep bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Push local backup snapshots that the draft store does not have",
		Long: `Push every local backup snapshot holding edits the draft store has not
acknowledged. Drafts that were never saved are created. Backups are evicted
once the store has their content unless --keep is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				cfg := autosave.FromSettings(e.cfg.Autosave).Persist()
				cfg.BackupToLocal = false

				results := recoverBackups(ctx, e.local, e.remoteFor, cfg, dryRun, keep, e.log)
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No local backups"))
					return nil
				}

				var errs []error
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Key, string(r.DraftID), r.Title, outcomeLabel(r)})
					if r.Err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", r.Key, r.Err))
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Draft", "Title", "Result"}, rows))
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be pushed without writing")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep backups after pushing them")
	return cmd
}

// recoverBackups reconciles every local snapshot with the store it belongs to,
// the same way an editor session does when it resumes a draft.
func recoverBackups(ctx context.Context, local backup.Store, remoteFor func(model.UserID) repository.DraftRepository,
	cfg persist.Config, dryRun, keep bool, log zerolog.Logger) []recovered {
	keys, err := local.Keys()
	if err != nil {
		return []recovered{{Outcome: outcomeFailed, Err: err}}
	}
	slices.Sort(keys)

	online := connectivity.NewStatic(true)
	var results []recovered
	for _, key := range keys {
		snap, err := local.Get(key)
		if err != nil {
			results = append(results, recovered{Key: key, Outcome: outcomeFailed, Err: err})
			continue
		}
		if snap == nil {
			continue
		}

		l := log.With().Str("draft_key", key).Logger()
		adapter := persist.New(remoteFor(snap.Owner), local, online, cfg, l)
		r := recovered{Key: key, DraftID: snap.ID, Title: snap.Content.BasicInfo.Title}

		var doc model.DraftDocument
		if snap.ID == "" {
			doc, err = adapter.LoadProvisional(key)
		} else {
			doc, err = adapter.Load(ctx, snap.ID)
			if errors.Is(err, repository.ErrNotFound) {
				// Removed from the store; the commit creates it again.
				doc, err = snap.Clone(), nil
			}
		}
		if err != nil {
			r.Outcome, r.Err = outcomeFailed, err
			results = append(results, r)
			continue
		}

		if !adapter.Dirty(doc) {
			r.Outcome = outcomeUnchanged
			if !keep && !dryRun {
				evict(local, l, key)
			}
			results = append(results, r)
			continue
		}
		if dryRun {
			r.Outcome = outcomePending
			results = append(results, r)
			continue
		}

		committed, err := adapter.Commit(ctx, doc)
		if err != nil {
			r.Outcome, r.Err = outcomeFailed, err
			results = append(results, r)
			continue
		}
		r.Outcome = outcomeUpdated
		if committed.ID != snap.ID {
			r.Outcome = outcomeCreated
		}
		r.DraftID = committed.ID
		l.Info().Str("draft_id", string(committed.ID)).Str("outcome", string(r.Outcome)).Msg("Recovered draft")

		if keep {
			if err := local.Put(committed.BackupKey(), committed); err != nil {
				l.Warn().Err(err).Msg("Failed to keep local backup")
			}
		} else {
			evict(local, l, key)
		}
		results = append(results, r)
	}
	return results
}

func evict(local backup.Store, log zerolog.Logger, key string) {
	if err := local.Delete(key); err != nil {
		log.Warn().Err(err).Msg("Failed to evict local backup")
	}
}

func outcomeLabel(r recovered) string {
	switch r.Outcome {
	case outcomeCreated, outcomeUpdated:
		return okStyle.Render(string(r.Outcome))
	case outcomeFailed:
		return errorStyle.Render(string(r.Outcome) + ": " + r.Err.Error())
	case outcomePending:
		return warnStyle.Render(string(r.Outcome))
	}
	return dimStyle.Render(string(r.Outcome))
}
