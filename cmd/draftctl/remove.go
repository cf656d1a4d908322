package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	var keepBackup bool

	cmd := &cobra.Command{
		Use:     "rm <draft-id>...",
		Aliases: []string{"delete"},
		Short:   "Delete drafts and their local backups",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				var errs []error
				for _, id := range args {
					err := e.store.Delete(ctx, model.DraftID(id))
					if err != nil && !errors.Is(err, repository.ErrNotFound) {
						errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
						continue
					}
					if !keepBackup {
						if err := e.local.Delete(id); err != nil {
							e.log.Warn().Err(err).Str("draft_id", id).Msg("Failed to evict local backup")
						}
					}

					if errors.Is(err, repository.ErrNotFound) {
						fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("not found "+id))
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted "+id))
					}
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&keepBackup, "keep-backup", false, "Keep the local backup of each draft")
	return cmd
}
