package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/model"
)

func NewListCommand(opts *RootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored drafts with their completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				summaries, err := e.store.List(ctx, model.UserID(owner))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, dimStyle.Render("No drafts"))
					return nil
				}

				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					title := s.Title
					if title == "" {
						title = dimStyle.Render("(untitled)")
					}
					rows = append(rows, []string{
						string(s.ID), string(s.Owner), title,
						completionBar(s.CompletionPercentage), formatTime(s.ModifiedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Owner", "Title", "Completion", "Modified"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Only list drafts of this owner")
	return cmd
}
