package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/model"
)

func NewBackupsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List the local backup snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				keys, err := e.local.Keys()
				if err != nil {
					return err
				}
				slices.Sort(keys)

				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					doc, err := e.local.Get(key)
					if err != nil {
						rows = append(rows, []string{key, "", errorStyle.Render("unreadable"), "", ""})
						continue
					}
					if doc == nil {
						continue
					}
					rows = append(rows, []string{
						key, string(doc.Owner), doc.Content.BasicInfo.Title,
						statusLabel(doc), formatTime(doc.ModifiedAt),
					})
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, dimStyle.Render("No local backups"))
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Key", "Owner", "Title", "Status", "Modified"}, rows))
				return nil
			})
		},
	}
}

func statusLabel(doc *model.DraftDocument) string {
	if doc.ID == "" {
		return warnStyle.Render("never saved")
	}
	switch doc.Status {
	case model.StatusSaved:
		return okStyle.Render(string(doc.Status))
	case model.StatusError:
		return errorStyle.Render(string(doc.Status))
	case "":
		return dimStyle.Render("-")
	}
	return warnStyle.Render(string(doc.Status))
}
