package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/progress"
)

func NewShowCommand(opts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Show a stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, e *env) error {
				doc, err := e.store.Get(ctx, model.DraftID(args[0]))
				if err != nil {
					return fmt.Errorf("draft %s: %w", args[0], err)
				}
				progress.Apply(doc)

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(doc)
				}
				printDraft(cmd.OutOrStdout(), doc)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the draft as JSON")
	return cmd
}

func printDraft(w io.Writer, doc *model.DraftDocument) {
	c := doc.Content
	field := func(label, value string) {
		if value == "" {
			value = dimStyle.Render("-")
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), value)
	}
	check := func(done bool) string {
		if done {
			return okStyle.Render("✓")
		}
		return dimStyle.Render("·")
	}

	field("ID", string(doc.ID))
	field("Owner", string(doc.Owner))
	field("Title", c.BasicInfo.Title)
	field("Cuisine", c.BasicInfo.CuisineType)
	field("Course", c.BasicInfo.CourseType)
	field("Times", fmt.Sprintf("prep %dm, cook %dm, serves %d", c.BasicInfo.PrepTime, c.BasicInfo.CookTime, c.BasicInfo.Servings))
	field("Tags", strings.Join(c.Tags, ", "))
	field("Created", formatTime(doc.CreatedAt))
	field("Modified", formatTime(doc.ModifiedAt))
	field("Completion", completionBar(doc.CompletionPercentage))

	f := doc.Progress
	fmt.Fprintf(w, "%s basic info  %s ingredients  %s instructions  %s media  %s additional info\n",
		check(f.BasicInfo), check(f.Ingredients), check(f.Instructions), check(f.Media), check(f.AdditionalInfo))

	if len(c.Ingredients) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Ingredients"))
		for _, ing := range c.Ingredients {
			fmt.Fprintf(w, "  - %s\n", strings.Join(strings.Fields(ing.Quantity+" "+ing.Unit+" "+ing.Name), " "))
		}
	}
	if len(c.Instructions) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Instructions"))
		for i, step := range c.Instructions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step.Text)
		}
	}
}
