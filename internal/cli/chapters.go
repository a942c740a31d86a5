package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rshade/cmsbulk/internal/bulk"
	"github.com/rshade/cmsbulk/internal/cms"
)

// newChaptersCmd creates the chapters command group.
func newChaptersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "chapters", Short: "Chapter bulk actions"}
	cmd.AddCommand(newChaptersCreateCmd(a), newChaptersReorderCmd(a))
	return cmd
}

func newChaptersCreateCmd(a *app) *cobra.Command {
	var (
		work, contributor, file string
		flags                   actionFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create chapters from \"Title ; Volume ; URL\" lines",
		Long: `Creates one chapter per input line. Lines are "Title ; Volume ; URL" or
"Title ; URL". Malformed lines are reported and left out; URLs that already
exist, or repeat an earlier line, are skipped. New chapters are numbered after
the work's current last chapter.`,
		Example: `  cmsbulk chapters create --work 12 --file chapters.txt
  pbpaste | cmsbulk chapters create --work 12 --contributor 3 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req := bulk.CreateRequest{
				WorkID:        cms.RecordID(work),
				ContributorID: cms.RecordID(contributor),
				Input:         input,
			}
			return a.runAction(cmd, bulk.OpCreate, flags,
				func(ctx context.Context, r *bulk.Runner, opts bulk.RunOptions) (*bulk.Result, error) {
					return r.CreateChapters(ctx, req, opts)
				})
		},
	}

	cmd.Flags().StringVar(&work, "work", "", "id of the parent work (required)")
	cmd.Flags().StringVar(&contributor, "contributor", "", "id of the contributor to credit")
	cmd.Flags().StringVarP(&file, "file", "f", stdinPath, "input file, - for standard input")
	addDryRunFlag(cmd, &flags)
	addFailedOutFlag(cmd, &flags)
	_ = cmd.MarkFlagRequired("work")

	return cmd
}

func newChaptersReorderCmd(a *app) *cobra.Command {
	var (
		work  string
		flags actionFlags
	)

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Renumber a work's chapters to 1..N",
		Long: `Sorts the chapters of a work by their current order value and renumbers
them 1..N. Ties keep the order the CMS returned them in. Only chapters whose
number changes are updated.`,
		Example: `  cmsbulk chapters reorder --work 12 --dry-run`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := bulk.ReorderRequest{WorkID: cms.RecordID(work)}
			return a.runAction(cmd, bulk.OpReorder, flags,
				func(ctx context.Context, r *bulk.Runner, opts bulk.RunOptions) (*bulk.Result, error) {
					return r.ReorderChapters(ctx, req, opts)
				})
		},
	}

	cmd.Flags().StringVar(&work, "work", "", "id of the parent work (required)")
	addDryRunFlag(cmd, &flags)
	_ = cmd.MarkFlagRequired("work")

	return cmd
}
