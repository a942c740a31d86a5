package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/cmsbulk/internal/bulk"
)

func newDeleteCmd(a *app) *cobra.Command {
	var (
		file  string
		flags actionFlags
	)

	cmd := &cobra.Command{
		Use:   "delete <collection> [id...]",
		Short: "Delete records from a collection",
		Long: `Deletes the listed records. Ids come from the arguments and, with --file,
from a file of comma or whitespace separated ids. Repeated ids are deleted once.`,
		Example: `  cmsbulk delete works 31 32 33
  cmsbulk delete chapters --file retry.txt --failed-out retry.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := strings.Join(args[1:], " ")
			if file != "" {
				input, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				ids += "\n" + input
			}
			req := bulk.DeleteRequest{Collection: args[0], IDs: ids}
			return a.runAction(cmd, bulk.OpDelete, flags,
				func(ctx context.Context, r *bulk.Runner, opts bulk.RunOptions) (*bulk.Result, error) {
					return r.DeleteRecords(ctx, req, opts)
				})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file of ids, - for standard input")
	addDryRunFlag(cmd, &flags)
	addFailedOutFlag(cmd, &flags)

	return cmd
}
