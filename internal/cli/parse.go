package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rshade/cmsbulk/internal/ingest"
)

// newParseCmd creates the offline parse check.
func newParseCmd() *cobra.Command {
	var (
		file   string
		offset int
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Check chapter input lines without contacting the CMS",
		Example: `  cmsbulk parse --file chapters.txt
  cmsbulk parse --file chapters.txt --offset 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if offset < 0 {
				return fmt.Errorf("offset must be >= 0, got %d", offset)
			}
			input, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			return runParse(cmd, input, offset)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", stdinPath, "input file, - for standard input")
	cmd.Flags().IntVar(&offset, "offset", 0, "number the first valid line offset+1")

	return cmd
}

func runParse(cmd *cobra.Command, input string, offset int) error {
	lines := ingest.ParseChapterLines(input, offset)
	valid := ingest.ValidLines(lines)
	errs := ingest.Errors(lines)

	out := cmd.OutOrStdout()
	if len(valid) > 0 {
		rows := make([][]string, len(valid))
		for i, l := range valid {
			rows[i] = []string{strconv.Itoa(l.Sequence), strconv.Itoa(l.LineNumber), l.Title, l.VolumeLabel, l.URL}
		}
		renderSection(out, "Chapters", []string{"#", "Line", "Title", "Volume", "URL"}, rows, 2)
	}
	renderParseErrors(out, errs)
	_, _ = fmt.Fprintf(out, "%d valid, %d rejected\n", len(valid), len(errs))

	if len(errs) > 0 {
		return &ExitError{ExitCode: ExitCodeFailures, Reason: fmt.Sprintf("%d line(s) rejected", len(errs))}
	}
	return nil
}
