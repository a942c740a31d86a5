package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/cmsbulk/internal/bulk"
	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/config"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/logging"
	"github.com/rshade/cmsbulk/internal/metrics"
)

// stdinPath selects standard input for --file.
const stdinPath = "-"

// apiFactory builds the CMS client for a loaded config.
type apiFactory func(cfg *config.Config) (bulk.API, error)

// newCMSClient is the production apiFactory.
func newCMSClient(cfg *config.Config) (bulk.API, error) {
	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}
	return cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Token,
		cms.WithTimeout(cfg.CMS.Timeout()),
		cms.WithLookupAttempts(cfg.CMS.LookupRetries),
		cms.WithLogger(logging.ComponentLogger(logger, "cms")),
	)
}

// actionFlags are the flags shared by the mutating commands.
type actionFlags struct {
	dryRun    bool
	failedOut string
}

func addDryRunFlag(cmd *cobra.Command, f *actionFlags) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "run pre-flight checks and print the plan without writing")
}

func addFailedOutFlag(cmd *cobra.Command, f *actionFlags) {
	cmd.Flags().StringVar(&f.failedOut, "failed-out", "",
		"write failed and not-attempted inputs to this file, ready to resubmit")
}

// actionFunc runs one bulk action.
type actionFunc func(ctx context.Context, r *bulk.Runner, opts bulk.RunOptions) (*bulk.Result, error)

// runAction wires the runner, interrupt handling, progress, metrics and the
// summary around a bulk action and maps its outcome to an exit code.
func (a *app) runAction(cmd *cobra.Command, op string, flags actionFlags, action actionFunc) error {
	api, err := a.newAPI(a.cfg)
	if err != nil {
		return err
	}
	runner, err := bulk.NewRunner(api, bulk.Settings{
		BatchSize:          a.cfg.Batch.Size,
		Delay:              a.cfg.Batch.Delay(),
		ChaptersCollection: a.cfg.Collections.Chapters,
		WorksCollection:    a.cfg.Collections.Works,
	}, logging.ComponentLogger(logger, "bulk"))
	if err != nil {
		return err
	}

	token := batch.NewCancelToken()
	ctx, stop := handleInterrupts(cmd.Context(), token, cmd.ErrOrStderr())
	defer stop()

	progress := newProgressPrinter(cmd.ErrOrStderr(), writerIsTerminal(cmd.ErrOrStderr()))
	recorder := metrics.NewRecorder(op)

	res, err := action(ctx, runner, bulk.RunOptions{
		Token:      token,
		OnProgress: progress.update,
		Observer:   recorder,
		DryRun:     flags.dryRun,
	})
	progress.finish()
	if err != nil {
		logger.Error().Err(err).Str("operation", op).Msg("bulk action aborted")
		return fmt.Errorf("%s: %w", op, err)
	}

	renderResult(cmd.OutOrStdout(), res)
	if res.DryRun {
		return nil
	}

	if flags.failedOut != "" {
		if err := writeResubmit(flags.failedOut, res.Resubmit()); err != nil {
			return err
		}
		if len(res.Unresolved) > 0 {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d input(s) written to %s\n", len(res.Unresolved), flags.failedOut)
		}
	}
	if a.flags.metricsFile != "" {
		if err := recorder.WriteTextfile(a.flags.metricsFile); err != nil {
			return err
		}
	}

	return exitErrorFor(res.Summary)
}

// readInput returns the contents of path, or standard input for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == stdinPath {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading input file: %w", err)
	}
	return string(data), nil
}

// writeResubmit writes one line per input, truncating any previous file.
func writeResubmit(path string, lines []string) error {
	var content string
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing resubmit file: %w", err)
	}
	return nil
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}
