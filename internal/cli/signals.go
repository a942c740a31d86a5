package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/cmsbulk/internal/engine/batch"
)

// handleInterrupts requests token on the first SIGINT or SIGTERM and cancels
// the returned context on the second. stop releases the signal handler.
func handleInterrupts(ctx context.Context, token *batch.CancelToken, errOut io.Writer) (context.Context, func()) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ctx, stopWatch := watchInterrupts(ctx, sigs, token, errOut)
	return ctx, func() {
		signal.Stop(sigs)
		stopWatch()
	}
}

// watchInterrupts implements the two-stage stop over an arbitrary channel.
func watchInterrupts(
	ctx context.Context,
	sigs <-chan os.Signal,
	token *batch.CancelToken,
	errOut io.Writer,
) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		received := 0
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				received++
				if received == 1 {
					logger.Warn().Str("signal", sig.String()).Msg("stop requested, finishing current group")
					_, _ = fmt.Fprintln(errOut, "\nStopping after the current group. Press Ctrl+C again to abort requests in flight.")
					token.Request()
					continue
				}
				logger.Warn().Str("signal", sig.String()).Msg("abort requested, cancelling requests in flight")
				cancel()
				return
			}
		}
	}()

	return ctx, cancel
}
