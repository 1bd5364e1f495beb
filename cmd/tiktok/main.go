// Command tiktok collects For You feed videos with a saved session and
// hydrates trending sounds with their usage counts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tiktok "github.com/RavensCloud/tiktok-fyp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, tiktok.ErrSessionInvalid) {
			fmt.Fprintln(os.Stderr, "session invalid, re-authenticate")
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
