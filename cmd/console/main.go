package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/t77yq/roma-console/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		// backend failures were already reported through the notification channels
		var terr *transport.Error
		if !errors.As(err, &terr) {
			fmt.Fprintln(os.Stderr, errorStyle.Sprintf("Error: %v", err))
		}
		os.Exit(1)
	}
}
