package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/gookit/color"

	"github.com/ethanolivertroy/hulud-checker/cmd"
	"github.com/ethanolivertroy/hulud-checker/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	// drive the scan from a single context so an interrupt stops new registry queries
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 10)
	signal.Notify(signals, os.Interrupt)

	defer func() {
		signal.Stop(signals)
		cancel()
	}()

	go func() {
		select {
		case <-signals: // first signal, cancel context
			log.Trace("signal interrupt, stop requested")
			cancel()
		case <-ctx.Done():
		}
		<-signals // second signal, hard exit
		log.Trace("signal interrupt, killing")
		os.Exit(1)
	}()

	err := cmd.Execute(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, cmd.ErrFindings) {
		return 1
	}

	fmt.Fprintln(os.Stderr, color.Red.Sprintf("error: %v", err))

	var usageErr *cmd.UsageError
	if errors.As(err, &usageErr) {
		return 2
	}
	return 1
}
