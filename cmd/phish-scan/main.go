package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/phish-scanner/internal/adapters/filter"
	"github.com/mikey/phish-scanner/internal/core"
	"github.com/mikey/phish-scanner/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run scans one message, or answers a store query when -stats or -show is set
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	cli *filter.CliFilter,
	scanRepo core.ScanRepository,
) error {
	defer logger.Sync()
	if stopper, ok := scanRepo.(interface{ Stop() }); ok {
		defer stopper.Stop()
	}

	ctx := context.Background()

	switch {
	case flags.Stats:
		return cli.PrintStats(ctx, time.Now().Add(-flags.Since), flags.Trend)
	case flags.Show != "":
		return cli.ShowScan(ctx, flags.Show)
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	_, err := cli.ScanMessage(ctx, emailReader)
	return err
}
