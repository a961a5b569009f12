// Command checkoutctl is the staff tool for seeding the catalog, reading the sales
// log and handling exit tokens from a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mamadbah2/selfcheckout/internal/app"
	"github.com/mamadbah2/selfcheckout/internal/config"
	"github.com/mamadbah2/selfcheckout/pkg/logger"
)

func main() {
	if err := newRootCmd(buildFromEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildFromEnv wires the services from the environment. Only the store settings are
// required; the admin PIN belongs to the HTTP surface.
func buildFromEnv(ctx context.Context, opts rootOptions) (*app.Services, error) {
	cfg, err := config.Read(opts.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	log, err := logger.NewCLI(opts.verbose)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, log.Named("checkoutctl"))
}
