// Command backfill-positions gives a board position to tickets stored before
// positions existed. Each status column is numbered 0, 1000, 2000... in
// storage order; tickets that already have a position are left alone and
// updatedAt is never changed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func main() {
	flags := pflag.NewFlagSet("backfill-positions", pflag.ExitOnError)
	dryRun := flags.Bool("dry-run", false, "print the planned positions without writing them")
	storeType := flags.String("store", "", "override DATASTORE_TYPE (file, postgres, sqlite)")
	dataFile := flags.String("data-file", "", "override DATA_FILE_PATH")
	timeout := flags.Duration("timeout", time.Minute, "abort after this long")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: backfill-positions [flags]\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *storeType != "" {
		cfg.Store.Type = *storeType
	}
	if *dataFile != "" {
		cfg.Store.DataFilePath = *dataFile
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := checkStore(cfg.Store.Type); err != nil {
		log.Fatal(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := persistence.OpenDatastore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open datastore", zap.Error(err))
	}
	defer store.Close()

	svc := service.NewTicketService(service.TicketDependencies{TicketRepo: store.Tickets, Logger: logger})
	result, err := svc.BackfillPositions(ctx, *dryRun)
	if err != nil {
		logger.Fatal("backfill failed", zap.Error(err))
	}

	for _, a := range result.Assignments {
		logger.Info("position assigned",
			zap.String("ticket_id", a.TicketID),
			zap.Int64("position", a.Position),
			zap.Bool("dry_run", *dryRun))
	}
	logger.Info("backfill complete",
		zap.Int("total", result.Total),
		zap.Int("updated", len(result.Assignments)),
		zap.Int("already_positioned", result.Total-len(result.Assignments)),
		zap.Bool("applied", result.Applied))
}

// checkStore refuses backends that start empty on every process.
func checkStore(storeType string) error {
	if storeType == config.StoreMemory {
		return fmt.Errorf("backfill-positions needs a persistent datastore; %q starts empty on every run", storeType)
	}
	return nil
}
