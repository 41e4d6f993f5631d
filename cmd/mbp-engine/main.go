package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/muhammadchandra19/mbp-engine/internal/app/engine"
	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	mboreader "github.com/muhammadchandra19/mbp-engine/internal/usecase/mbo-reader"
	mbpwriter "github.com/muhammadchandra19/mbp-engine/internal/usecase/mbp-writer"
	"github.com/muhammadchandra19/mbp-engine/internal/usecase/orderbook"
	snapshotpublisher "github.com/muhammadchandra19/mbp-engine/internal/usecase/snapshot-publisher"
	"github.com/muhammadchandra19/mbp-engine/pkg/config"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <mbo_input_file.csv>\n", os.Args[0])
		os.Exit(1)
	}
	inputPath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger, inputPath); err != nil {
		appLogger.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger, inputPath string) error {
	input, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	source, err := mboreader.NewReader(input, appLogger)
	if err != nil {
		return err
	}

	output, err := os.Create(cfg.Output.Path)
	if err != nil {
		return err
	}
	defer output.Close()

	sink := mbpwriter.NewWriter(output, cfg.Publisher, cfg.Output.BufferSize, appLogger)

	var publisher marketv1.SnapshotPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := snapshotpublisher.NewPublisher(cfg.Kafka, appLogger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	book := orderbook.NewBook(appLogger)
	opts := engine.DefaultEngineOptions()
	opts.PermissiveFilter = cfg.App.PermissiveFilter

	appLogger.Info("processing MBO feed",
		logger.Field{Key: "app", Value: cfg.App.Name},
		logger.Field{Key: "input", Value: inputPath},
		logger.Field{Key: "output", Value: cfg.Output.Path},
		logger.Field{Key: "permissive_filter", Value: cfg.App.PermissiveFilter},
	)

	eng := engine.NewEngine(book, source, sink, publisher, appLogger, opts)
	stats, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	appLogger.Info("done",
		logger.Field{Key: "snapshots_written", Value: stats.SnapshotsWritten},
		logger.Field{Key: "output", Value: cfg.Output.Path},
	)
	return nil
}
