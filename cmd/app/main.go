package main

import (
	"context"
	"flag"
	"log"
	"os"

	_ "time/tzdata"

	"EnergyPull/internal/di"
	"EnergyPull/internal/domain/models"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	dryRun := flag.Bool("dry-run", false, "validate without writing, exporting or archiving (implies -once)")
	skipArchive := flag.Bool("skip-archive", false, "leave raw files in place after a successful run (implies -once)")
	rebuild := flag.Bool("rebuild-training", false, "rebuild the training dataset from the latest processed file (implies -once)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *once || *dryRun || *skipArchive || *rebuild {
		report, err := app.RunOnce(context.Background(), usecase.RunOptions{
			Trigger:      models.TriggerCLI,
			DryRun:       *dryRun,
			SkipArchive:  *skipArchive,
			FeaturesOnly: *rebuild,
		})
		if err != nil {
			log.Printf("run failed [%s]: %v", models.ErrorCode(err), err)
			os.Exit(1)
		}
		log.Printf("run %s succeeded: %d training rows through %s", report.ID, report.TrainingRows, report.LastMonth)
		return
	}

	// Blocks until signal
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
