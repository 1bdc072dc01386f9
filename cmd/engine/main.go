package main

import (
	"os"

	"github.com/ANSSI-FR/route-leaks/internal/api"
	"github.com/ANSSI-FR/route-leaks/internal/classifier"
	"github.com/ANSSI-FR/route-leaks/internal/config"
	"github.com/ANSSI-FR/route-leaks/internal/db"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

func main() {
	enginelog.Info("Starting route-leak detection engine...")

	cfgPath := config.GetEnvOrDefault("CONFIG_FILE", "config.yaml")
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		enginelog.Error("failed to load config from %s: %v", cfgPath, err)
		os.Exit(1)
	}

	dbURL := config.RequireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbURL)
	if err != nil {
		enginelog.Warn("failed to connect to PostgreSQL, continuing without persisting detection history: %v", err)
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			enginelog.Warn("schema init failed: %v", err)
		}
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	defaultParams := models.Params{
		PfxPeakMinValue:   cfg.Detection.PfxPeakMinValue,
		CflPeakMinValue:   cfg.Detection.CflPeakMinValue,
		MaxNbPeaks:        cfg.Detection.MaxNbPeaks,
		PercentSimilarity: cfg.Detection.PercentSimilarity,
		PercentStd:        cfg.Detection.PercentStd,
	}

	var model *classifier.Model
	artefacts := classifier.ArtefactPaths{
		FittedModelPath:    config.GetEnvOrDefault("MODEL_PATH", ""),
		FeatureVectorsPath: config.GetEnvOrDefault("FEATURE_VECTORS_PATH", ""),
		FeatureLabelsPath:  config.GetEnvOrDefault("FEATURE_LABELS_PATH", ""),
		TrainingCSVPath:    config.GetEnvOrDefault("TRAINING_CSV_PATH", ""),
		TrainingLabelsPath: config.GetEnvOrDefault("TRAINING_LABELS_PATH", ""),
	}
	if m, err := classifier.Load(artefacts); err != nil {
		enginelog.Warn("no classification model available, /api/v1/classify will be disabled: %v", err)
	} else {
		model = m
	}

	r := api.SetupRouter(dbConn, wsHub, model, defaultParams, cfg.Fitter.WorkerCount)

	addr := cfg.API.ListenAddr
	if addr == "" {
		addr = ":5339"
	}

	enginelog.Info("route-leak engine listening on %s", addr)
	if err := r.Run(addr); err != nil {
		enginelog.Error("server exited: %v", err)
		os.Exit(1)
	}
}
