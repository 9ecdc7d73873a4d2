package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"souschef/audio"
	"souschef/bridge"
	"souschef/config"
	"souschef/recipes"
	"souschef/storage"
	"souschef/voice"
)

var (
	cfg          *config.Config
	logger       *slog.Logger
	logLevel     = new(slog.LevelVar)
	store        storage.FullRepo
	brdg         *bridge.HTTPBridge
	modes        *audio.ModeController
	player       *audio.Player
	recorder     *audio.Recorder
	generator    *recipes.Generator
	conversation *voice.Controller
)

// recorderAdapter narrows *audio.Recorder to what the voice loop consumes.
type recorderAdapter struct {
	rec *audio.Recorder
}

func (a recorderAdapter) Start() (voice.Recording, error) {
	r, err := a.rec.Start()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func init() {
	var err error
	cfg, err = config.LoadConfig("config.toml")
	if err != nil {
		fmt.Println("failed to load config.toml", err)
		os.Exit(1)
		return
	}
	logfile, err := os.OpenFile(cfg.LogFile,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("failed to open log file", "error", err, "filename", cfg.LogFile)
		os.Exit(1)
		return
	}
	logLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(logfile, &slog.HandlerOptions{Level: logLevel}))
	store = storage.NewProviderSQL(cfg.DBPATH, logger)
	if store == nil {
		os.Exit(1)
		return
	}
	brdg = bridge.New(logger, cfg)
	modes = audio.NewModeController(logger)
	player = audio.NewPlayer(logger)
	recorder = audio.NewRecorder(logger, cfg.STT_SR)
	conversation = voice.NewController(logger, modes, recorderAdapter{rec: recorder}, player, brdg)
	if err := cfg.Validate(); err != nil {
		// voice assistance over stored recipes still works without a key
		logger.Warn("recipe generation disabled", "error", err)
		return
	}
	generator, err = recipes.NewGenerator(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("failed to init recipe generator", "error", err)
	}
}
