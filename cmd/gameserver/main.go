// Package main provides the game server binary: a WebSocket endpoint that
// keeps joined players and world NPCs in sync, plus a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/runes/internal/admin"
	"github.com/cory-johannsen/runes/internal/config"
	"github.com/cory-johannsen/runes/internal/frontend/ws"
	"github.com/cory-johannsen/runes/internal/game/world"
	"github.com/cory-johannsen/runes/internal/gameserver"
	"github.com/cory-johannsen/runes/internal/observability"
	"github.com/cory-johannsen/runes/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file; empty = defaults and environment only")
	worldFile := flag.String("world", "", "path to the world seed document (overrides game.world_file)")
	flag.Parse()

	var (
		cfg config.Config
		err error
	)
	if *configPath == "" {
		cfg, err = config.Defaults()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *worldFile != "" {
		cfg.Game.WorldFile = *worldFile
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("ws_addr", cfg.Websocket.Addr()),
		zap.String("ws_path", cfg.Websocket.Path),
		zap.Int("max_players", cfg.Game.MaxPlayers),
	)

	catalog := loadWorld(cfg.Game.WorldFile, logger)
	engine := gameserver.NewEngine(gameserver.OptionsFromConfig(cfg), catalog, logger)

	acceptor := ws.NewAcceptor(cfg.Websocket, ws.SessionHandlerFunc(func(ctx context.Context, conn *ws.Conn) error {
		return engine.HandleSession(ctx, conn)
	}), logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.Admin.Enabled {
		healthSrv := admin.NewHealthServer(cfg.Admin, logger)
		lifecycle.Add("admin", healthSrv)
		lifecycle.OnReady(healthSrv.MarkReady)
		lifecycle.OnShutdown(healthSrv.MarkShuttingDown)
	}

	logger.Info("game server ready",
		zap.Int("npcs", engine.NPCCount()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}

// loadWorld reads the seed document at path. A missing or malformed document
// is not fatal: the server starts with an empty world.
func loadWorld(path string, logger *zap.Logger) *world.Catalog {
	loadStart := time.Now()
	cat, err := world.LoadCatalog(path)
	switch {
	case errors.Is(err, world.ErrNotFound):
		logger.Info("no world seed document, starting with an empty world", zap.String("path", path))
		return world.Empty()
	case err != nil:
		logger.Warn("loading world seed document, starting with an empty world",
			zap.String("path", path),
			zap.Error(err),
		)
		return world.Empty()
	}
	logger.Info("world loaded",
		zap.String("path", path),
		zap.Int("npcs", cat.NPCCount()),
		zap.Duration("elapsed", time.Since(loadStart)),
	)
	return cat
}
