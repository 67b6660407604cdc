package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/westbrookdaniel/chat/internal/app"
	"github.com/westbrookdaniel/chat/pkg/config"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addr, dbPath, cfgPath, setFlags := config.ParseCommandFlags()

	cfgFile := config.ResolveConfigPath(cfgPath, setFlags["config"])
	eff, err := config.LoadEffective(cfgFile, addr, dbPath, setFlags)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
