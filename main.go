package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"crashd/cmd"
	"crashd/config"
	"crashd/database"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error:", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error:", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: crashd migrate [up|down|status] [args...]")
	}

	cfg := config.Get()
	command := os.Args[2]
	switch command {
	case "up":
		return database.RunMigrationsWithURL(cfg.DatabaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			parsed, err := strconv.Atoi(os.Args[3])
			if err != nil || parsed < 1 {
				return fmt.Errorf("invalid step count %q", os.Args[3])
			}
			steps = parsed
		}
		return database.MigrateDown(cfg.DatabaseURL, steps)
	case "status":
		return database.MigrateStatus(cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
