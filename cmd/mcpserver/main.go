package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/server"

	"covergate-backend/mcp"
	"covergate-backend/storage/cover"
)

type config struct {
	StoreDriver string
	PGDSN       string
	Seed        bool
}

func loadConfig() config {
	storeDriver := os.Getenv("COVERGATE_MCP_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	seed := true
	if raw := os.Getenv("COVERGATE_MCP_SEED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			seed = v
		}
	}

	return config{
		StoreDriver: storeDriver,
		PGDSN:       os.Getenv("COVERGATE_MCP_PG_DSN"),
		Seed:        seed,
	}
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	var store cover.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			log.Fatal("COVERGATE_MCP_PG_DSN required when COVERGATE_MCP_STORE_DRIVER=postgres")
		}
		pg, err := cover.NewPGStore(ctx, cfg.PGDSN, cfg.Seed)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
		store = pg
	default:
		mem := cover.NewMemoryStore()
		if cfg.Seed {
			if err := cover.Seed(ctx, mem); err != nil {
				log.Fatalf("failed to seed store: %v", err)
			}
		}
		store = mem
	}
	defer store.Close()

	mcpServer := mcp.NewMCPServer(store)

	log.Printf("CoverGate MCP server starting (driver=%s)", cfg.StoreDriver)

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
