package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/bingal/rss-reader/internal/database"
	"github.com/bingal/rss-reader/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	addr := flag.String("addr", envOr("RSS_READER_ADDR", "127.0.0.1:8090"), "listen address")
	dataDir := flag.String("data-dir", os.Getenv("RSS_READER_DATA_DIR"), "data directory (default: per-user config dir)")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			log.Fatalf("Cannot determine config dir: %v", err)
		}
		dir = filepath.Join(base, "rss-reader")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Cannot create data dir %s: %v", dir, err)
	}

	db, err := database.New(filepath.Join(dir, "data.db"))
	if err != nil {
		log.Fatalf("Cannot open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db)
	if err := srv.Start(*addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
