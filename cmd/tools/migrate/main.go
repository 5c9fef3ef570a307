package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/noah-isme/hospital-billing/internal/migrations"
)

func main() {
	_ = godotenv.Load()
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "postgres connection string; defaults to DATABASE_URL")
		command     = flag.String("cmd", "up", "one of up, down, version")
		steps       = flag.Int("steps", 0, "number of migrations to roll back with -cmd=down; 0 rolls back everything")
	)
	flag.Parse()

	if strings.TrimSpace(*databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	m, err := migrations.New(*databaseURL)
	if err != nil {
		log.Fatalf("init migrations: %v", err)
	}
	defer m.Close()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			log.Println("no migrations applied")
			return
		}
		if verr != nil {
			log.Fatalf("read version: %v", verr)
		}
		log.Printf("version %d dirty=%t\n", version, dirty)
		return
	default:
		log.Fatalf("unknown command %q", *command)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("no change")
		return
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", *command, err)
	}
	log.Printf("migrate %s complete\n", *command)
}
