package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/config"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
	"github.com/Conversly/whatsapp-faq-bot/migrations"
)

// Usage: migrate [up|down|force <version>|version]
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: Error loading .env file", err)
	}

	cleanup := utils.InitLogger(&config.Config{
		LogLevel:    "info",
		ServiceName: "whatsapp-faq-bot-migrate",
		Environment: os.Getenv("ENVIRONMENT"),
	})
	defer cleanup()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		utils.Zlog.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		utils.Zlog.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		utils.Zlog.Fatal("Failed to ping database", zap.Error(err))
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		utils.Zlog.Fatal("Failed to create migrate driver", zap.Error(err))
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		utils.Zlog.Fatal("Failed to open embedded migrations", zap.Error(err))
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		utils.Zlog.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			utils.Zlog.Fatal("force needs a version")
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			utils.Zlog.Fatal("Invalid version", zap.Error(convErr))
		}
		err = m.Force(version)
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
			utils.Zlog.Fatal("Failed to read version", zap.Error(verErr))
		}
		utils.Zlog.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	default:
		utils.Zlog.Fatal("Unknown command", zap.String("command", cmd))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		utils.Zlog.Fatal("Migration failed", zap.String("command", cmd), zap.Error(err))
	}
	utils.Zlog.Info("Migrations complete", zap.String("command", cmd))
}
