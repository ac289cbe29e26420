package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kiendrone/storefront/internal/infrastructure/config"
	"github.com/kiendrone/storefront/internal/infrastructure/logger"
	"github.com/kiendrone/storefront/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// invocation is what a command runs against
type invocation struct {
	args     []string
	path     string
	log      *zap.Logger
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	// offline commands only touch the migrations directory
	offline bool
	run     func(inv invocation) error
}

var commands = map[string]command{
	"up": {
		usage: "up", summary: "Apply all pending migrations",
		run: func(inv invocation) error { return inv.migrator.Up() },
	},
	"down": {
		usage: "down", summary: "Roll back all migrations",
		run: func(inv invocation) error { return inv.migrator.Down() },
	},
	"step": {
		usage: "step <n>", summary: "Apply n migrations (positive=up, negative=down)",
		run: func(inv invocation) error {
			n, err := intArg(inv.args, "step count")
			if err != nil {
				return err
			}
			return inv.migrator.Steps(n)
		},
	},
	"version": {
		usage: "version", summary: "Show current migration version",
		run: func(inv invocation) error {
			version, dirty, err := inv.migrator.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				inv.log.Info("No migrations applied")
				return nil
			}
			inv.log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"force": {
		usage: "force <version>", summary: "Mark version as applied after a failed migration",
		run: func(inv invocation) error {
			version, err := intArg(inv.args, "version")
			if err != nil {
				return err
			}
			return inv.migrator.Force(version)
		},
	},
	"create": {
		usage: "create <name> [desc]", summary: "Create the next migration file pair", offline: true,
		run: func(inv invocation) error {
			if len(inv.args) == 0 {
				return errors.New("migration name required")
			}
			description := strings.Join(inv.args[1:], " ")
			mf, err := migration.CreateMigration(inv.path, inv.args[0], description)
			if err != nil {
				return err
			}
			inv.log.Info("Migration created",
				zap.Uint("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		usage: "list", summary: "List available migrations", offline: true,
		run: func(inv invocation) error {
			files, err := migration.ListMigrations(inv.path)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				inv.log.Info("No migrations found")
			}
			for _, mf := range files {
				fmt.Printf("  %06d  %s\n", mf.Version, mf.Name)
			}
			return nil
		},
	},
}

// commandOrder fixes the usage listing
var commandOrder = []string{"up", "down", "step", "version", "force", "create", "list"}

func main() {
	pathFlag := flag.String("path", "", "Path to migrations directory (default: ./migrations)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	path, err := resolveMigrationsPath(*pathFlag)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	log = log.With(zap.String("command", args[0]), zap.String("migrations_path", path))

	inv := invocation{args: args[1:], path: path, log: log}
	if !cmd.offline {
		db, migrator, err := openMigrator(path, log)
		if err != nil {
			log.Fatal("Failed to prepare migrator", zap.Error(err))
		}
		defer db.Close()
		defer migrator.Close()
		inv.migrator = migrator
	}

	if err := cmd.run(inv); err != nil {
		log.Fatal("Migration command failed", zap.Error(err))
	}
}

func openMigrator(path string, log *zap.Logger) (*sql.DB, *migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, path, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, m, nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

// resolveMigrationsPath falls back to ./migrations, then to the
// directory two levels above the executable
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

func printUsage() {
	var b strings.Builder
	b.WriteString("Storefront database migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(&b, "  %-22s%s\n", c.usage, c.summary)
	}
	b.WriteString("\nFlags:\n")
	b.WriteString("  -path string          Path to migrations directory (default: ./migrations)\n")
	b.WriteString("  -log-level string     Log level: debug, info, warn, error (default: info)\n")
	b.WriteString("\nThe database is configured like the server, through config.toml or\n")
	b.WriteString("SHOP_DATABASE_* environment variables.\n")
	fmt.Fprint(os.Stderr, b.String())
}
