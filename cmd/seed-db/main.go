// Command seed-db replaces the menu stored in PostgreSQL with a menu file or
// the menu embedded in the binary.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/menuchat/db"
	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/storage/menufile"
	"github.com/xenking/menuchat/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		menuFile    string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or MENUCHAT_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "", "menu JSON file, optionally .gz (default: embedded menu)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("MENUCHAT_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, menuFile)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, menuFile string) error {
	var src catalog.Source = menufile.NewBytes(db.Menu)
	if menuFile != "" {
		src = menufile.NewFile(menuFile)
	}
	lg.Info("Reading menu", zap.String("file", menuFile))

	// Loading through the catalog validates ids, prices and calories before
	// anything is written.
	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return errors.Wrap(err, "load menu")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewCatalogRepository(pool).Replace(ctx, cat.Categories()); err != nil {
		return errors.Wrap(err, "replace menu")
	}
	lg.Info("Seed completed",
		zap.Int("categories", len(cat.Categories())),
		zap.Int("items", cat.Len()),
	)
	return nil
}
