package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/importer"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	ropes       = "Jump ropes"
	ropesDesc   = "Speed, beaded and weighted jump ropes"
	accessories = "Accessories"
	accessDesc  = "Handles, cables and mats for jump rope training"
)

var seedProducts = []importer.Record{
	{
		Name: "Beaded jump rope", SKU: "ABC123", Description: "Segmented rope for freestyle tricks",
		Price: decimal.RequireFromString("24.90"), Category: ropes, CategoryDescription: ropesDesc,
		Characteristics: []importer.Attribute{{Name: "Rope length", Value: "3m"}, {Name: "Handle material", Value: "plastic"}},
		Stock: 3,
	},
	{
		Name: "Speed rope", SKU: "SPD-200", Description: "Thin steel cable with ball bearing handles",
		Price: decimal.RequireFromString("19.50"), Category: ropes, CategoryDescription: ropesDesc,
		Characteristics: []importer.Attribute{{Name: "Rope length", Value: "2.8m"}, {Name: "Handle material", Value: "aluminium"}},
		Stock: 25,
	},
	{
		Name: "Weighted rope", SKU: "WGT-500", Description: "500 g rope for conditioning",
		Price: decimal.RequireFromString("34.00"), Category: ropes, CategoryDescription: ropesDesc,
		Characteristics: []importer.Attribute{{Name: "Rope length", Value: "2.7m"}, {Name: "Weight", Value: "500g"}},
		Stock: 10,
	},
	{
		Name: "Replacement cable", SKU: "CBL-3", Description: "Coated steel cable for speed ropes",
		Price: decimal.RequireFromString("6.99"), Category: accessories, CategoryDescription: accessDesc,
		Characteristics: []importer.Attribute{{Name: "Rope length", Value: "3m"}},
		Stock: 50,
	},
	{
		Name: "Training mat", SKU: "MAT-1", Description: "Shock absorbing mat protecting rope and floor",
		Price: decimal.RequireFromString("45.00"), Category: accessories, CategoryDescription: accessDesc,
		Stock: 0,
	},
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string) error {
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(pool, lg); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCatalogRepository(pool)
	loader := importer.NewLoader(catalog.NewService(repo), repo)

	for _, rec := range seedProducts {
		p, err := loader.Load(ctx, rec)
		if errors.Is(err, catalog.ErrSKUExists) {
			lg.Info("Product already seeded", zap.String("sku", rec.SKU))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "seed product %s", rec.SKU)
		}
		lg.Info("Seeded product",
			zap.Int64("id", p.ID),
			zap.String("sku", rec.SKU),
			zap.Int("stock", rec.Stock),
		)
	}
	return nil
}
