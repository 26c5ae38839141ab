package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/importer"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000
)

type options struct {
	dataDir     string
	pattern     string
	databaseURL string
	workers     int
	dryRun      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing catalog files")
	flag.StringVar(&opts.pattern, "pattern", "*.jsonl.gz", "glob selecting catalog files in data-dir")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent product inserts")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "read and de-duplicate files without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" && !opts.dryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Catalog import failed", zap.Error(err))
	}
	lg.Info("Catalog import completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, opts.pattern))
	if err != nil {
		return errors.Wrap(err, "list catalog files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", opts.pattern, opts.dataDir)
	}
	slices.Sort(files)

	// Pass 1: decode all files concurrently.
	lg.Info("Reading catalog files", zap.Int("files", len(files)))
	perFile, err := readFiles(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "read catalog files")
	}

	// Pass 2: de-duplicate SKUs in file order, first occurrence wins.
	records := dedup(lg, perFile)
	lg.Info("Unique products found", zap.Int("count", len(records)))
	if opts.dryRun || len(records) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(pool, lg); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCatalogRepository(pool)
	loader := importer.NewLoader(catalog.NewService(repo), repo)
	return load(ctx, lg, loader, records, opts.workers)
}

func readFiles(ctx context.Context, lg *zap.Logger, files []string) ([][]importer.Record, error) {
	perFile := make([][]importer.Record, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			var bad int
			err := importer.ReadFile(ctx, path,
				func(r importer.Record) { perFile[i] = append(perFile[i], r) },
				func(e *importer.LineError) {
					bad++
					lg.Warn("Skipping invalid line", zap.Error(e))
				},
			)
			if err != nil {
				return err
			}
			lg.Info("File read",
				zap.String("file", path),
				zap.Int("records", len(perFile[i])),
				zap.Int("invalid", bad),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perFile, nil
}

func dedup(lg *zap.Logger, perFile [][]importer.Record) []importer.Record {
	var total int
	for _, recs := range perFile {
		total += len(recs)
	}

	skus := importer.NewSKUSet(max(uint(total), bloomCapacity), bloomFPR)
	unique := make([]importer.Record, 0, total)
	for _, recs := range perFile {
		for _, r := range recs {
			if !skus.Add(r.SKU) {
				lg.Debug("Duplicate SKU skipped", zap.String("sku", r.SKU))
				continue
			}
			unique = append(unique, r)
		}
	}
	if dups := total - len(unique); dups > 0 {
		lg.Info("Duplicate SKUs skipped", zap.Int("count", dups))
	}
	return unique
}

func load(ctx context.Context, lg *zap.Logger, loader *importer.Loader, records []importer.Record, workers int) error {
	var created, existing, rejected atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, rec := range records {
		g.Go(func() error {
			_, err := loader.Load(ctx, rec)
			switch {
			case errors.Is(err, catalog.ErrSKUExists):
				existing.Add(1)
				return nil
			case errors.Is(err, catalog.ErrInvalidPrice):
				rejected.Add(1)
				lg.Warn("Product rejected", zap.String("sku", rec.SKU), zap.Error(err))
				return nil
			case err != nil:
				return err
			}
			if n := created.Add(1); n%progressEvery == 0 {
				lg.Info("Import progress", zap.Int64("created", n), zap.Int("total", len(records)))
			}
			return nil
		})
	}
	err := g.Wait()

	lg.Info("Products written",
		zap.Int64("created", created.Load()),
		zap.Int64("already_registered", existing.Load()),
		zap.Int64("rejected", rejected.Load()),
	)
	return err
}
