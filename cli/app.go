// Package cli is the command-line surface of the listing assistant.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"bluray-lister/config"
	"bluray-lister/schema"
	"bluray-lister/scraper/ebay"
	"bluray-lister/scraper/tmdb"
	"bluray-lister/services"
	"bluray-lister/storage"
	"bluray-lister/utils"
)

// App builds the components a command needs from configuration. Nothing is
// shared between invocations.
type App struct {
	cfg    *config.Config
	logger *utils.Logger

	closers []io.Closer
}

// NewApp returns an App for cfg.
func NewApp(cfg *config.Config, logger *utils.Logger) *App {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &App{cfg: cfg, logger: logger}
}

// Close releases databases opened while running a command.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("[cli] close: %v", err)
		}
	}
	a.closers = nil
}

func (a *App) loader() *schema.Loader {
	l := schema.NewLoader(a.cfg.TemplateDir)
	l.Pattern = a.cfg.TemplatePattern
	l.Sentinel = a.cfg.TemplateSentinel
	l.ActionIndex = a.cfg.ActionColumnIndex
	l.Logger = a.logger
	return l
}

// workingSet discovers the template schema and opens the working set on it.
func (a *App) workingSet() (*storage.WorkingSet, *schema.Schema, error) {
	s, err := a.loader().Load()
	if err != nil {
		return nil, nil, err
	}
	ws := storage.NewWorkingSet(a.logger)
	if err := ws.Initialize(s, a.cfg.WorkingSetPath); err != nil {
		return nil, nil, err
	}
	return ws, s, nil
}

func (a *App) rowBuilder() (*services.RowBuilder, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return services.NewRowBuilder(a.cfg.Defaults)
}

// exporter opens the working set and, when enabled, the export archive.
func (a *App) exporter(ctx context.Context) (*storage.Exporter, error) {
	ws, _, err := a.workingSet()
	if err != nil {
		return nil, err
	}
	ex := storage.NewExporter(ws, a.cfg.ExportDir, a.cfg.ExportPrefix, a.logger)

	if a.cfg.ArchiveEnabled {
		archive, err := a.archive(ctx)
		if err != nil {
			a.logger.Warn("[cli] Export archive unavailable: %v", err)
		} else {
			ex.WithArchiver(archive)
		}
	}
	return ex, nil
}

func (a *App) archive(ctx context.Context) (*storage.PostgresArchive, error) {
	archive, err := storage.NewPostgresArchive(ctx, a.cfg.DSN())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, archive)
	return archive, nil
}

// processor wires whichever collaborators are configured. withPrices=false
// skips market lookups entirely.
func (a *App) processor(ctx context.Context, withPrices bool) (*services.Processor, error) {
	var uploader storage.ImageUploader
	if a.cfg.S3Configured() {
		client, err := storage.NewS3Client(ctx, a.cfg.AWSAccessKeyID, a.cfg.AWSSecretAccessKey, a.cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		up, err := storage.NewS3Uploader(client, storage.S3Options{
			Bucket:    a.cfg.S3BucketName,
			Region:    a.cfg.AWSRegion,
			KeyPrefix: a.cfg.S3KeyPrefix,
			MaxEdge:   a.cfg.ImageMaxSize,
			Retry:     utils.RetryConfig{MaxAttempts: a.cfg.MaxRetries, BaseDelay: time.Second, Logger: a.logger},
			Logger:    a.logger,
		})
		if err != nil {
			return nil, err
		}
		uploader = up
	}

	var lookup services.MetadataLookup
	if a.cfg.TMDBConfigured() {
		client, err := tmdb.NewClient(a.cfg.TMDBBaseURL, a.cfg.TMDBReadToken, a.cfg.MaxRetries, a.logger)
		if err != nil {
			return nil, err
		}
		lookup = client
	}

	var pricing *services.PricingService
	if withPrices {
		var cache storage.PriceStore
		pc, err := storage.OpenPriceCache(a.cfg.PriceCachePath, time.Duration(a.cfg.PriceCacheTTLHours)*time.Hour)
		if err != nil {
			a.logger.Warn("[cli] Price cache unavailable: %v", err)
		} else {
			a.closers = append(a.closers, pc)
			cache = pc
		}
		pricing = services.NewPricingService(ebay.New(a.cfg, a.logger), ebay.Source, cache,
			a.cfg.PriceMargin, a.cfg.Defaults.ShippingCost, a.logger)
	}

	p := services.NewProcessor(a.cfg.ImagesDir, uploader, lookup, pricing, a.cfg.Defaults.Condition, a.logger)
	return p.WithConcurrency(a.cfg.MaxConcurrency, a.cfg.RateLimitMs), nil
}

// NewRootCmd assembles the command tree.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "bluray-lister",
		Short: "Build eBay bulk-upload listings for Blu-ray discs",
		Long: `bluray-lister turns photographed Blu-ray discs into rows of an eBay
category bulk-upload template. Rows are collected in a working CSV that always
matches the newest template's columns and exported as a timestamped copy.`,
		SilenceUsage: true,
	}

	root.AddCommand(ImagesCmd(app))
	root.AddCommand(ProcessCmd(app))
	root.AddCommand(AddCmd(app))
	root.AddCommand(ListCmd(app))
	root.AddCommand(ReportCmd(app))
	root.AddCommand(ExportCmd(app))
	root.AddCommand(ClearCmd(app))
	root.AddCommand(DefaultsCmd(app))
	root.AddCommand(SchemaCmd(app))
	root.AddCommand(HistoryCmd(app))
	return root
}
