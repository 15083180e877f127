package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bluray-lister/models"
	"bluray-lister/services"
	"bluray-lister/storage"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
	bold     = color.New(color.Bold)
)

// AddCmd appends one listing row to the working set.
func AddCmd(app *App) *cobra.Command {
	var (
		in           models.ListingInput
		metadataJSON string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a listing to the working set",
		Long: `Add a listing to the working set after confirming its price and details.
Pass the metadata printed by "process --json" with --metadata-json to fill the
movie columns and generate the description.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()

			if metadataJSON != "" {
				var meta models.MovieMetadata
				if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
					return fmt.Errorf("invalid --metadata-json: %w", err)
				}
				in.Metadata = &meta
			}
			if err := checkListingInput(&in); err != nil {
				return err
			}

			builder, err := app.rowBuilder()
			if err != nil {
				return err
			}
			ws, s, err := app.workingSet()
			if err != nil {
				return err
			}

			row := builder.Build(in, s)
			n, err := ws.Append(row)
			if err != nil {
				if storage.IsConflict(err) {
					return fmt.Errorf("%w (another process changed the working set; run add again)", err)
				}
				return err
			}

			title, _ := row.Get(services.ColTitle)
			price, _ := row.Get(services.ColStartPrice)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Added listing #%d: %s\n", okMark, n, title)
			fmt.Fprintf(out, "  Price: $%s\n", price)
			fmt.Fprintf(out, "  Working set: %s (%d listings)\n", ws.Path(), n)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.MovieTitle, "movie-title", "", "official movie title")
	f.StringVar(&in.Title, "title", "", "listing title (generated when empty)")
	f.StringVar(&in.Price, "price", "", "listing price, e.g. 12.99")
	f.StringVar(&in.ImageURL, "image-url", "", "public photo URL from process")
	f.StringVar(&in.Overrides.Condition, "condition", "", "condition label (New, Like New, Very Good, Good, Acceptable)")
	f.StringVar(&in.Overrides.ConditionID, "condition-id", "", "explicit condition id")
	f.StringVar(&in.Overrides.CaseType, "case-type", "", "case type (Steelbook, Digipak, Standard Blu-ray Case)")
	f.StringVar(&in.Overrides.RegionCode, "region", "", "region code (A, B, C, Free)")
	f.IntVar(&in.Overrides.Quantity, "quantity", 0, "quantity (default from listing defaults)")
	f.StringVar(&in.Overrides.Notes, "notes", "", "extra notes for the description")
	f.StringVar(&in.Overrides.Description, "description", "", "full HTML description (replaces the generated one)")
	f.StringVar(&in.Overrides.Location, "location", "", "item location")
	f.StringVar(&metadataJSON, "metadata-json", "", "movie metadata JSON from process --json")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

// checkListingInput rejects a listing without a movie title or a positive
// numeric price. The price is normalised to two decimals.
func checkListingInput(in *models.ListingInput) error {
	in.MovieTitle = strings.TrimSpace(in.MovieTitle)
	if in.MovieTitle == "" && (in.Metadata == nil || strings.TrimSpace(in.Metadata.Title) == "") {
		return errors.New("--movie-title is required (or a metadata title in --metadata-json)")
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(in.Price), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("--price must be a positive number, got %q", in.Price)
	}
	in.Price = services.FormatPrice(price)
	return nil
}

// ListCmd prints a summary of every stored listing.
func ListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the listings in the working set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := app.workingSet()
			if err != nil {
				return err
			}
			listings, err := ws.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(listings) == 0 {
				fmt.Fprintln(out, "No listings yet. Use 'add' to create one.")
				return nil
			}
			fmt.Fprintf(out, "Current listings (%d):\n\n", len(listings))
			for _, l := range listings {
				fmt.Fprintf(out, "%3d. %s\n", l.Row, bold.Sprint(l.Title))
				fmt.Fprintf(out, "     Movie: %s | Price: $%s | Condition: %s\n", l.MovieTitle, l.Price, l.ConditionID)
			}
			return nil
		},
	}
}

// ReportCmd prints statistics over the working set.
func ReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarise prices and conditions in the working set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, err := app.workingSet()
			if err != nil {
				return err
			}
			listings, err := ws.List()
			if err != nil {
				return err
			}
			svc := services.NewReportService(app.logger)
			svc.Print(cmd.OutOrStdout(), svc.Generate(listings))
			return nil
		},
	}
}

// ExportCmd writes a timestamped copy of the working set.
func ExportCmd(app *App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the working set as an upload-ready CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()

			ex, err := app.exporter(cmd.Context())
			if err != nil {
				return err
			}
			path, err := ex.Export(cmd.Context(), name)
			if errors.Is(err, storage.ErrEmptyExport) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s No listings to export. Add some listings first.\n", warnMark)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported to %s\n", okMark, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "custom export file name")
	return cmd
}

// ClearCmd resets the working set to the header row.
func ClearCmd(app *App) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every listing from the working set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear without --confirm")
			}
			ws, _, err := app.workingSet()
			if err != nil {
				return err
			}
			n, err := ws.Count()
			if err != nil {
				return err
			}
			if err := ws.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared %d listings\n", okMark, n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm clearing all listings")
	return cmd
}

// HistoryCmd lists recent exports recorded in the archive.
func HistoryCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent exports from the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.cfg.ArchiveEnabled {
				return errors.New("export archive is disabled (set ARCHIVE_ENABLED=true)")
			}
			defer app.Close()

			archive, err := app.archive(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := archive.FetchRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No exports recorded")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(out, "%s  %-45s %3d items  %s\n",
					r.ExportedAt.Local().Format("2006-01-02 15:04"), r.Name, r.ItemCount, r.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of exports to show")
	return cmd
}
