package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bluray-lister/models"
	"bluray-lister/services"
)

// ImagesCmd lists photos waiting in the images folder.
func ImagesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List photos waiting to be processed",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := services.NewProcessor(app.cfg.ImagesDir, nil, nil, nil, app.cfg.Defaults.Condition, app.logger)
			images, err := p.ListImages()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintf(out, "No images found in %s\n\nAdd images to this folder and try again.\n", app.cfg.ImagesDir)
				return nil
			}
			fmt.Fprintf(out, "Found %d image(s) in %s:\n\n", len(images), app.cfg.ImagesDir)
			for i, img := range images {
				fmt.Fprintf(out, "%d. %s (%.1f KB)\n", i+1, img.Name, img.SizeKB)
			}
			return nil
		},
	}
}

// ProcessCmd uploads photos and gathers metadata and price suggestions.
func ProcessCmd(app *App) *cobra.Command {
	var (
		title     string
		year      int
		condition string
		noPrice   bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "process <filename>...",
		Short: "Upload photos and look up metadata and prices",
		Long: `Upload each photo, look up the movie and suggest a price. The movie title
defaults to the filename with underscores and dashes turned into spaces.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if title != "" && len(args) > 1 {
				return errors.New("--title can only be used with a single file")
			}
			defer app.Close()

			p, err := app.processor(cmd.Context(), !noPrice)
			if err != nil {
				return err
			}

			reqs := make([]services.ProcessRequest, len(args))
			for i, name := range args {
				reqs[i] = services.ProcessRequest{Filename: name, MovieTitle: title, Year: year, Condition: condition}
			}
			results := p.ProcessBatch(cmd.Context(), reqs)

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
				if asJSON {
					continue
				}
				printResult(out, r)
			}
			if asJSON {
				if err := writeResultsJSON(out, results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "movie title to search for")
	f.IntVar(&year, "year", 0, "release year to narrow the search")
	f.StringVar(&condition, "condition", "", "condition used for price lookup")
	f.BoolVar(&noPrice, "no-price", false, "skip the market price lookup")
	f.BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResult(out io.Writer, r services.ProcessResult) {
	fmt.Fprintf(out, "Processing: %s\n", bold.Sprint(r.Filename))
	if r.Err != nil {
		fmt.Fprintf(out, "  %s %v\n\n", warnMark, r.Err)
		return
	}
	if r.ImageURL != "" {
		fmt.Fprintf(out, "  Image URL: %s\n", r.ImageURL)
	}
	if m := r.Metadata; m != nil {
		fmt.Fprintf(out, "  Found: %s", m.Title)
		if m.ReleaseYear != "" {
			fmt.Fprintf(out, " (%s)", m.ReleaseYear)
		}
		fmt.Fprintln(out)
		if m.Director != "" {
			fmt.Fprintf(out, "  Director: %s\n", m.Director)
		}
		if len(m.Actors) > 0 {
			n := len(m.Actors)
			if n > 3 {
				n = 3
			}
			fmt.Fprintf(out, "  Cast: %s\n", strings.Join(m.Actors[:n], ", "))
		}
		if len(m.Genres) > 0 {
			fmt.Fprintf(out, "  Genre: %s\n", strings.Join(m.Genres, ", "))
		}
		if m.Rating != "" {
			fmt.Fprintf(out, "  Rating: %s\n", m.Rating)
		}
		if m.Runtime > 0 {
			fmt.Fprintf(out, "  Runtime: %d min\n", m.Runtime)
		}
		if data, err := json.Marshal(m); err == nil {
			fmt.Fprintf(out, "  Metadata JSON: %s\n", data)
		}
	} else {
		fmt.Fprintf(out, "  No metadata found for %q\n", r.SearchTitle)
	}
	if r.Price != nil && r.Price.AveragePrice != nil {
		fmt.Fprintf(out, "  Market average: $%.2f over %d sales\n", *r.Price.AveragePrice, len(r.Price.Comparables))
	}
	fmt.Fprintf(out, "  Suggested price: %s\n\n", bold.Sprintf("$%s", services.FormatPrice(r.SuggestedPrice)))
}

type resultJSON struct {
	Filename       string                `json:"filename"`
	SearchTitle    string                `json:"search_title"`
	ImageURL       string                `json:"image_url,omitempty"`
	Metadata       *models.MovieMetadata `json:"metadata,omitempty"`
	AveragePrice   *float64              `json:"average_price,omitempty"`
	SuggestedPrice string                `json:"suggested_price,omitempty"`
	Error          string                `json:"error,omitempty"`
}

func writeResultsJSON(out io.Writer, results []services.ProcessResult) error {
	items := make([]resultJSON, len(results))
	for i, r := range results {
		item := resultJSON{Filename: r.Filename, SearchTitle: r.SearchTitle, ImageURL: r.ImageURL, Metadata: r.Metadata}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else {
			item.SuggestedPrice = services.FormatPrice(r.SuggestedPrice)
		}
		if r.Price != nil {
			item.AveragePrice = r.Price.AveragePrice
		}
		items[i] = item
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// DefaultsCmd prints the listing defaults in effect.
func DefaultsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Show the listing defaults in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(app.cfg.Defaults)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if app.cfg.ListingDefaultsFile != "" {
				fmt.Fprintf(out, "# defaults file: %s\n", app.cfg.ListingDefaultsFile)
			}
			fmt.Fprintf(out, "# price margin: %.0f%%\n", app.cfg.PriceMargin*100)
			_, err = out.Write(data)
			if err == nil && app.cfg.Defaults.CategoryID == "" {
				fmt.Fprintf(out, "%s category_id is not set; set LISTING_CATEGORY_ID before adding listings\n", warnMark)
			}
			return err
		},
	}
}

// SchemaCmd shows the columns discovered in the newest template.
func SchemaCmd(app *App) *cobra.Command {
	var columns bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the template schema in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.loader().Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Template: %s\n", s.Path)
			fmt.Fprintf(out, "Columns: %d\n", s.Len())
			fmt.Fprintf(out, "Action column: %d %q\n", s.ActionIndex, s.ActionColumn())
			if columns {
				fmt.Fprintln(out)
				for i, c := range s.Columns {
					fmt.Fprintf(out, "%4d  %s\n", i, c)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&columns, "columns", false, "list every column")
	return cmd
}
