package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bluray-lister/config"
)

const templateFixture = "\ufeffInfo,Version=1.0.0,*Action(SiteID=US|Currency=USD|Version=1193),*Category,*Title," +
	"*ConditionID,*C:Movie/TV Title,*StartPrice,*Description,PicURL,\"C:Region Code\",C:Actor\r\n" +
	",,,,,,,,,,,\r\n" +
	"Info,>>>,Some guidance text,with commas\r\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tplDir := filepath.Join(dir, "template")
	if err := os.MkdirAll(tplDir, 0o755); err != nil {
		t.Fatal(err)
	}
	tpl := filepath.Join(tplDir, "eBay-category-listing-template-Jan-1-2025.csv")
	if err := os.WriteFile(tpl, []byte(templateFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	defaults := config.DefaultListingDefaults()
	defaults.CategoryID = "617"
	return &config.Config{
		TemplateDir:       tplDir,
		TemplatePattern:   "eBay-category-listing-template-*.csv",
		TemplateSentinel:  "Info,>>>",
		ActionColumnIndex: 2,
		WorkingSetPath:    filepath.Join(tplDir, "listings_working.csv"),
		ExportDir:         filepath.Join(dir, "exports"),
		ExportPrefix:      "ebay_upload",
		ImagesDir:         filepath.Join(dir, "images"),
		Defaults:          defaults,
		PriceMargin:       0.15,
		MaxConcurrency:    1,
		MaxRetries:        1,
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(NewApp(cfg, nil))
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSchemaCommand(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(t, cfg, "schema", "--columns")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{"Columns: 12", `Action column: 2 "*Action(SiteID=US|Currency=USD|Version=1193)"`, "C:Region Code"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAddListExportClear(t *testing.T) {
	cfg := testConfig(t)

	meta := `{"title":"Inception","release_year":"2010","genres":["Action"],"actors":["Leonardo DiCaprio"],"director":"Christopher Nolan"}`
	out, err := run(t, cfg, "add", "--movie-title", "Inception", "--price", "14.49",
		"--image-url", "https://bucket.s3.us-east-1.amazonaws.com/bluray-images/a.jpg",
		"--metadata-json", meta, "--region", "B")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Added listing #1: Inception (Blu-ray, 2010) - Very Good") {
		t.Errorf("unexpected add output:\n%s", out)
	}

	if out, err := run(t, cfg, "add", "--movie-title", "Heat", "--price", "9.99", "--condition", "Good"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err = run(t, cfg, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Current listings (2)") || !strings.Contains(out, "Heat (Blu-ray) - Good") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	out, err = run(t, cfg, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "$12.24") {
		t.Errorf("report missing average:\n%s", out)
	}

	out, err = run(t, cfg, "export", "--name", "batch.csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exported := filepath.Join(cfg.ExportDir, "batch.csv")
	if !strings.Contains(out, exported) {
		t.Errorf("export output missing path:\n%s", out)
	}
	got, _ := os.ReadFile(exported)
	src, _ := os.ReadFile(cfg.WorkingSetPath)
	if !bytes.Equal(got, src) {
		t.Errorf("export is not a verbatim copy of the working set")
	}

	if _, err := run(t, cfg, "clear"); err == nil {
		t.Errorf("clear without --confirm should fail")
	}
	out, err = run(t, cfg, "clear", "--confirm")
	if err != nil || !strings.Contains(out, "Cleared 2 listings") {
		t.Fatalf("clear: %v\n%s", err, out)
	}

	out, err = run(t, cfg, "export")
	if err != nil || !strings.Contains(out, "No listings to export") {
		t.Errorf("export on empty set: %v\n%s", err, out)
	}
}

func TestAddRequiresCategory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Defaults.CategoryID = ""

	_, err := run(t, cfg, "add", "--movie-title", "Heat", "--price", "9.99")
	var missing *config.MissingValueError
	if !errors.As(err, &missing) {
		t.Fatalf("add error = %v; want MissingValueError", err)
	}
	if _, statErr := os.Stat(cfg.WorkingSetPath); statErr == nil {
		t.Errorf("working set should not be created when configuration is invalid")
	}
}

func TestAddRejectsBadMetadata(t *testing.T) {
	cfg := testConfig(t)
	if _, err := run(t, cfg, "add", "--movie-title", "Heat", "--price", "9.99", "--metadata-json", "{"); err == nil {
		t.Error("expected error for invalid metadata JSON")
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"non-numeric price", []string{"add", "--movie-title", "Heat", "--price", "abc"}},
		{"zero price", []string{"add", "--movie-title", "Heat", "--price", "0"}},
		{"negative price", []string{"add", "--movie-title", "Heat", "--price", "-3.50"}},
		{"NaN price", []string{"add", "--movie-title", "Heat", "--price", "NaN"}},
		{"no movie title", []string{"add", "--price", "9.99"}},
		{"metadata without title", []string{"add", "--price", "9.99", "--metadata-json", "{}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if _, err := run(t, cfg, tt.args...); err == nil {
				t.Fatalf("add %v: expected error", tt.args)
			}
			if _, statErr := os.Stat(cfg.WorkingSetPath); statErr == nil {
				t.Errorf("working set should not be touched for rejected input")
			}
		})
	}
}

func TestAddUsesMetadataTitleAndNormalisesPrice(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(t, cfg, "add", "--price", " 12.5 ", "--metadata-json", `{"title":"Alien","release_year":"1979"}`)
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Alien (Blu-ray, 1979) - Very Good") || !strings.Contains(out, "Price: $12.50") {
		t.Errorf("unexpected add output:\n%s", out)
	}
}

func TestDefaultsCommand(t *testing.T) {
	cfg := testConfig(t)
	out, err := run(t, cfg, "defaults")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	for _, want := range []string{"condition: Very Good", "shipping_service: USPSMedia", "category_id:", "# price margin: 15%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestImagesCommand(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "images")
	if err != nil || !strings.Contains(out, "No images found") {
		t.Fatalf("images on empty folder: %v\n%s", err, out)
	}

	if err := os.WriteFile(filepath.Join(cfg.ImagesDir, "heat.jpg"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, cfg, "images")
	if err != nil || !strings.Contains(out, "1. heat.jpg (2.0 KB)") {
		t.Errorf("images: %v\n%s", err, out)
	}
}

func TestMissingTemplate(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplateDir = t.TempDir()
	if _, err := run(t, cfg, "list"); err == nil || !strings.Contains(err.Error(), "template") {
		t.Errorf("list without template: got %v", err)
	}
}

func TestHistoryRequiresArchive(t *testing.T) {
	if _, err := run(t, testConfig(t), "history"); err == nil {
		t.Error("history should fail when the archive is disabled")
	}
}
